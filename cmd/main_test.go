package main

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/okian/simon-relay/internal/adapters/http/api"
	"github.com/okian/simon-relay/internal/adapters/http/swagger"
	app "github.com/okian/simon-relay/internal/app"
	"github.com/okian/simon-relay/internal/config"
	"github.com/okian/simon-relay/pkg/logger"
	"github.com/okian/simon-relay/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When testing configuration loading", func() {
			_ = os.Setenv("SIMON_PORT", "8080")
			_ = os.Setenv("SIMON_QUEUE_SIZE", "1000")
			_ = os.Setenv("SIMON_WORKER_COUNT", "4")
			defer func() {
				_ = os.Unsetenv("SIMON_PORT")
				_ = os.Unsetenv("SIMON_QUEUE_SIZE")
				_ = os.Unsetenv("SIMON_WORKER_COUNT")
			}()

			convey.Convey("Then configuration should be loadable", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr(), convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When testing HTTP server creation", func() {
			svc := app.New()

			convey.Convey("Then routes register without conflicts", func() {
				mux := http.NewServeMux()
				convey.So(func() {
					api.NewServer(svc, svc).Register(context.Background(), mux)
					swagger.Register(context.Background(), mux)
				}, convey.ShouldNotPanic)
			})
		})
	})
}

func TestMainApplicationErrorHandling(t *testing.T) {
	convey.Convey("Given main application error handling", t, func() {
		convey.Convey("When the port is invalid", func() {
			_ = os.Setenv("SIMON_PORT", "0")
			defer func() { _ = os.Unsetenv("SIMON_PORT") }()

			convey.Convey("Then configuration loading should fail", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the store driver is unknown", func() {
			cfg := config.New()
			cfg.StoreDriver = "sqlite"

			convey.Convey("Then run fails before serving", func() {
				err := run(context.Background(), cfg)
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given a configuration with an in-memory store and no broker", t, func() {
		cfg := config.New()
		cfg.Port = 0
		cfg.StoreDriver = config.StoreMemory
		cfg.BrokerURL = "tcp://127.0.0.1:1"
		cfg.ConnectTimeoutMS = 50
		cfg.ReconnectPeriodMS = 20

		convey.Convey("When the context is cancelled", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
			defer cancel()

			start := time.Now()
			err := run(ctx, cfg)

			convey.Convey("Then run shuts down cleanly", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(time.Since(start), convey.ShouldBeLessThan, 10*time.Second)
			})
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		convey.Convey("When testing system metrics updater", func() {
			convey.Convey("Then it returns once the context ends", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer cancel()

				convey.So(func() {
					startSystemMetricsUpdater(ctx)
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When testing service metrics updater", func() {
			svc := app.New()

			convey.Convey("Then it returns once the context ends", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer cancel()

				convey.So(func() {
					startServiceMetricsUpdater(ctx, svc)
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When updating metrics directly", func() {
			svc := app.New()

			convey.Convey("Then nothing panics", func() {
				convey.So(updateSystemMetrics, convey.ShouldNotPanic)
				convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When creating a metrics manager on a private registry", func() {
			manager := metrics.NewManager(metrics.WithPrometheusRegistry(prometheus.NewRegistry()))

			convey.Convey("Then it is usable", func() {
				convey.So(manager, convey.ShouldNotBeNil)
			})
		})
	})
}
