package broker_test

import (
	"errors"
	"testing"

	"github.com/okian/simon-relay/internal/adapters/broker"
	"github.com/okian/simon-relay/internal/config"
	"github.com/okian/simon-relay/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNewDriver(t *testing.T) {
	Convey("Given a config", t, func() {
		cfg := config.New()

		Convey("Then mqtt and nats drivers are selectable", func() {
			d, err := broker.NewDriver(cfg, logger.Nop())
			So(err, ShouldBeNil)
			So(d.Name(), ShouldEqual, "mqtt")

			cfg.BrokerDriver = config.BrokerNATS
			d, err = broker.NewDriver(cfg, logger.Nop())
			So(err, ShouldBeNil)
			So(d.Name(), ShouldEqual, "nats")
		})

		Convey("Then an unknown driver is rejected", func() {
			cfg.BrokerDriver = "kafka"
			_, err := broker.NewDriver(cfg, logger.Nop())
			So(errors.Is(err, broker.ErrUnknownDriver), ShouldBeTrue)
		})
	})
}
