package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/okian/simon-relay/internal/adapters/broker/brokertest"
	"github.com/okian/simon-relay/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeRelay serves the endpoints the simulator uses. Every score the driver
// has published counts as stored unless lag is set.
type fakeRelay struct {
	mu      sync.Mutex
	drv     *brokertest.Driver
	base    int64
	lag     bool
	started []string
	refuse  bool
}

func (f *fakeRelay) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	mux.HandleFunc("POST /start", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Username string `json:"username"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.refuse {
			http.Error(w, `{"code":"broker_unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		f.started = append(f.started, body.Username)
		_, _ = w.Write([]byte("Session started for " + body.Username))
	})
	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		n := f.base
		if !f.lag {
			n += int64(len(f.drv.Published()))
		}
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"storedScores": n})
	})
	mux.HandleFunc("GET /scores", func(w http.ResponseWriter, _ *http.Request) {
		pubs := f.drv.Published()
		out := []model.ScoreRecord{}
		if len(pubs) > 0 {
			var p model.ScorePayload
			_ = json.Unmarshal(pubs[len(pubs)-1].Payload, &p)
			out = append(out, model.ScoreRecord{ID: "1", Topic: "simon/score", Payload: p})
		}
		_ = json.NewEncoder(w).Encode(out)
	})
	return mux
}

func TestGenerator(t *testing.T) {
	Convey("Given a seeded generator", t, func() {
		g := NewGenerator(42)

		Convey("Then players are distinct", func() {
			players := g.Players(200)
			seen := map[string]bool{}
			for _, p := range players {
				So(p, ShouldNotBeEmpty)
				So(seen[p], ShouldBeFalse)
				seen[p] = true
			}
			So(len(players), ShouldEqual, 200)
		})

		Convey("Then the same seed gives the same players", func() {
			So(NewGenerator(7).Players(5), ShouldResemble, NewGenerator(7).Players(5))
		})

		Convey("Then scores cycle through players and stay in range", func() {
			players := []string{"a", "b", "c"}
			scores := g.Scores(players, 7, 10)
			So(len(scores), ShouldEqual, 7)
			for i, s := range scores {
				So(s.Username, ShouldEqual, players[i%3])
				So(s.Score, ShouldBeBetweenOrEqual, 0.0, 10.0)
				So(s.Score, ShouldEqual, float64(int(s.Score)))
			}
		})
	})
}

func TestConfigValidate(t *testing.T) {
	Convey("Given simulator configs", t, func() {
		Convey("Then the defaults are valid", func() {
			cfg := DefaultConfig()
			So(cfg.validate(), ShouldBeNil)
		})

		Convey("Then bad values are rejected", func() {
			for _, mutate := range []func(*Config){
				func(c *Config) { c.Topic = "" },
				func(c *Config) { c.Events = 0 },
				func(c *Config) { c.Players = 0 },
				func(c *Config) { c.MaxScore = -1 },
				func(c *Config) { c.Verify = true; c.BaseURL = "" },
			} {
				cfg := DefaultConfig()
				mutate(&cfg)
				So(errors.Is(cfg.validate(), ErrInvalidConfig), ShouldBeTrue)
			}
		})

		Convey("Then missing workers and waits get defaults", func() {
			cfg := DefaultConfig()
			cfg.Workers, cfg.VerifyWait, cfg.Timeout = 0, 0, 0
			So(cfg.validate(), ShouldBeNil)
			So(cfg.Workers, ShouldEqual, 1)
			So(cfg.VerifyWait, ShouldBeGreaterThan, time.Duration(0))
			So(cfg.Timeout, ShouldBeGreaterThan, time.Duration(0))
		})
	})
}

func TestRunner(t *testing.T) {
	Convey("Given a runner over a fake broker and relay", t, func() {
		drv := brokertest.New()
		relay := &fakeRelay{drv: drv, base: 5}
		srv := httptest.NewServer(relay.handler())
		defer srv.Close()

		cfg := DefaultConfig()
		cfg.BaseURL = srv.URL
		cfg.Events = 25
		cfg.Players = 4
		cfg.Seed = 1
		cfg.VerifyWait = time.Second
		r := NewRunner(drv, nil, nil)
		ctx := context.Background()

		Convey("When publishing only", func() {
			stats, err := r.Run(ctx, cfg)

			Convey("Then every score goes to the topic as JSON", func() {
				So(err, ShouldBeNil)
				So(stats.Published, ShouldEqual, 25)
				So(stats.PublishFailed, ShouldEqual, 0)
				So(stats.Players, ShouldEqual, 4)
				pubs := drv.Published()
				So(len(pubs), ShouldEqual, 25)
				for _, p := range pubs {
					So(p.Topic, ShouldEqual, "simon/score")
					var s model.ScorePayload
					So(json.Unmarshal(p.Payload, &s), ShouldBeNil)
					So(s.Username, ShouldNotBeEmpty)
				}
				So(drv.Closes(), ShouldEqual, 1)
				So(stats.Duration, ShouldBeGreaterThan, time.Duration(0))
			})
		})

		Convey("When starting sessions and verifying", func() {
			cfg.Start = true
			cfg.Verify = true
			stats, err := r.Run(ctx, cfg)

			Convey("Then sessions are started for every player", func() {
				So(err, ShouldBeNil)
				So(stats.SessionsStarted, ShouldEqual, 4)
				So(len(relay.started), ShouldEqual, 4)
			})

			Convey("Then the stored count grew by the published events", func() {
				So(stats.Verified, ShouldBeTrue)
				So(stats.StoredBefore, ShouldEqual, int64(5))
				So(stats.StoredAfter, ShouldEqual, int64(30))
				So(stats.Newest, ShouldNotBeEmpty)
			})
		})

		Convey("When the relay refuses sessions", func() {
			relay.refuse = true
			cfg.Start = true
			stats, err := r.Run(ctx, cfg)

			Convey("Then failures are counted and publishing continues", func() {
				So(err, ShouldBeNil)
				So(stats.SessionsFailed, ShouldEqual, 4)
				So(stats.Published, ShouldEqual, 25)
			})
		})

		Convey("When the relay never stores the scores", func() {
			relay.lag = true
			cfg.Verify = true
			cfg.VerifyWait = 300 * time.Millisecond
			stats, err := r.Run(ctx, cfg)

			Convey("Then verification fails", func() {
				So(errors.Is(err, ErrVerifyFailed), ShouldBeTrue)
				So(stats.Verified, ShouldBeFalse)
				So(stats.StoredAfter, ShouldEqual, int64(5))
			})
		})

		Convey("When the broker rejects publishes", func() {
			drv.FailPublish(errors.New("nope"))
			stats, err := r.Run(ctx, cfg)

			Convey("Then they are counted as failed", func() {
				So(err, ShouldBeNil)
				So(stats.Published, ShouldEqual, 0)
				So(stats.PublishFailed, ShouldEqual, 25)
			})
		})

		Convey("When the broker cannot be reached", func() {
			drv.FailDials(errors.New("refused"))
			_, err := r.Run(ctx, cfg)

			Convey("Then Run fails", func() {
				So(err, ShouldNotBeNil)
				So(len(drv.Published()), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a relay that is down", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		cfg := DefaultConfig()
		cfg.BaseURL = srv.URL
		cfg.Verify = true

		Convey("Then the health check stops the run", func() {
			_, err := NewRunner(brokertest.New(), nil, nil).Run(context.Background(), cfg)
			So(errors.Is(err, ErrUnhealthy), ShouldBeTrue)
		})
	})
}
