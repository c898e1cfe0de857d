package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/simon-relay/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should match the original deployment defaults", func() {
			convey.So(cfg.Port, convey.ShouldEqual, 3003)
			convey.So(cfg.Addr(), convey.ShouldEqual, ":3003")
			convey.So(cfg.BrokerDriver, convey.ShouldEqual, config.BrokerMQTT)
			convey.So(cfg.KeepAlive(), convey.ShouldEqual, 20*time.Second)
			convey.So(cfg.ReconnectPeriod(), convey.ShouldEqual, time.Second)
			convey.So(cfg.ConnectTimeout(), convey.ShouldEqual, 30*time.Second)
			convey.So(cfg.StartTopic, convey.ShouldEqual, "simon/start")
			convey.So(cfg.ScoreTopic, convey.ShouldEqual, "simon/score")
			convey.So(cfg.LegacyTopic, convey.ShouldEqual, "test/topic")
			convey.So(cfg.QoS, convey.ShouldEqual, 0)
			convey.So(cfg.PersistScores, convey.ShouldBeTrue)
			convey.So(cfg.PollInterval(), convey.ShouldEqual, 2*time.Second)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then the client id carries the prefix and start time", func() {
			at := time.UnixMilli(1700000000123)
			convey.So(cfg.ClientID(at), convey.ShouldEqual, "node_client_1700000000123")
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with one invalid field", t, func() {
		cases := map[string]func(c *config.Config){
			"port":               func(c *config.Config) { c.Port = 0 },
			"high port":          func(c *config.Config) { c.Port = 70000 },
			"broker driver":      func(c *config.Config) { c.BrokerDriver = "kafka" },
			"broker url":         func(c *config.Config) { c.BrokerURL = " " },
			"strategy":           func(c *config.Config) { c.ReconnectStrategy = "random" },
			"reconnect period":   func(c *config.Config) { c.ReconnectPeriodMS = 0 },
			"max attempts":       func(c *config.Config) { c.ReconnectMaxAttempts = -1 },
			"connect timeout":    func(c *config.Config) { c.ConnectTimeoutMS = 0 },
			"qos":                func(c *config.Config) { c.QoS = 3 },
			"start topic":        func(c *config.Config) { c.StartTopic = "" },
			"score topic":        func(c *config.Config) { c.ScoreTopic = "" },
			"legacy topic":       func(c *config.Config) { c.LegacyTopic = "" },
			"same topics":        func(c *config.Config) { c.LegacyTopic = c.ScoreTopic },
			"store driver":       func(c *config.Config) { c.StoreDriver = "sqlite" },
			"poll interval":      func(c *config.Config) { c.PollIntervalMS = 0 },
			"negative keepalive": func(c *config.Config) { c.KeepaliveSeconds = -1 },
		}
		for name, mutate := range cases {
			convey.Convey("When the "+name+" is invalid", func() {
				cfg := config.New()
				mutate(cfg)
				err := cfg.Validate()

				convey.Convey("Then validation fails with ErrInvalidConfig", func() {
					convey.So(err, convey.ShouldNotBeNil)
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				})
			})
		}

		convey.Convey("Then an empty legacy topic is fine when legacy is disabled", func() {
			cfg := config.New()
			cfg.LegacyEnabled = false
			cfg.LegacyTopic = ""
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
