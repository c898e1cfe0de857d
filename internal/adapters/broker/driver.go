// Package broker owns the publish/subscribe session: a Driver per transport
// and a Manager that applies the reconnect policy and tracks connection state.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/simon-relay/internal/config"
	"github.com/okian/simon-relay/internal/domain/model"
	"github.com/okian/simon-relay/pkg/logger"
)

// Handler receives messages delivered on a subscribed topic.
type Handler func(ctx context.Context, msg model.InboundMessage)

// PublishOptions control a single publish.
type PublishOptions struct {
	QoS    byte
	Retain bool
}

// Driver is one transport session. Drivers never reconnect on their own;
// after onLost fires the Manager closes the driver and dials again.
type Driver interface {
	// Dial opens a session. onLost is called at most once per session when
	// it drops unexpectedly.
	Dial(ctx context.Context, onLost func(error)) error
	Subscribe(ctx context.Context, topic string, qos byte, h Handler) error
	Publish(ctx context.Context, topic string, payload []byte, opts PublishOptions) error
	Close() error
	Name() string
}

// DriverConfig carries transport settings shared by all drivers.
type DriverConfig struct {
	URL            string
	ClientID       string
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
}

// NewDriver builds the driver named by cfg.BrokerDriver.
func NewDriver(cfg *config.Config, log logger.Logger) (Driver, error) {
	dc := DriverConfig{
		URL:            cfg.BrokerURL,
		ClientID:       cfg.ClientID(time.Now()),
		KeepAlive:      cfg.KeepAlive(),
		ConnectTimeout: cfg.ConnectTimeout(),
	}
	switch cfg.BrokerDriver {
	case config.BrokerMQTT:
		return NewMQTTDriver(dc, log), nil
	case config.BrokerNATS:
		return NewNATSDriver(dc, log), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.BrokerDriver)
	}
}
