package broker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nats-io/nats.go"

	"github.com/okian/simon-relay/internal/domain/model"
	"github.com/okian/simon-relay/pkg/logger"
)

// NATSDriver is a Driver backed by core NATS. Topics are used as subjects
// verbatim. QoS and retain flags have no NATS equivalent and are ignored.
type NATSDriver struct {
	cfg DriverConfig
	log logger.Logger

	mu      sync.Mutex
	conn    *nats.Conn
	closing atomic.Bool
}

// NewNATSDriver returns a NATS driver for nats:// or tls:// URLs.
func NewNATSDriver(cfg DriverConfig, log logger.Logger) *NATSDriver {
	if log == nil {
		log = logger.Nop()
	}
	return &NATSDriver{cfg: cfg, log: log}
}

// Name implements Driver.
func (d *NATSDriver) Name() string { return "nats" }

// Dial implements Driver.
func (d *NATSDriver) Dial(ctx context.Context, onLost func(error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.closing.Store(false)

	opts := []nats.Option{
		nats.Name(d.cfg.ClientID),
		nats.NoReconnect(),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if d.closing.Load() {
				return
			}
			onLost(err)
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			d.log.Error(ctx, "nats async error", logger.String("subject", subject), logger.Error(err))
		}),
	}
	if d.cfg.ConnectTimeout > 0 {
		opts = append(opts, nats.Timeout(d.cfg.ConnectTimeout))
	}
	if d.cfg.KeepAlive > 0 {
		opts = append(opts, nats.PingInterval(d.cfg.KeepAlive), nats.MaxPingsOutstanding(2))
	}

	conn, err := nats.Connect(d.cfg.URL, opts...)
	if err != nil {
		return fmt.Errorf("nats connect %s: %w", d.cfg.URL, err)
	}

	d.mu.Lock()
	d.conn = conn
	d.mu.Unlock()
	return nil
}

// Subscribe implements Driver.
func (d *NATSDriver) Subscribe(ctx context.Context, topic string, _ byte, h Handler) error {
	conn, err := d.current()
	if err != nil {
		return err
	}
	_, err = conn.Subscribe(topic, func(m *nats.Msg) {
		h(ctx, model.InboundMessage{Topic: m.Subject, Payload: m.Data})
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", topic, err)
	}
	if err := d.flush(ctx, conn); err != nil {
		return fmt.Errorf("nats subscribe %s: %w", topic, err)
	}
	return nil
}

// Publish implements Driver. It waits for the server to acknowledge the
// flush so callers observe write failures.
func (d *NATSDriver) Publish(ctx context.Context, topic string, payload []byte, _ PublishOptions) error {
	conn, err := d.current()
	if err != nil {
		return err
	}
	if err := conn.Publish(topic, payload); err != nil {
		return err
	}
	return d.flush(ctx, conn)
}

// flush needs a deadline; the connect timeout bounds it when ctx has none.
func (d *NATSDriver) flush(ctx context.Context, conn *nats.Conn) error {
	if _, ok := ctx.Deadline(); !ok {
		timeout := d.cfg.ConnectTimeout
		if timeout <= 0 {
			timeout = nats.DefaultTimeout
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return conn.FlushWithContext(ctx)
}

// Close implements Driver.
func (d *NATSDriver) Close() error {
	d.mu.Lock()
	conn := d.conn
	d.conn = nil
	d.mu.Unlock()

	if conn != nil {
		d.closing.Store(true)
		conn.Close()
	}
	return nil
}

func (d *NATSDriver) current() (*nats.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil || !d.conn.IsConnected() {
		return nil, ErrNotConnected
	}
	return d.conn, nil
}
