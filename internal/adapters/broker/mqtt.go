package broker

import (
	"context"
	"fmt"
	"strings"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/okian/simon-relay/internal/domain/model"
	"github.com/okian/simon-relay/pkg/logger"
)

// MQTTDriver is a Driver backed by the paho MQTT client. Paho's own
// reconnect logic is turned off.
type MQTTDriver struct {
	cfg DriverConfig
	log logger.Logger

	mu     sync.Mutex
	client mqtt.Client
}

var routePahoLogs sync.Once

// NewMQTTDriver returns an MQTT driver. URLs use tcp, ssl, ws or wss schemes.
func NewMQTTDriver(cfg DriverConfig, log logger.Logger) *MQTTDriver {
	if log == nil {
		log = logger.Nop()
	}
	routePahoLogs.Do(func() {
		mqtt.ERROR = pahoLogger{log: log, level: "error"}
		mqtt.CRITICAL = pahoLogger{log: log, level: "error"}
		mqtt.WARN = pahoLogger{log: log, level: "warn"}
	})
	return &MQTTDriver{cfg: cfg, log: log}
}

// Name implements Driver.
func (d *MQTTDriver) Name() string { return "mqtt" }

// Dial implements Driver.
func (d *MQTTDriver) Dial(ctx context.Context, onLost func(error)) error {
	opts := mqtt.NewClientOptions().
		AddBroker(d.cfg.URL).
		SetClientID(d.cfg.ClientID).
		SetKeepAlive(d.cfg.KeepAlive).
		SetConnectTimeout(d.cfg.ConnectTimeout).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			onLost(err)
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if err := waitToken(ctx, token); err != nil {
		client.Disconnect(0)
		return fmt.Errorf("mqtt connect %s: %w", d.cfg.URL, err)
	}

	d.mu.Lock()
	d.client = client
	d.mu.Unlock()
	return nil
}

// Subscribe implements Driver.
func (d *MQTTDriver) Subscribe(ctx context.Context, topic string, qos byte, h Handler) error {
	client, err := d.current()
	if err != nil {
		return err
	}
	token := client.Subscribe(topic, qos, func(_ mqtt.Client, m mqtt.Message) {
		h(ctx, model.InboundMessage{
			Topic:     m.Topic(),
			Payload:   m.Payload(),
			QoS:       m.Qos(),
			Retained:  m.Retained(),
			MessageID: m.MessageID(),
		})
	})
	if err := waitToken(ctx, token); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", topic, err)
	}
	return nil
}

// Publish implements Driver.
func (d *MQTTDriver) Publish(ctx context.Context, topic string, payload []byte, opts PublishOptions) error {
	client, err := d.current()
	if err != nil {
		return err
	}
	return waitToken(ctx, client.Publish(topic, opts.QoS, opts.Retain, payload))
}

// Close implements Driver.
func (d *MQTTDriver) Close() error {
	d.mu.Lock()
	client := d.client
	d.client = nil
	d.mu.Unlock()

	if client != nil && client.IsConnected() {
		client.Disconnect(250)
	}
	return nil
}

func (d *MQTTDriver) current() (mqtt.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client == nil || !d.client.IsConnectionOpen() {
		return nil, ErrNotConnected
	}
	return d.client, nil
}

func waitToken(ctx context.Context, t mqtt.Token) error {
	select {
	case <-t.Done():
		return t.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pahoLogger routes paho's package-level loggers into pkg/logger.
type pahoLogger struct {
	log   logger.Logger
	level string
}

func (p pahoLogger) Println(v ...interface{}) {
	p.emit(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (p pahoLogger) Printf(format string, v ...interface{}) {
	p.emit(fmt.Sprintf(format, v...))
}

func (p pahoLogger) emit(msg string) {
	ctx := context.Background()
	if p.level == "warn" {
		p.log.Warn(ctx, msg, logger.String("lib", "paho"))
		return
	}
	p.log.Error(ctx, msg, logger.String("lib", "paho"))
}
