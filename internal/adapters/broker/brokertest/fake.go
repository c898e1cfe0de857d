// Package brokertest provides an in-process broker.Driver for tests.
package brokertest

import (
	"context"
	"errors"
	"sync"

	"github.com/okian/simon-relay/internal/adapters/broker"
	"github.com/okian/simon-relay/internal/domain/model"
)

// Published is one recorded publish.
type Published struct {
	Topic   string
	Payload []byte
	Opts    broker.PublishOptions
}

// Driver records every call and lets tests drop the session or deliver
// messages. The zero value is not usable; call New.
type Driver struct {
	mu         sync.Mutex
	dialErrs   []error
	publishErr error
	subErr     error
	onLost     func(error)
	open       bool
	dials      int
	closes     int
	subscribed []string
	handlers   map[string]broker.Handler
	published  []Published
}

// New returns a fake driver whose dials succeed.
func New() *Driver {
	return &Driver{handlers: make(map[string]broker.Handler)}
}

// FailDials makes the next len(errs) dials fail with errs in order.
func (d *Driver) FailDials(errs ...error) {
	d.mu.Lock()
	d.dialErrs = append(d.dialErrs, errs...)
	d.mu.Unlock()
}

// FailPublish makes every publish return err. nil restores success.
func (d *Driver) FailPublish(err error) {
	d.mu.Lock()
	d.publishErr = err
	d.mu.Unlock()
}

// FailSubscribe makes every subscribe return err.
func (d *Driver) FailSubscribe(err error) {
	d.mu.Lock()
	d.subErr = err
	d.mu.Unlock()
}

// Name implements broker.Driver.
func (d *Driver) Name() string { return "fake" }

// Dial implements broker.Driver.
func (d *Driver) Dial(ctx context.Context, onLost func(error)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(d.dialErrs) > 0 {
		err := d.dialErrs[0]
		d.dialErrs = d.dialErrs[1:]
		return err
	}
	d.onLost = onLost
	d.open = true
	d.handlers = make(map[string]broker.Handler)
	return nil
}

// Subscribe implements broker.Driver.
func (d *Driver) Subscribe(_ context.Context, topic string, _ byte, h broker.Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return broker.ErrNotConnected
	}
	if d.subErr != nil {
		return d.subErr
	}
	d.subscribed = append(d.subscribed, topic)
	d.handlers[topic] = h
	return nil
}

// Publish implements broker.Driver.
func (d *Driver) Publish(_ context.Context, topic string, payload []byte, opts broker.PublishOptions) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return broker.ErrNotConnected
	}
	if d.publishErr != nil {
		return d.publishErr
	}
	p := make([]byte, len(payload))
	copy(p, payload)
	d.published = append(d.published, Published{Topic: topic, Payload: p, Opts: opts})
	return nil
}

// Close implements broker.Driver.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	d.open = false
	d.onLost = nil
	return nil
}

// Drop simulates an unexpected connection loss.
func (d *Driver) Drop(cause error) {
	d.mu.Lock()
	lost := d.onLost
	d.onLost = nil
	d.open = false
	d.mu.Unlock()
	if cause == nil {
		cause = errors.New("connection reset")
	}
	if lost != nil {
		lost(cause)
	}
}

// Deliver hands payload to the handler subscribed on topic. It reports
// whether a handler was found.
func (d *Driver) Deliver(ctx context.Context, topic string, payload []byte) bool {
	d.mu.Lock()
	h, ok := d.handlers[topic]
	d.mu.Unlock()
	if !ok {
		return false
	}
	h(ctx, model.InboundMessage{Topic: topic, Payload: payload})
	return true
}

// Dials returns the number of dial attempts.
func (d *Driver) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// Closes returns the number of Close calls.
func (d *Driver) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

// Subscribed returns every topic subscribed so far, across sessions.
func (d *Driver) Subscribed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.subscribed))
	copy(out, d.subscribed)
	return out
}

// Published returns every successful publish.
func (d *Driver) Published() []Published {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Published, len(d.published))
	copy(out, d.published)
	return out
}
