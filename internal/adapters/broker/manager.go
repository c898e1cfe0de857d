package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/okian/simon-relay/internal/domain/model"
	"github.com/okian/simon-relay/pkg/logger"
	"github.com/okian/simon-relay/pkg/metrics"
)

// Transition is emitted whenever the connection state changes.
type Transition struct {
	State   model.ConnectionState
	At      time.Time
	Err     error
	Attempt int
}

type subscription struct {
	topic   string
	qos     byte
	handler Handler
	// session is the generation this topic was last subscribed on.
	session uint64
}

// Manager keeps one broker session alive according to its ReconnectPolicy.
// It subscribes every registered topic after each successful dial.
type Manager struct {
	driver Driver
	policy ReconnectPolicy
	log    logger.Logger
	now    func() time.Time

	mu        sync.RWMutex
	state     model.ConnectionState
	subs      []*subscription
	session   uint64
	listeners []func(Transition)
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewManager creates a disconnected manager for driver.
func NewManager(driver Driver, opts ...Option) *Manager {
	m := &Manager{
		driver: driver,
		policy: DefaultReconnectPolicy(),
		log:    logger.Nop(),
		now:    time.Now,
		state:  model.StateDisconnected,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle registers h for topic. If the session is already up the topic is
// subscribed immediately, otherwise on the next connect. Each topic is
// subscribed at most once per session.
func (m *Manager) Handle(topic string, qos byte, h Handler) {
	m.mu.Lock()
	sub := &subscription{topic: topic, qos: qos, handler: h}
	m.subs = append(m.subs, sub)
	now := m.state.Connected() && m.ctx != nil
	if now {
		sub.session = m.session
	}
	ctx := m.ctx
	m.mu.Unlock()

	if now {
		m.subscribe(ctx, *sub)
	}
}

// OnTransition registers fn to be called on every state change, in order,
// from the manager goroutine.
func (m *Manager) OnTransition(fn func(Transition)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Connected reports whether the session is up.
func (m *Manager) Connected() bool {
	return m.State().Connected()
}

// State returns the current connection state.
func (m *Manager) State() model.ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Start launches the connection loop. It returns immediately; connection
// failures are reported through transitions, never as errors.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.done != nil {
		m.mu.Unlock()
		return
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	loopCtx, done := m.ctx, m.done
	m.mu.Unlock()

	m.log.Info(ctx, "starting broker connection", logger.String("driver", m.driver.Name()))
	go m.run(loopCtx, done)
}

// Stop ends the loop and closes the session. Safe to call more than once.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Publish sends payload on topic. It fails fast with ErrNotConnected when
// the session is down.
func (m *Manager) Publish(ctx context.Context, topic string, payload []byte, opts PublishOptions) error {
	if !m.Connected() {
		metrics.RecordPublishRejected(topic)
		return ErrNotConnected
	}

	start := time.Now()
	err := m.driver.Publish(ctx, topic, payload, opts)
	metrics.RecordPublish(topic, err, float64(time.Since(start).Milliseconds()))
	if err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (m *Manager) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	schedule := m.policy.NewBackOff()
	attempt := 0
	for {
		lost := make(chan error, 1)
		err := m.driver.Dial(ctx, func(cause error) {
			if cause == nil {
				cause = errors.New("connection lost")
			}
			select {
			case lost <- cause:
			default:
			}
		})

		if err == nil {
			attempt = 0
			schedule.Reset()
			m.mu.Lock()
			m.session++
			m.mu.Unlock()
			m.transition(ctx, model.StateConnected, nil, 0)
			m.subscribeAll(ctx)

			select {
			case <-ctx.Done():
				m.shutdown(ctx)
				return
			case err = <-lost:
				m.log.Error(ctx, "broker connection lost", logger.Error(err))
			}
		} else {
			m.log.Error(ctx, "broker connect failed", logger.Error(err), logger.Int("attempt", attempt))
		}

		if ctx.Err() != nil {
			m.shutdown(ctx)
			return
		}

		m.transition(ctx, model.StateDisconnected, err, attempt)
		if cerr := m.driver.Close(); cerr != nil {
			m.log.Debug(ctx, "closing broker session", logger.Error(cerr))
		}

		wait := schedule.NextBackOff()
		if wait == backoff.Stop {
			m.log.Error(ctx, "giving up on broker connection",
				logger.Int("attempts", attempt),
				logger.Int("max_attempts", m.policy.MaxAttempts))
			return
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		attempt++
		metrics.RecordReconnectAttempt()
		m.log.Info(ctx, "reconnecting to broker", logger.Int("attempt", attempt), logger.Duration("after", wait))
	}
}

func (m *Manager) shutdown(ctx context.Context) {
	if err := m.driver.Close(); err != nil {
		m.log.Warn(ctx, "closing broker session", logger.Error(err))
	}
	m.transition(ctx, model.StateDisconnected, ErrStopped, 0)
}

// subscribeAll subscribes every topic not yet claimed for the current
// session. Handle may claim a topic concurrently.
func (m *Manager) subscribeAll(ctx context.Context) {
	m.mu.Lock()
	subs := make([]subscription, 0, len(m.subs))
	for _, s := range m.subs {
		if s.session == m.session {
			continue
		}
		s.session = m.session
		subs = append(subs, *s)
	}
	m.mu.Unlock()

	for _, s := range subs {
		m.subscribe(ctx, s)
	}
}

func (m *Manager) subscribe(ctx context.Context, s subscription) {
	if err := m.driver.Subscribe(ctx, s.topic, s.qos, s.handler); err != nil {
		metrics.RecordSubscribeFailure(s.topic)
		m.log.Error(ctx, "subscribe failed", logger.String("topic", s.topic), logger.Error(err))
		return
	}
	m.log.Info(ctx, "subscribed", logger.String("topic", s.topic))
}

func (m *Manager) transition(ctx context.Context, s model.ConnectionState, err error, attempt int) {
	m.mu.Lock()
	if m.state == s {
		m.mu.Unlock()
		return
	}
	m.state = s
	listeners := make([]func(Transition), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	metrics.RecordBrokerTransition(s.Connected())
	fields := []logger.Field{logger.String("state", s.String()), logger.String("driver", m.driver.Name())}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	m.log.Info(ctx, "broker connection state changed", fields...)

	t := Transition{State: s, At: m.now(), Err: err, Attempt: attempt}
	for _, fn := range listeners {
		fn(t)
	}
}
