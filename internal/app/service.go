// Package service composes the relay: broker session, state container,
// persistence pipeline and store. It implements the dependencies required
// by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/simon-relay/internal/adapters/broker"
	"github.com/okian/simon-relay/internal/adapters/mq/queue"
	"github.com/okian/simon-relay/internal/adapters/mq/worker"
	"github.com/okian/simon-relay/internal/adapters/store"
	"github.com/okian/simon-relay/internal/config"
	"github.com/okian/simon-relay/internal/domain/model"
	"github.com/okian/simon-relay/internal/relay"
	"github.com/okian/simon-relay/internal/state"
	"github.com/okian/simon-relay/pkg/logger"
	"github.com/okian/simon-relay/pkg/metrics"
)

const (
	stopTimeout  = 30 * time.Second
	statsTimeout = 2 * time.Second
)

var (
	// ErrNotStarted is returned by store reads issued before Start.
	ErrNotStarted = errors.New("service not started")
	// ErrStopped is returned by Start once the service has been stopped.
	// Stop closes the store, so a stopped service cannot be reused.
	ErrStopped = errors.New("service stopped")
)

// Service implements the API dependencies for the relay.
type Service struct {
	mu sync.RWMutex

	// Core components
	cfg     *config.Config
	driver  broker.Driver
	manager *broker.Manager
	scores  store.Store
	queue   *queue.InMemoryQueue
	pool    *worker.Pool
	state   *state.Container
	relay   *relay.Relay

	// Configuration
	workerCount int
	queueSize   int

	// State
	started   bool
	stopped   bool
	startedAt time.Time
	cancel    context.CancelFunc

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig replaces the default configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithDriver injects the broker driver instead of building one from config.
func WithDriver(d broker.Driver) Option {
	return func(s *Service) {
		s.driver = d
	}
}

// WithStore injects the score store instead of opening one from config.
func WithStore(st store.Store) Option {
	return func(s *Service) {
		s.scores = st
	}
}

// WithWorkerCount sets the number of persistence workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the persistence queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service. Sizes not set through options come from the
// configuration.
func New(opts ...Option) *Service {
	s := &Service{
		cfg:    config.New(),
		logger: nil, // replaced on Start
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.workerCount == 0 {
		s.workerCount = s.cfg.WorkerCount
	}
	if s.queueSize == 0 {
		s.queueSize = s.cfg.QueueSize
	}
	s.state = state.New(s.cfg.RecentScores)
	return s
}

// Start opens the store, starts the persistence workers and launches the
// broker session. A broker that cannot be reached is not an error; the
// session keeps retrying in the background.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	if s.scores == nil {
		st, err := store.Open(ctx, s.cfg, s.logger.Named("store"))
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		s.scores = st
	}

	if s.driver == nil {
		d, err := broker.NewDriver(s.cfg, s.logger.Named("broker"))
		if err != nil {
			_ = s.scores.Close(ctx)
			return fmt.Errorf("broker driver: %w", err)
		}
		s.driver = d
	}
	s.logger.Info(ctx, "starting relay service...",
		logger.String("broker", s.driver.Name()),
		logger.String("store", s.cfg.StoreDriver))

	// Components outlive the start request; Stop owns their shutdown.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	relayOpts := []relay.Option{
		relay.WithTopics(relay.Topics{
			Start:  s.cfg.StartTopic,
			Score:  s.cfg.ScoreTopic,
			Legacy: s.cfg.LegacyTopic,
		}),
		relay.WithQoS(byte(s.cfg.QoS)),
		relay.WithLegacy(s.cfg.LegacyEnabled),
		relay.WithLogger(s.logger.Named("relay")),
	}
	if s.cfg.PersistScores {
		s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
		s.pool = worker.NewPool(s.workerCount, s.queue, s.scores, worker.WithLogger(s.logger))
		s.pool.Start(runCtx)
		relayOpts = append(relayOpts, relay.WithSink(s.queue))
	}

	s.manager = broker.NewManager(s.driver,
		broker.WithReconnectPolicy(broker.ReconnectPolicy{
			Strategy:    s.cfg.ReconnectStrategy,
			Delay:       s.cfg.ReconnectPeriod(),
			MaxDelay:    s.cfg.ReconnectMaxDelay(),
			MaxAttempts: s.cfg.ReconnectMaxAttempts,
		}),
		broker.WithLogger(s.logger.Named("broker")),
	)
	s.relay = relay.New(s.manager, s.state, relayOpts...)

	st := s.state
	s.manager.OnTransition(func(t broker.Transition) {
		st.SetConnection(t.State, t.At, t.Err)
	})
	for _, topic := range s.relay.Topics() {
		s.manager.Handle(topic, s.relay.QoS(), s.relay.HandleMessage)
	}
	s.manager.Start(runCtx)

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "relay service started",
		logger.Bool("persist", s.cfg.PersistScores),
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Any("topics", s.relay.Topics()),
	)
	return nil
}

// Stop ends the broker session, drains pending scores into the store and
// closes it. Safe to call more than once; Start fails with ErrStopped
// afterwards.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping relay service...")

	s.manager.Stop()
	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
		}
	}
	if err := s.scores.Close(ctx); err != nil {
		s.logger.Warn(ctx, "closing store", logger.Error(err))
	}
	s.cancel()

	s.started = false
	s.stopped = true
	s.logger.Info(ctx, "relay service stopped")
}

func (s *Service) current() *relay.Relay {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.relay
}

// StartSession publishes a start command for username.
func (s *Service) StartSession(ctx context.Context, username string) relay.PublishResult {
	r := s.current()
	if r == nil {
		return notStarted(s.cfg.StartTopic)
	}
	return r.StartSession(ctx, username)
}

// PublishLegacyStart publishes the bare "start" payload on the legacy topic.
func (s *Service) PublishLegacyStart(ctx context.Context) relay.PublishResult {
	r := s.current()
	if r == nil {
		return notStarted(s.cfg.LegacyTopic)
	}
	return r.PublishLegacyStart(ctx)
}

// PublishTestMessage publishes the fixed test message on the legacy topic.
func (s *Service) PublishTestMessage(ctx context.Context) relay.PublishResult {
	r := s.current()
	if r == nil {
		return notStarted(s.cfg.LegacyTopic)
	}
	return r.PublishTestMessage(ctx)
}

func notStarted(topic string) relay.PublishResult {
	return relay.PublishResult{Topic: topic, Err: fmt.Errorf("%w: %w", relay.ErrDisconnected, ErrNotStarted)}
}

// Snapshot returns a copy of the relay state. Before Start it reports a
// disconnected session with no scores.
func (s *Service) Snapshot() state.Snapshot {
	return s.state.Snapshot()
}

// FindAllOrderedByDateDescending lists persisted scores, newest first.
func (s *Service) FindAllOrderedByDateDescending(ctx context.Context, limit int) ([]model.ScoreRecord, error) {
	s.mu.RLock()
	st, started := s.scores, s.started
	s.mu.RUnlock()
	if !started || st == nil {
		return nil, ErrNotStarted
	}
	return st.FindAllOrderedByDateDescending(ctx, limit)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.state.Snapshot()
	stats := map[string]interface{}{
		"started":        s.started,
		"brokerDriver":   s.cfg.BrokerDriver,
		"storeDriver":    s.cfg.StoreDriver,
		"connection":     snap.Connection.String(),
		"persistScores":  s.cfg.PersistScores,
		"workerCount":    s.workerCount,
		"queueSize":      s.queueSize,
		"scoresReceived": snap.ScoresReceived,
		"recentScores":   len(snap.RecentScores),
	}
	if !s.started {
		return stats
	}

	stats["uptimeSeconds"] = int64(time.Since(s.startedAt).Seconds())
	stats["topics"] = s.relay.Topics()

	if s.queue != nil {
		ctx := context.Background()
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		metrics.UpdateQueueSize(queueLen)
	}
	if s.pool != nil {
		saved, failed := s.pool.Stats()
		stats["scoresSaved"] = saved
		stats["scoresFailed"] = failed
	}

	ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
	defer cancel()
	if n, err := s.scores.Count(ctx); err == nil {
		stats["storedScores"] = n
	} else {
		stats["storeError"] = err.Error()
	}
	return stats
}
