package simulator

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/simon-relay/internal/adapters/broker"
	"github.com/okian/simon-relay/internal/domain/codec"
	"github.com/okian/simon-relay/pkg/logger"
)

const verifyPollInterval = 200 * time.Millisecond

// Runner executes simulator runs against one broker driver.
type Runner struct {
	driver broker.Driver
	client *Client
	log    logger.Logger
}

// NewRunner creates a runner. client may be nil when neither sessions nor
// verification are requested.
func NewRunner(driver broker.Driver, client *Client, log logger.Logger) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{driver: driver, client: client, log: log}
}

// Run publishes cfg.Events scores and, when asked, starts sessions first and
// verifies persistence afterwards.
func (r *Runner) Run(ctx context.Context, cfg Config) (stats Stats, err error) {
	if err := cfg.validate(); err != nil {
		return stats, err
	}
	if (cfg.Start || cfg.Verify) && r.client == nil {
		r.client = NewClient(cfg.BaseURL, cfg.Timeout)
	}
	began := time.Now()
	defer func() { stats.Duration = time.Since(began) }()

	if r.client != nil && (cfg.Start || cfg.Verify) {
		if err := r.client.Health(ctx); err != nil {
			return stats, fmt.Errorf("%w: %w", ErrUnhealthy, err)
		}
	}
	if cfg.Verify {
		n, err := r.client.StoredScores(ctx)
		if err != nil {
			return stats, err
		}
		stats.StoredBefore = n
	}

	if err := r.driver.Dial(ctx, func(err error) {
		r.log.Warn(ctx, "broker connection lost", logger.Error(err))
	}); err != nil {
		return stats, err
	}
	defer func() {
		if err := r.driver.Close(); err != nil {
			r.log.Warn(ctx, "closing broker session", logger.Error(err))
		}
	}()

	gen := NewGenerator(cfg.Seed)
	players := gen.Players(cfg.Players)
	stats.Players = len(players)

	if cfg.Start {
		started, failed := r.startSessions(ctx, cfg, players)
		stats.SessionsStarted, stats.SessionsFailed = started, failed
	}

	published, failed := r.publish(ctx, cfg, gen, players)
	stats.Published, stats.PublishFailed = published, failed
	r.log.Info(ctx, "scores published",
		logger.Int("published", published),
		logger.Int("failed", failed),
		logger.String("topic", cfg.Topic))

	if cfg.Verify {
		after, err := r.awaitStored(ctx, cfg, stats.StoredBefore+int64(published))
		stats.StoredAfter = after
		if err != nil {
			return stats, err
		}
		stats.Verified = true
		if latest, err := r.client.LatestScores(ctx, 1); err == nil && len(latest) > 0 {
			stats.Newest = latest[0].Payload.Username
		}
	}
	return stats, nil
}

func (r *Runner) startSessions(ctx context.Context, cfg Config, players []string) (started, failed int) {
	var ok, bad atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, p := range players {
		g.Go(func() error {
			if err := r.client.StartSession(gctx, p); err != nil {
				bad.Add(1)
				r.log.Warn(gctx, "start session failed", logger.String("username", p), logger.Error(err))
				return nil
			}
			ok.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(ok.Load()), int(bad.Load())
}

func (r *Runner) publish(ctx context.Context, cfg Config, gen *Generator, players []string) (published, failed int) {
	var ok, bad atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, s := range gen.Scores(players, cfg.Events, cfg.MaxScore) {
		g.Go(func() error {
			body, err := codec.EncodeScore(s)
			if err == nil {
				err = r.driver.Publish(gctx, cfg.Topic, body, broker.PublishOptions{})
			}
			if err != nil {
				bad.Add(1)
				r.log.Debug(gctx, "publish failed", logger.String("username", s.Username), logger.Error(err))
				return nil
			}
			ok.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(ok.Load()), int(bad.Load())
}

func (r *Runner) awaitStored(ctx context.Context, cfg Config, want int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.VerifyWait)
	defer cancel()

	ticker := time.NewTicker(verifyPollInterval)
	defer ticker.Stop()

	var got int64
	for {
		n, err := r.client.StoredScores(ctx)
		if err == nil {
			got = n
			if got >= want {
				return got, nil
			}
		}
		select {
		case <-ctx.Done():
			return got, fmt.Errorf("%w: want at least %d, have %d", ErrVerifyFailed, want, got)
		case <-ticker.C:
		}
	}
}
