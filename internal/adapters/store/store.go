// Package store persists score records and lists them newest first.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/simon-relay/internal/config"
	"github.com/okian/simon-relay/internal/domain/model"
	"github.com/okian/simon-relay/pkg/logger"
	"github.com/okian/simon-relay/pkg/metrics"
)

// Sentinel errors for store operations.
var (
	ErrUnknownDriver = errors.New("unknown store driver")
	ErrNilRecord     = errors.New("nil score record")
	ErrClosed        = errors.New("store is closed")
)

// CollectionName is the collection (or table) holding score records.
const CollectionName = "scores"

// Store is the persistence adapter. Every Save creates a new record; there
// is no uniqueness constraint.
type Store interface {
	// Save inserts rec, filling ID and Date when they are empty.
	Save(ctx context.Context, rec *model.ScoreRecord) error
	// FindAllOrderedByDateDescending returns up to limit records, newest
	// first. limit <= 0 returns every record.
	FindAllOrderedByDateDescending(ctx context.Context, limit int) ([]model.ScoreRecord, error)
	Count(ctx context.Context) (int64, error)
	Close(ctx context.Context) error
	Name() string
}

// Open connects the store selected by cfg.StoreDriver.
func Open(ctx context.Context, cfg *config.Config, log logger.Logger) (Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		return NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, log)
	case config.StorePostgres:
		return NewPostgres(ctx, cfg.PostgresDSN, log)
	case config.StoreMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.StoreDriver)
	}
}

// prepare fills the generated fields of rec.
func prepare(rec *model.ScoreRecord, now time.Time) error {
	if rec == nil {
		return ErrNilRecord
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Date.IsZero() {
		rec.Date = now
	}
	return nil
}

func observe(driver, op string, start time.Time, err error) {
	metrics.RecordStoreOperation(driver, op, err, float64(time.Since(start).Milliseconds()))
}
