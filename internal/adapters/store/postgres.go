package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/okian/simon-relay/internal/domain/model"
	"github.com/okian/simon-relay/pkg/logger"
)

// scoreRow is the relational layout of a ScoreRecord.
type scoreRow struct {
	bun.BaseModel `bun:"table:scores,alias:s"`

	ID        string    `bun:"id,pk,type:uuid"`
	Topic     string    `bun:"topic,notnull"`
	Username  string    `bun:"username,notnull"`
	Score     float64   `bun:"score,notnull"`
	QoS       int       `bun:"qos,notnull"`
	Retain    bool      `bun:"retain,notnull"`
	MessageID int       `bun:"message_id,notnull"`
	Date      time.Time `bun:"date,notnull"`
}

func rowFromRecord(r *model.ScoreRecord) *scoreRow {
	return &scoreRow{
		ID:        r.ID,
		Topic:     r.Topic,
		Username:  r.Payload.Username,
		Score:     r.Payload.Score,
		QoS:       r.QoS,
		Retain:    r.Retain,
		MessageID: r.MessageID,
		Date:      r.Date,
	}
}

func (s *scoreRow) record() model.ScoreRecord {
	return model.ScoreRecord{
		ID:        s.ID,
		Topic:     s.Topic,
		Payload:   model.ScorePayload{Username: s.Username, Score: s.Score},
		QoS:       s.QoS,
		Retain:    s.Retain,
		MessageID: s.MessageID,
		Date:      s.Date.UTC(),
	}
}

// Postgres stores records in the scores table through bun.
type Postgres struct {
	db  *bun.DB
	log logger.Logger
	now func() time.Time
}

// NewPostgres opens dsn and creates the scores table and its date index
// when missing.
func NewPostgres(ctx context.Context, dsn string, log logger.Logger) (*Postgres, error) {
	if log == nil {
		log = logger.Nop()
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	if err := sqldb.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	db := bun.NewDB(sqldb, pgdialect.New())
	p := &Postgres{db: db, log: log, now: func() time.Time { return time.Now().UTC() }}
	if err := p.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Info(ctx, "connected to PostgreSQL")
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	if _, err := p.db.NewCreateTable().Model((*scoreRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create scores table: %w", err)
	}
	_, err := p.db.NewCreateIndex().
		Model((*scoreRow)(nil)).
		Index("scores_date_idx").
		Column("date").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create scores date index: %w", err)
	}
	return nil
}

// Name implements Store.
func (p *Postgres) Name() string { return "postgres" }

// Save implements Store.
func (p *Postgres) Save(ctx context.Context, rec *model.ScoreRecord) (err error) {
	start := time.Now()
	defer func() { observe(p.Name(), "save", start, err) }()

	if err := prepare(rec, p.now()); err != nil {
		return err
	}
	if _, err := p.db.NewInsert().Model(rowFromRecord(rec)).Exec(ctx); err != nil {
		return fmt.Errorf("postgres insert: %w", err)
	}
	return nil
}

// FindAllOrderedByDateDescending implements Store.
func (p *Postgres) FindAllOrderedByDateDescending(ctx context.Context, limit int) (out []model.ScoreRecord, err error) {
	start := time.Now()
	defer func() { observe(p.Name(), "find", start, err) }()

	var rows []scoreRow
	q := p.db.NewSelect().Model(&rows).Order("date DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("postgres select: %w", err)
	}

	out = make([]model.ScoreRecord, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].record())
	}
	return out, nil
}

// Count implements Store.
func (p *Postgres) Count(ctx context.Context) (int64, error) {
	n, err := p.db.NewSelect().Model((*scoreRow)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres count: %w", err)
	}
	return int64(n), nil
}

// Close implements Store.
func (p *Postgres) Close(context.Context) error {
	return p.db.Close()
}
