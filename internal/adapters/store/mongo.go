package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/okian/simon-relay/internal/domain/model"
	"github.com/okian/simon-relay/pkg/logger"
)

const mongoConnectTimeout = 10 * time.Second

// Mongo stores records in the scores collection of a MongoDB database.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
	log    logger.Logger
	now    func() time.Time
}

// NewMongo connects to uri, verifies the server with a ping and ensures the
// date index exists.
func NewMongo(ctx context.Context, uri, database string, log logger.Logger) (*Mongo, error) {
	if log == nil {
		log = logger.Nop()
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri).SetConnectTimeout(mongoConnectTimeout))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	coll := client.Database(database).Collection(CollectionName)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "date", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo index: %w", err)
	}

	log.Info(ctx, "connected to MongoDB", logger.String("database", database))
	return &Mongo{
		client: client,
		coll:   coll,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Name implements Store.
func (m *Mongo) Name() string { return "mongo" }

// Save implements Store.
func (m *Mongo) Save(ctx context.Context, rec *model.ScoreRecord) (err error) {
	start := time.Now()
	defer func() { observe(m.Name(), "save", start, err) }()

	if err := prepare(rec, m.now()); err != nil {
		return err
	}
	if _, err := m.coll.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("mongo insert: %w", err)
	}
	return nil
}

// FindAllOrderedByDateDescending implements Store.
func (m *Mongo) FindAllOrderedByDateDescending(ctx context.Context, limit int) (out []model.ScoreRecord, err error) {
	start := time.Now()
	defer func() { observe(m.Name(), "find", start, err) }()

	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := m.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find: %w", err)
	}
	out = []model.ScoreRecord{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("mongo decode: %w", err)
	}
	return out, nil
}

// Count implements Store.
func (m *Mongo) Count(ctx context.Context) (int64, error) {
	n, err := m.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("mongo count: %w", err)
	}
	return n, nil
}

// Close implements Store.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
