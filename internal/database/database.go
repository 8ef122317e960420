package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"settlement-api/internal/config"
)

// Database wraps the mongo client and the handle the repositories share.
type Database struct {
	Client *mongo.Client
	DB     *mongo.Database
}

func Connect(ctx context.Context, cfg *config.DatabaseConfig) (*Database, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(uint64(cfg.MaxPoolSize)).
		SetMinPoolSize(uint64(cfg.MinPoolSize)).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetSocketTimeout(cfg.SocketTimeout).
		SetServerSelectionTimeout(cfg.SelectionTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := &Database{
		Client: client,
		DB:     client.Database(cfg.Database),
	}
	if err := db.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// ensureIndexes creates the unique indexes the settlement idempotency depends
// on. The (transaction_id, kind) constraints are what make replayed upserts
// converge instead of multiplying rows.
func (d *Database) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		"transactions": {
			{
				Keys:    bson.D{{Key: "trade_no", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys: bson.D{{Key: "type", Value: 1}, {Key: "status", Value: 1}, {Key: "created_at", Value: 1}},
			},
			{
				Keys: bson.D{{Key: "affiliate_id", Value: 1}, {Key: "type", Value: 1}},
			},
		},
		"turnover_records": {
			{
				Keys:    bson.D{{Key: "transaction_id", Value: 1}, {Key: "kind", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}},
			},
		},
		"admin_ledger": {
			{
				Keys: bson.D{{Key: "transaction_id", Value: 1}, {Key: "kind", Value: 1}},
				// Capital movements have no parent transaction, so the
				// uniqueness only binds rows that carry one.
				Options: options.Index().SetUnique(true).SetPartialFilterExpression(
					bson.M{"transaction_id": bson.M{"$exists": true}},
				),
			},
			{
				Keys: bson.D{{Key: "status", Value: 1}, {Key: "kind", Value: 1}},
			},
		},
		"commissions": {
			{
				Keys:    bson.D{{Key: "bet_result_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys: bson.D{{Key: "affiliate_id", Value: 1}, {Key: "status", Value: 1}},
			},
		},
		"webhook_log": {
			{
				Keys: bson.D{{Key: "trade_no", Value: 1}},
			},
			{
				Keys: bson.D{{Key: "received_at", Value: -1}},
			},
		},
	}

	for collection, models := range indexes {
		if _, err := d.DB.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
		}
	}
	return nil
}

func (d *Database) Close(ctx context.Context) error {
	return d.Client.Disconnect(ctx)
}

// NewRedisClient builds the client used by the distributed locks.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// TxRunner runs a callback inside a mongo session transaction so the
// settlement writes commit or roll back together.
type TxRunner struct {
	client *mongo.Client
}

func NewTxRunner(client *mongo.Client) *TxRunner {
	return &TxRunner{client: client}
}

func (r *TxRunner) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	})
	return err
}
