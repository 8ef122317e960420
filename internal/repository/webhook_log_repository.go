package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"settlement-api/internal/models"
)

// WebhookLogRepository is append-only: entries record every inbound delivery,
// including ones that fail signature verification.
type WebhookLogRepository interface {
	Create(ctx context.Context, entry *models.WebhookLogEntry) error
	GetByTradeNo(ctx context.Context, tradeNo string) ([]*models.WebhookLogEntry, error)
	List(ctx context.Context, since time.Time, limit, offset int) ([]*models.WebhookLogEntry, error)
}

type webhookLogRepository struct {
	collection *mongo.Collection
}

func NewWebhookLogRepository(db *mongo.Database) WebhookLogRepository {
	return &webhookLogRepository{
		collection: db.Collection("webhook_log"),
	}
}

func (r *webhookLogRepository) Create(ctx context.Context, entry *models.WebhookLogEntry) error {
	entry.ReceivedAt = time.Now()

	result, err := r.collection.InsertOne(ctx, entry)
	if err != nil {
		return fmt.Errorf("failed to log webhook delivery: %w", err)
	}
	entry.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *webhookLogRepository) GetByTradeNo(ctx context.Context, tradeNo string) ([]*models.WebhookLogEntry, error) {
	opts := options.Find().SetSort(bson.M{"received_at": 1})

	cursor, err := r.collection.Find(ctx, bson.M{"trade_no": tradeNo}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get webhook log: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*models.WebhookLogEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode webhook log: %w", err)
	}
	return entries, nil
}

func (r *webhookLogRepository) List(ctx context.Context, since time.Time, limit, offset int) ([]*models.WebhookLogEntry, error) {
	filter := bson.M{}
	if !since.IsZero() {
		filter["received_at"] = bson.M{"$gte": since}
	}
	opts := options.Find().
		SetSort(bson.M{"received_at": -1}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook log: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*models.WebhookLogEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode webhook log: %w", err)
	}
	return entries, nil
}
