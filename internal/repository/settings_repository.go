package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"settlement-api/internal/models"
)

// SettingsRepository serves the single global settings row and promotion
// lookups consumed by settlement.
type SettingsRepository interface {
	Get(ctx context.Context) (*models.Settings, error)
	SetTurnoverMultiplier(ctx context.Context, multiplier decimal.Decimal) error
	GetPromotion(ctx context.Context, id primitive.ObjectID) (*models.Promotion, error)
	ListActivePromotions(ctx context.Context) ([]*models.Promotion, error)
}

type settingsRepository struct {
	settings          *mongo.Collection
	promotions        *mongo.Collection
	defaultMultiplier decimal.Decimal
}

// NewSettingsRepository builds the settings store. defaultMultiplier is the
// configured turnover multiplier served until an admin writes one.
func NewSettingsRepository(db *mongo.Database, defaultMultiplier decimal.Decimal) SettingsRepository {
	if !defaultMultiplier.IsPositive() {
		defaultMultiplier = decimal.NewFromInt(1)
	}
	return &settingsRepository{
		settings:          db.Collection("settings"),
		promotions:        db.Collection("promotions"),
		defaultMultiplier: defaultMultiplier,
	}
}

// Get returns the settings row, falling back to the configured default
// multiplier when none has been written yet.
func (r *settingsRepository) Get(ctx context.Context) (*models.Settings, error) {
	var settings models.Settings
	err := r.settings.FindOne(ctx, bson.M{}).Decode(&settings)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return &models.Settings{
				TurnoverMultiplier: r.defaultMultiplier,
			}, nil
		}
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return &settings, nil
}

func (r *settingsRepository) SetTurnoverMultiplier(ctx context.Context, multiplier decimal.Decimal) error {
	update := bson.M{
		"$set": bson.M{
			"turnover_multiplier": multiplier,
			"updated_at":          time.Now(),
		},
	}

	_, err := r.settings.UpdateOne(ctx, bson.M{}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to update turnover multiplier: %w", err)
	}
	return nil
}

func (r *settingsRepository) GetPromotion(ctx context.Context, id primitive.ObjectID) (*models.Promotion, error) {
	var promotion models.Promotion
	err := r.promotions.FindOne(ctx, bson.M{"_id": id}).Decode(&promotion)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("promotion not found")
		}
		return nil, fmt.Errorf("failed to get promotion: %w", err)
	}
	return &promotion, nil
}

func (r *settingsRepository) ListActivePromotions(ctx context.Context) ([]*models.Promotion, error) {
	cursor, err := r.promotions.Find(ctx, bson.M{"is_active": true})
	if err != nil {
		return nil, fmt.Errorf("failed to list promotions: %w", err)
	}
	defer cursor.Close(ctx)

	var promotions []*models.Promotion
	if err := cursor.All(ctx, &promotions); err != nil {
		return nil, fmt.Errorf("failed to decode promotions: %w", err)
	}
	return promotions, nil
}
