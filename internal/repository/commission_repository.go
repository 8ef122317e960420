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

type CommissionRepository interface {
	GetByBetResultID(ctx context.Context, betResultID string) (*models.Commission, error)
	Create(ctx context.Context, commission *models.Commission) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Commission, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.CommissionStatus, notes string) error
	ListByAffiliate(ctx context.Context, affiliateID int64, limit, offset int) ([]*models.Commission, error)
	GetAffiliateLifetimeTotals(ctx context.Context, affiliateID int64) (*AffiliateLifetimeTotals, error)
}

// AffiliateLifetimeTotals sums approved commissions by outcome. Paid rows stay
// in the totals: the payout itself is subtracted through the withdrawal side,
// so dropping them here would debit the affiliate twice. Pending and rejected
// rows never count.
type AffiliateLifetimeTotals struct {
	Profit decimal.Decimal `bson:"profit"`
	Loss   decimal.Decimal `bson:"loss"`
}

type commissionRepository struct {
	collection *mongo.Collection
}

func NewCommissionRepository(db *mongo.Database) CommissionRepository {
	return &commissionRepository{
		collection: db.Collection("commissions"),
	}
}

// GetByBetResultID returns nil, nil when no commission exists yet; the bet
// ingestion flow uses this for its duplicate check.
func (r *commissionRepository) GetByBetResultID(ctx context.Context, betResultID string) (*models.Commission, error) {
	var commission models.Commission
	err := r.collection.FindOne(ctx, bson.M{"bet_result_id": betResultID}).Decode(&commission)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get commission by bet result: %w", err)
	}
	return &commission, nil
}

func (r *commissionRepository) Create(ctx context.Context, commission *models.Commission) error {
	commission.CreatedAt = time.Now()
	commission.UpdatedAt = commission.CreatedAt

	result, err := r.collection.InsertOne(ctx, commission)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("commission already recorded for bet result %s", commission.BetResultID)
		}
		return fmt.Errorf("failed to create commission: %w", err)
	}

	commission.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *commissionRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Commission, error) {
	var commission models.Commission
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&commission)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("commission not found")
		}
		return nil, fmt.Errorf("failed to get commission: %w", err)
	}
	return &commission, nil
}

func (r *commissionRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.CommissionStatus, notes string) error {
	update := bson.M{
		"$set": bson.M{
			"status":     status,
			"notes":      notes,
			"updated_at": time.Now(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update commission status: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("commission not found for status update")
	}
	return nil
}

func (r *commissionRepository) ListByAffiliate(ctx context.Context, affiliateID int64, limit, offset int) ([]*models.Commission, error) {
	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := r.collection.Find(ctx, bson.M{"affiliate_id": affiliateID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list commissions: %w", err)
	}
	defer cursor.Close(ctx)

	var commissions []*models.Commission
	if err := cursor.All(ctx, &commissions); err != nil {
		return nil, fmt.Errorf("failed to decode commissions: %w", err)
	}
	return commissions, nil
}

func lifetimeTotalsPipeline(affiliateID int64) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"affiliate_id": affiliateID,
			"status":       bson.M{"$in": bson.A{models.CommissionApproved, models.CommissionPaid}},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id": nil,
			"profit": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$outcome", models.BetOutcomeLoss}},
				"$amount", 0,
			}}},
			"loss": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$outcome", models.BetOutcomeWin}},
				bson.M{"$abs": "$amount"}, 0,
			}}},
		}}},
	}
}

func (r *commissionRepository) GetAffiliateLifetimeTotals(ctx context.Context, affiliateID int64) (*AffiliateLifetimeTotals, error) {
	cursor, err := r.collection.Aggregate(ctx, lifetimeTotalsPipeline(affiliateID))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate commission totals: %w", err)
	}
	defer cursor.Close(ctx)

	var results []AffiliateLifetimeTotals
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode commission totals: %w", err)
	}
	if len(results) == 0 {
		return &AffiliateLifetimeTotals{}, nil
	}
	return &results[0], nil
}
