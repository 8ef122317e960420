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

// ErrTransactionNotFound lets the webhook path distinguish a gateway
// notification for a transaction this platform never created.
var ErrTransactionNotFound = fmt.Errorf("transaction not found")

type TransactionRepository interface {
	Create(ctx context.Context, transaction *models.Transaction) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Transaction, error)
	GetByTradeNo(ctx context.Context, tradeNo string) (*models.Transaction, error)
	Update(ctx context.Context, transaction *models.Transaction) error
	GetPendingByType(ctx context.Context, txType models.TransactionType, limit int) ([]*models.Transaction, error)
	GetApprovedUnconfirmedWithdrawals(ctx context.Context, limit int) ([]*models.Transaction, error)
	GetByUserID(ctx context.Context, userID int64, limit, offset int) ([]*models.Transaction, error)
	GetAffiliateTotals(ctx context.Context, affiliateID int64) (*AffiliateWithdrawTotals, error)
}

// AffiliateWithdrawTotals aggregates an affiliate's withdrawal transactions.
// Anchored withdrawals (those linked to a completed settlement) are excluded
// from the approved total because the settlement already accounted for them.
type AffiliateWithdrawTotals struct {
	ApprovedUnanchored decimal.Decimal `bson:"approved_unanchored"`
	Pending            decimal.Decimal `bson:"pending"`
}

type transactionRepository struct {
	collection *mongo.Collection
}

func NewTransactionRepository(db *mongo.Database) TransactionRepository {
	return &transactionRepository{
		collection: db.Collection("transactions"),
	}
}

func (r *transactionRepository) Create(ctx context.Context, transaction *models.Transaction) error {
	transaction.CreatedAt = time.Now()
	transaction.UpdatedAt = time.Now()

	result, err := r.collection.InsertOne(ctx, transaction)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("transaction with trade number %s already exists", transaction.TradeNo)
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	transaction.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *transactionRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Transaction, error) {
	var transaction models.Transaction
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&transaction)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction by ID: %w", err)
	}
	return &transaction, nil
}

func (r *transactionRepository) GetByTradeNo(ctx context.Context, tradeNo string) (*models.Transaction, error) {
	var transaction models.Transaction
	err := r.collection.FindOne(ctx, bson.M{"trade_no": tradeNo}).Decode(&transaction)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%w with trade number %s", ErrTransactionNotFound, tradeNo)
		}
		return nil, fmt.Errorf("failed to get transaction by trade number: %w", err)
	}
	return &transaction, nil
}

func (r *transactionRepository) Update(ctx context.Context, transaction *models.Transaction) error {
	transaction.UpdatedAt = time.Now()

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": transaction.ID}, bson.M{"$set": transaction})
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("transaction not found for update")
	}
	return nil
}

// GetPendingByType returns pending transactions of one type, oldest first, for
// the reconciliation polls.
func (r *transactionRepository) GetPendingByType(ctx context.Context, txType models.TransactionType, limit int) ([]*models.Transaction, error) {
	filter := bson.M{
		"type":   txType,
		"status": models.StatusPending,
	}
	opts := options.Find().
		SetSort(bson.M{"created_at": 1}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending transactions: %w", err)
	}
	defer cursor.Close(ctx)

	var transactions []*models.Transaction
	if err := cursor.All(ctx, &transactions); err != nil {
		return nil, fmt.Errorf("failed to decode pending transactions: %w", err)
	}
	return transactions, nil
}

// GetApprovedUnconfirmedWithdrawals returns approved withdrawals whose
// disbursement the gateway has not yet confirmed. The payout poll tracks these
// until the gateway reports a terminal result.
func (r *transactionRepository) GetApprovedUnconfirmedWithdrawals(ctx context.Context, limit int) ([]*models.Transaction, error) {
	filter := bson.M{
		"type":                 models.TypeWithdraw,
		"status":               models.StatusApproved,
		"gateway_confirmed_at": bson.M{"$exists": false},
	}
	opts := options.Find().
		SetSort(bson.M{"created_at": 1}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get unconfirmed withdrawals: %w", err)
	}
	defer cursor.Close(ctx)

	var transactions []*models.Transaction
	if err := cursor.All(ctx, &transactions); err != nil {
		return nil, fmt.Errorf("failed to decode unconfirmed withdrawals: %w", err)
	}
	return transactions, nil
}

func (r *transactionRepository) GetByUserID(ctx context.Context, userID int64, limit, offset int) ([]*models.Transaction, error) {
	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions by user: %w", err)
	}
	defer cursor.Close(ctx)

	var transactions []*models.Transaction
	if err := cursor.All(ctx, &transactions); err != nil {
		return nil, fmt.Errorf("failed to decode transactions: %w", err)
	}
	return transactions, nil
}

func (r *transactionRepository) GetAffiliateTotals(ctx context.Context, affiliateID int64) (*AffiliateWithdrawTotals, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"affiliate_id": affiliateID,
			"type":         models.TypeWithdraw,
		}}},
		{{Key: "$group", Value: bson.M{
			"_id": nil,
			"approved_unanchored": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$status", models.StatusApproved}},
					bson.M{"$not": bson.A{bson.M{"$ifNull": bson.A{"$settlement_anchor_id", false}}}},
				}},
				"$amount", 0,
			}}},
			"pending": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$status", models.StatusPending}},
				"$amount", 0,
			}}},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate affiliate withdrawals: %w", err)
	}
	defer cursor.Close(ctx)

	var results []AffiliateWithdrawTotals
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode affiliate withdrawal totals: %w", err)
	}
	if len(results) == 0 {
		return &AffiliateWithdrawTotals{}, nil
	}
	return &results[0], nil
}
