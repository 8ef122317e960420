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

// TurnoverRepository persists wagering requirements. Upserts are keyed on
// (transaction_id, kind) so replayed settlements update the existing row
// instead of inserting a sibling.
type TurnoverRepository interface {
	Upsert(ctx context.Context, record *models.TurnoverRecord) error
	GetByTransaction(ctx context.Context, transactionID primitive.ObjectID) ([]*models.TurnoverRecord, error)
	SetStatusByTransaction(ctx context.Context, transactionID primitive.ObjectID, status models.TurnoverStatus) error
	GetActiveByUser(ctx context.Context, userID int64) ([]*models.TurnoverRecord, error)
}

type turnoverRepository struct {
	collection *mongo.Collection
}

func NewTurnoverRepository(db *mongo.Database) TurnoverRepository {
	return &turnoverRepository{
		collection: db.Collection("turnover_records"),
	}
}

func (r *turnoverRepository) Upsert(ctx context.Context, record *models.TurnoverRecord) error {
	now := time.Now()
	filter := bson.M{
		"transaction_id": record.TransactionID,
		"kind":           record.Kind,
	}
	update := bson.M{
		"$set": bson.M{
			"user_id":            record.UserID,
			"status":             record.Status,
			"deposit_amount":     record.DepositAmount,
			"target_turnover":    record.TargetTurnover,
			"remaining_turnover": record.RemainingTurnover,
			"label":              record.Label,
			"updated_at":         now,
		},
		"$setOnInsert": bson.M{
			"transaction_id": record.TransactionID,
			"kind":           record.Kind,
			"created_at":     now,
		},
	}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert turnover record: %w", err)
	}
	return nil
}

func (r *turnoverRepository) GetByTransaction(ctx context.Context, transactionID primitive.ObjectID) ([]*models.TurnoverRecord, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"transaction_id": transactionID})
	if err != nil {
		return nil, fmt.Errorf("failed to get turnover records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*models.TurnoverRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode turnover records: %w", err)
	}
	return records, nil
}

func (r *turnoverRepository) SetStatusByTransaction(ctx context.Context, transactionID primitive.ObjectID, status models.TurnoverStatus) error {
	update := bson.M{
		"$set": bson.M{
			"status":     status,
			"updated_at": time.Now(),
		},
	}

	_, err := r.collection.UpdateMany(ctx, bson.M{"transaction_id": transactionID}, update)
	if err != nil {
		return fmt.Errorf("failed to update turnover status: %w", err)
	}
	return nil
}

func (r *turnoverRepository) GetActiveByUser(ctx context.Context, userID int64) ([]*models.TurnoverRecord, error) {
	filter := bson.M{
		"user_id": userID,
		"status":  models.TurnoverActive,
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		return nil, fmt.Errorf("failed to get active turnover records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*models.TurnoverRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode active turnover records: %w", err)
	}
	return records, nil
}

// LedgerRepository persists admin ledger entries. Amounts are written once on
// insert; replays only touch status, notes and the timestamp.
type LedgerRepository interface {
	Upsert(ctx context.Context, entry *models.AdminLedgerEntry) error
	SetStatusByTransaction(ctx context.Context, transactionID primitive.ObjectID, status models.TransactionStatus) error
	GetByTransaction(ctx context.Context, transactionID primitive.ObjectID) ([]*models.AdminLedgerEntry, error)
	List(ctx context.Context, kind models.LedgerKind, limit, offset int) ([]*models.AdminLedgerEntry, error)
	MainBalance(ctx context.Context, currencyID string) (decimal.Decimal, error)
	Create(ctx context.Context, entry *models.AdminLedgerEntry) error
}

type ledgerRepository struct {
	collection *mongo.Collection
}

func NewLedgerRepository(db *mongo.Database) LedgerRepository {
	return &ledgerRepository{
		collection: db.Collection("admin_ledger"),
	}
}

func (r *ledgerRepository) Upsert(ctx context.Context, entry *models.AdminLedgerEntry) error {
	now := time.Now()
	filter := bson.M{
		"transaction_id": entry.TransactionID,
		"kind":           entry.Kind,
	}
	update := bson.M{
		"$set": bson.M{
			"status":     entry.Status,
			"notes":      entry.Notes,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"transaction_id": entry.TransactionID,
			"kind":           entry.Kind,
			"amount":         entry.Amount,
			"promotion_id":   entry.PromotionID,
			"currency_id":    entry.CurrencyID,
			"created_at":     now,
		},
	}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert ledger entry: %w", err)
	}
	return nil
}

func (r *ledgerRepository) SetStatusByTransaction(ctx context.Context, transactionID primitive.ObjectID, status models.TransactionStatus) error {
	update := bson.M{
		"$set": bson.M{
			"status":     status,
			"updated_at": time.Now(),
		},
	}

	_, err := r.collection.UpdateMany(ctx, bson.M{"transaction_id": transactionID}, update)
	if err != nil {
		return fmt.Errorf("failed to update ledger status: %w", err)
	}
	return nil
}

func (r *ledgerRepository) GetByTransaction(ctx context.Context, transactionID primitive.ObjectID) ([]*models.AdminLedgerEntry, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"transaction_id": transactionID})
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*models.AdminLedgerEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode ledger entries: %w", err)
	}
	return entries, nil
}

func (r *ledgerRepository) List(ctx context.Context, kind models.LedgerKind, limit, offset int) ([]*models.AdminLedgerEntry, error) {
	filter := bson.M{}
	if kind != "" {
		filter["kind"] = kind
	}
	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*models.AdminLedgerEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode ledger entries: %w", err)
	}
	return entries, nil
}

// MainBalance computes the house balance over approved rows: inbound kinds
// add, outbound kinds subtract.
func (r *ledgerRepository) MainBalance(ctx context.Context, currencyID string) (decimal.Decimal, error) {
	match := bson.M{"status": models.StatusApproved}
	if currencyID != "" {
		match["currency_id"] = currencyID
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id": nil,
			"balance": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$in": bson.A{"$kind", bson.A{
					models.LedgerAdminDeposit,
					models.LedgerPlayerWithdraw,
					models.LedgerAdminWithdraw,
				}}},
				"$amount",
				bson.M{"$multiply": bson.A{"$amount", -1}},
			}}},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to aggregate main balance: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Balance decimal.Decimal `bson:"balance"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode main balance: %w", err)
	}
	if len(results) == 0 {
		return decimal.Zero, nil
	}
	return results[0].Balance, nil
}

// Create inserts a standalone entry for manual admin capital movements, which
// have no parent transaction.
func (r *ledgerRepository) Create(ctx context.Context, entry *models.AdminLedgerEntry) error {
	entry.CreatedAt = time.Now()
	entry.UpdatedAt = entry.CreatedAt

	result, err := r.collection.InsertOne(ctx, entry)
	if err != nil {
		return fmt.Errorf("failed to create ledger entry: %w", err)
	}
	entry.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}
