package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	PaymentsColName = "payments"
	Currency        = "XAF"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch st := PaymentStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case PaymentPending, PaymentCompleted, PaymentFailed:
		return st, nil
	}
	return "", NewFieldError("status", "must be one of pending, completed, failed")
}

type PaymentMethod string

const (
	MethodMTN    PaymentMethod = "mtn"
	MethodOrange PaymentMethod = "orange"
)

type PaymentPurpose string

const (
	PurposePremium PaymentPurpose = "premium"
	PurposeGeneral PaymentPurpose = "general"
)

// Plan is a premium subscription offer.
type Plan struct {
	Name   string `json:"name"`
	Price  int64  `json:"price"`
	Months int    `json:"months"`
}

var Plans = map[string]Plan{
	"monthly": {Name: "monthly", Price: 25000, Months: 1},
	"yearly":  {Name: "yearly", Price: 250000, Months: 12},
}

// ExpiryFrom is the premium expiry of a subscription starting at start.
func (p Plan) ExpiryFrom(start time.Time) time.Time {
	return start.AddDate(0, p.Months, 0)
}

type Payment struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Reference   string             `bson:"reference" json:"transaction_ref"`
	UserID      string             `bson:"user_id" json:"user_id"`
	Amount      int64              `bson:"amount" json:"amount"`
	Currency    string             `bson:"currency" json:"currency"`
	Method      PaymentMethod      `bson:"payment_method" json:"payment_method"`
	PhoneNumber string             `bson:"phone_number" json:"phone_number"`
	Description string             `bson:"description" json:"description"`
	Purpose     PaymentPurpose     `bson:"purpose" json:"purpose"`
	Plan        string             `bson:"plan,omitempty" json:"plan,omitempty"`
	Status      PaymentStatus      `bson:"status" json:"status"`
	GatewayRef  string             `bson:"gateway_ref,omitempty" json:"gateway_ref,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
	CompletedAt *time.Time         `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	// PremiumApplied is set once a completed premium payment has been
	// credited to its user.
	PremiumApplied bool `bson:"premium_applied" json:"premium_applied"`
}

// PremiumOwed reports whether p paid for premium that was never credited.
func (p *Payment) PremiumOwed() bool {
	return p.Status == PaymentCompleted && p.Purpose == PurposePremium && !p.PremiumApplied
}

// PaymentInput is the body of a direct payment.
type PaymentInput struct {
	Amount        int64  `json:"amount" validate:"gt=0"`
	PaymentMethod string `json:"payment_method" validate:"required,oneof=mtn orange"`
	PhoneNumber   string `json:"phone_number" validate:"required,cm_phone"`
	Description   string `json:"description" validate:"max=200"`
}

func (in *PaymentInput) Normalize() {
	in.PaymentMethod = strings.ToLower(strings.TrimSpace(in.PaymentMethod))
	in.PhoneNumber = strings.ReplaceAll(strings.TrimSpace(in.PhoneNumber), " ", "")
	in.Description = strings.TrimSpace(in.Description)
}

func (in *PaymentInput) Validate() error {
	return ValidationError(Validate.Struct(in))
}

// UpgradeInput is the body of a premium purchase.
type UpgradeInput struct {
	Plan          string `json:"plan" validate:"required,oneof=monthly yearly"`
	PaymentMethod string `json:"payment_method" validate:"required,oneof=mtn orange"`
	PhoneNumber   string `json:"phone_number" validate:"required,cm_phone"`
}

func (in *UpgradeInput) Normalize() {
	in.Plan = strings.ToLower(strings.TrimSpace(in.Plan))
	in.PaymentMethod = strings.ToLower(strings.TrimSpace(in.PaymentMethod))
	in.PhoneNumber = strings.ReplaceAll(strings.TrimSpace(in.PhoneNumber), " ", "")
}

func (in *UpgradeInput) Validate() error {
	return ValidationError(Validate.Struct(in))
}

// WebhookNotification is what the gateway posts when a payment settles.
type WebhookNotification struct {
	TransactionRef string `json:"transaction_ref" validate:"required"`
	Status         string `json:"status" validate:"required"`
	GatewayRef     string `json:"gateway_ref"`
}

type PaymentRepo interface {
	CreatePayment(ctx context.Context, p *Payment) error
	GetPaymentByReference(ctx context.Context, ref string) (*Payment, error)
	// TransitionPayment settles a pending payment. It returns ErrConflict when
	// the payment is no longer pending, so callers act on a settlement once.
	TransitionPayment(ctx context.Context, ref string, to PaymentStatus, gatewayRef string, now time.Time) (*Payment, error)
	// SetPremiumApplied flips the premium marker to applied. It returns
	// ErrConflict when the marker already holds that value.
	SetPremiumApplied(ctx context.Context, ref string, applied bool, now time.Time) error
	ListPayments(ctx context.Context, userID uuid.UUID, page Pagination) ([]Payment, int64, error)
}

func (mdb *MongodbRepo) ensurePaymentIndexes(ctx context.Context) error {
	col, err := mdb.GetCollection(ctx, PaymentsColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %v", err)
	}
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "reference", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("reference_unique"),
		},
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("user_created_at_idx"),
		},
	}
	if _, err := col.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("error creating payment indexes: %v", err)
	}
	return nil
}

func (mdb *MongodbRepo) CreatePayment(ctx context.Context, p *Payment) error {
	col, err := mdb.GetCollection(ctx, PaymentsColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %v", err)
	}
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if _, err := col.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("payment %s already recorded: %w", p.Reference, ErrConflict)
		}
		return fmt.Errorf("error inserting payment: %v", err)
	}
	return nil
}

func (mdb *MongodbRepo) GetPaymentByReference(ctx context.Context, ref string) (*Payment, error) {
	col, err := mdb.GetCollection(ctx, PaymentsColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %v", err)
	}
	var p Payment
	err = col.FindOne(ctx, bson.M{"reference": ref}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("payment %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("error finding payment: %v", err)
	}
	return &p, nil
}

func (mdb *MongodbRepo) TransitionPayment(ctx context.Context, ref string, to PaymentStatus, gatewayRef string, now time.Time) (*Payment, error) {
	col, err := mdb.GetCollection(ctx, PaymentsColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %v", err)
	}

	set := bson.M{"status": to, "updated_at": now}
	if gatewayRef != "" {
		set["gateway_ref"] = gatewayRef
	}
	if to == PaymentCompleted {
		set["completed_at"] = now
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var p Payment
	err = col.FindOneAndUpdate(ctx,
		bson.M{"reference": ref, "status": PaymentPending},
		bson.M{"$set": set},
		opts,
	).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, getErr := mdb.GetPaymentByReference(ctx, ref); getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("payment %s is already settled: %w", ref, ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("error updating payment: %v", err)
	}
	return &p, nil
}

func (mdb *MongodbRepo) SetPremiumApplied(ctx context.Context, ref string, applied bool, now time.Time) error {
	col, err := mdb.GetCollection(ctx, PaymentsColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %v", err)
	}
	res, err := col.UpdateOne(ctx,
		bson.M{"reference": ref, "premium_applied": bson.M{"$ne": applied}},
		bson.M{"$set": bson.M{"premium_applied": applied, "updated_at": now}},
	)
	if err != nil {
		return fmt.Errorf("error updating payment: %v", err)
	}
	if res.MatchedCount == 0 {
		if _, getErr := mdb.GetPaymentByReference(ctx, ref); getErr != nil {
			return getErr
		}
		return fmt.Errorf("payment %s premium marker unchanged: %w", ref, ErrConflict)
	}
	return nil
}

func (mdb *MongodbRepo) ListPayments(ctx context.Context, userID uuid.UUID, page Pagination) ([]Payment, int64, error) {
	col, err := mdb.GetCollection(ctx, PaymentsColName)
	if err != nil {
		return nil, 0, fmt.Errorf("error getting collection: %v", err)
	}
	filter := bson.M{"user_id": userID.String()}

	total, err := col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("error counting payments: %v", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Limit))
	cursor, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("error finding payments: %v", err)
	}
	defer cursor.Close(ctx)

	payments := []Payment{}
	if err := cursor.All(ctx, &payments); err != nil {
		return nil, 0, fmt.Errorf("error decoding payments: %v", err)
	}
	return payments, total, nil
}
