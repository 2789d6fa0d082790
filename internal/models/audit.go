package models

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const AuditColName = "moderation_audit"

type AuditAction string

const (
	AuditApprove   AuditAction = "approve"
	AuditReject    AuditAction = "reject"
	AuditFeature   AuditAction = "feature"
	AuditUnfeature AuditAction = "unfeature"
)

// AuditEntry records one moderation decision. Reject reasons live only here.
type AuditEntry struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	EventID    string             `bson:"event_id" json:"event_id"`
	ActorID    string             `bson:"actor_id" json:"actor_id"`
	Action     AuditAction        `bson:"action" json:"action"`
	FromStatus EventStatus        `bson:"from_status,omitempty" json:"from_status,omitempty"`
	ToStatus   EventStatus        `bson:"to_status,omitempty" json:"to_status,omitempty"`
	Reason     string             `bson:"reason,omitempty" json:"reason,omitempty"`
	IPAddress  string             `bson:"ip_address,omitempty" json:"ip_address,omitempty"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}

func NewAuditEntry(actor *Actor, e *Event, action AuditAction, now time.Time) *AuditEntry {
	entry := &AuditEntry{
		EventID:   e.ID.String(),
		Action:    action,
		CreatedAt: now,
	}
	if actor != nil {
		entry.ActorID = actor.UserID.String()
		entry.IPAddress = actor.IP
	}
	return entry
}

type AuditRepo interface {
	AppendAudit(ctx context.Context, entry *AuditEntry) error
	// ListAudit returns the newest entries first.
	ListAudit(ctx context.Context, eventID uuid.UUID, limit int) ([]AuditEntry, error)
}

func (mdb *MongodbRepo) ensureAuditIndexes(ctx context.Context) error {
	col, err := mdb.GetCollection(ctx, AuditColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %v", err)
	}
	_, err = col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "event_id", Value: 1},
			{Key: "created_at", Value: -1},
		},
		Options: options.Index().SetName("event_created_at_idx"),
	})
	if err != nil {
		return fmt.Errorf("error creating audit indexes: %v", err)
	}
	return nil
}

func (mdb *MongodbRepo) AppendAudit(ctx context.Context, entry *AuditEntry) error {
	col, err := mdb.GetCollection(ctx, AuditColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %v", err)
	}
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	if _, err := col.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("error inserting audit entry: %v", err)
	}
	return nil
}

func (mdb *MongodbRepo) ListAudit(ctx context.Context, eventID uuid.UUID, limit int) ([]AuditEntry, error) {
	col, err := mdb.GetCollection(ctx, AuditColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %v", err)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := col.Find(ctx, bson.M{"event_id": eventID.String()}, opts)
	if err != nil {
		return nil, fmt.Errorf("error finding audit entries: %v", err)
	}
	defer cursor.Close(ctx)

	entries := []AuditEntry{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("error decoding audit entries: %v", err)
	}
	return entries, nil
}
