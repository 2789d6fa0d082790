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

const (
	EventViewsColName = "event_views"
	ViewRetention     = 30 * 24 * time.Hour
	ViewDedupWindow   = time.Hour
)

type EventView struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	EventID     string             `bson:"event_id" json:"event_id"`
	OrganizerID string             `bson:"organizer_id" json:"organizer_id"`
	UserID      *string            `bson:"user_id,omitempty" json:"user_id,omitempty"`
	SessionID   string             `bson:"session_id" json:"session_id"`
	IPAddress   string             `bson:"ip_address,omitempty" json:"ip_address,omitempty"`
	UserAgent   string             `bson:"user_agent,omitempty" json:"user_agent,omitempty"`
	// Window is the start of the de-duplication hour the view falls in.
	Window    time.Time `bson:"window" json:"-"`
	ViewedAt  time.Time `bson:"viewed_at" json:"viewed_at"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"` // TTL index field
}

// Stamp sets the time fields of a view recorded at now.
func (v *EventView) Stamp(now time.Time) {
	v.ViewedAt = now
	v.Window = now.Truncate(ViewDedupWindow)
	v.ExpiresAt = now.Add(ViewRetention)
}

type EventViewStats struct {
	EventID       string `json:"event_id"`
	TotalViews    int64  `json:"total_views"`
	UniqueViews   int64  `json:"unique_views"`
	ViewsToday    int64  `json:"views_today"`
	ViewsThisWeek int64  `json:"views_this_week"`
}

type EventViewsRepo interface {
	// TrackEventView records a view unless the session already viewed the
	// event in the same hour.
	TrackEventView(ctx context.Context, view *EventView, now time.Time) error
	GetEventViewStats(ctx context.Context, eventID uuid.UUID, now time.Time) (*EventViewStats, error)
}

// StartOfDay and StartOfWeek bound the "today" and "this week" counters.
func StartOfDay(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func StartOfWeek(now time.Time) time.Time {
	return StartOfDay(now).AddDate(0, 0, -int(now.Weekday()))
}

func (mdb *MongodbRepo) ensureViewIndexes(ctx context.Context) error {
	col, err := mdb.GetCollection(ctx, EventViewsColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %v", err)
	}

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().
				SetExpireAfterSeconds(0).
				SetName("expires_at_ttl"),
		},
		// one view per session per event per hour
		{
			Keys: bson.D{
				{Key: "event_id", Value: 1},
				{Key: "session_id", Value: 1},
				{Key: "window", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetName("event_session_window_unique"),
		},
		{
			Keys: bson.D{
				{Key: "event_id", Value: 1},
				{Key: "viewed_at", Value: -1},
			},
			Options: options.Index().SetName("event_viewed_at_idx"),
		},
	}

	if _, err := col.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("error creating view indexes: %v", err)
	}
	return nil
}

func (mdb *MongodbRepo) TrackEventView(ctx context.Context, view *EventView, now time.Time) error {
	col, err := mdb.GetCollection(ctx, EventViewsColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %v", err)
	}

	view.Stamp(now)
	if view.ID.IsZero() {
		view.ID = primitive.NewObjectID()
	}

	if _, err := col.InsertOne(ctx, view); err != nil {
		// same session, same hour: not a new view
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("error inserting event view: %v", err)
	}
	return nil
}

func (mdb *MongodbRepo) GetEventViewStats(ctx context.Context, eventID uuid.UUID, now time.Time) (*EventViewStats, error) {
	col, err := mdb.GetCollection(ctx, EventViewsColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %v", err)
	}

	id := eventID.String()
	stats := &EventViewStats{EventID: id}

	if stats.TotalViews, err = col.CountDocuments(ctx, bson.M{"event_id": id}); err != nil {
		return nil, fmt.Errorf("error counting total views: %v", err)
	}

	uniquePipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"event_id": id}}},
		{{Key: "$group", Value: bson.M{"_id": "$session_id"}}},
		{{Key: "$count", Value: "unique_sessions"}},
	}
	cursor, err := col.Aggregate(ctx, uniquePipeline)
	if err != nil {
		return nil, fmt.Errorf("error aggregating unique views: %v", err)
	}
	defer cursor.Close(ctx)

	var uniqueResult []bson.M
	if err := cursor.All(ctx, &uniqueResult); err != nil {
		return nil, fmt.Errorf("error decoding unique views: %v", err)
	}
	if len(uniqueResult) > 0 {
		switch n := uniqueResult[0]["unique_sessions"].(type) {
		case int32:
			stats.UniqueViews = int64(n)
		case int64:
			stats.UniqueViews = n
		}
	}

	if stats.ViewsToday, err = col.CountDocuments(ctx, bson.M{
		"event_id":  id,
		"viewed_at": bson.M{"$gte": StartOfDay(now)},
	}); err != nil {
		return nil, fmt.Errorf("error counting today's views: %v", err)
	}

	if stats.ViewsThisWeek, err = col.CountDocuments(ctx, bson.M{
		"event_id":  id,
		"viewed_at": bson.M{"$gte": StartOfWeek(now)},
	}); err != nil {
		return nil, fmt.Errorf("error counting this week's views: %v", err)
	}

	return stats, nil
}
