package models

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const FavouriteColName = "favourites"

type FavouriteItem struct {
	EventID string    `bson:"event_id" json:"event_id"`
	AddedAt time.Time `bson:"added_at" json:"added_at"`
}

// Favourite is the single saved-events document of a user, keyed by event id.
type Favourite struct {
	ID        primitive.ObjectID       `bson:"_id,omitempty" json:"id"`
	UserID    string                   `bson:"user_id" json:"user_id"`
	Items     map[string]FavouriteItem `bson:"items" json:"items"`
	CreatedAt time.Time                `bson:"created_at,omitempty" json:"created_at,omitempty"`
	UpdatedAt time.Time                `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// EventIDs lists the saved events, most recently saved first.
func (f *Favourite) EventIDs() []uuid.UUID {
	if f == nil {
		return nil
	}
	items := make([]FavouriteItem, 0, len(f.Items))
	for _, it := range f.Items {
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].AddedAt.Equal(items[j].AddedAt) {
			return items[i].AddedAt.After(items[j].AddedAt)
		}
		return items[i].EventID < items[j].EventID
	})
	ids := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		id, err := uuid.Parse(it.EventID)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

type FavouriteRepo interface {
	AddFavourite(ctx context.Context, userID, eventID uuid.UUID, now time.Time) (*Favourite, error)
	RemoveFavourite(ctx context.Context, userID, eventID uuid.UUID, now time.Time) error
	// GetFavourites returns an empty document for users who never saved anything.
	GetFavourites(ctx context.Context, userID uuid.UUID) (*Favourite, error)
}

func (mdb *MongodbRepo) ensureFavouriteIndexes(ctx context.Context) error {
	col, err := mdb.GetCollection(ctx, FavouriteColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %v", err)
	}
	_, err = col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("user_id_unique"),
	})
	if err != nil {
		return fmt.Errorf("error creating favourite indexes: %v", err)
	}
	return nil
}

func (mdb *MongodbRepo) AddFavourite(ctx context.Context, userID, eventID uuid.UUID, now time.Time) (*Favourite, error) {
	col, err := mdb.GetCollection(ctx, FavouriteColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %v", err)
	}
	filter := bson.M{"user_id": userID.String()}

	update := bson.M{
		"$set": bson.M{
			"updated_at": now,
			fmt.Sprintf("items.%s", eventID): FavouriteItem{
				EventID: eventID.String(),
				AddedAt: now,
			},
		},
		"$setOnInsert": bson.M{
			"user_id":    userID.String(),
			"created_at": now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var result Favourite
	if err := col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&result); err != nil {
		return nil, fmt.Errorf("error upserting favourite: %v", err)
	}
	return &result, nil
}

func (mdb *MongodbRepo) RemoveFavourite(ctx context.Context, userID, eventID uuid.UUID, now time.Time) error {
	col, err := mdb.GetCollection(ctx, FavouriteColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %v", err)
	}

	filter := bson.M{"user_id": userID.String()}
	update := bson.M{
		"$unset": bson.M{
			fmt.Sprintf("items.%s", eventID): "",
		},
		"$set": bson.M{
			"updated_at": now,
		},
	}

	if _, err := col.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("error removing favourite: %v", err)
	}
	return nil
}

func (mdb *MongodbRepo) GetFavourites(ctx context.Context, userID uuid.UUID) (*Favourite, error) {
	col, err := mdb.GetCollection(ctx, FavouriteColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %v", err)
	}

	var fav Favourite
	err = col.FindOne(ctx, bson.M{"user_id": userID.String()}).Decode(&fav)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &Favourite{UserID: userID.String(), Items: map[string]FavouriteItem{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error finding favourites: %v", err)
	}
	if fav.Items == nil {
		fav.Items = map[string]FavouriteItem{}
	}
	return &fav, nil
}
