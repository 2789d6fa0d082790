package models

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/supabase-community/supabase-go"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	httpURLPattern = regexp.MustCompile(`^https?://.+`)
	cmPhonePattern = regexp.MustCompile(`^(\+237|237)?[0-9]{9}$`)
)

var Validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report json names so FieldError matches what the client sent
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("httpurl", func(fl validator.FieldLevel) bool {
		return httpURLPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("cm_phone", func(fl validator.FieldLevel) bool {
		return cmPhonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("art_type", func(fl validator.FieldLevel) bool {
		return ArtType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return Category(fl.Field().String()).Valid()
	})
	return v
}

func IsHTTPURL(s string) bool {
	return httpURLPattern.MatchString(s)
}

func IsCameroonPhone(s string) bool {
	return cmPhonePattern.MatchString(s)
}

// Store is the relational side of persistence: events, users and contact messages.
type Store interface {
	EventRepo
	UserRepo
	ContactRepo
}

// DocumentStore holds the append-heavy auxiliary data kept in MongoDB.
type DocumentStore interface {
	AuditRepo
	EventViewsRepo
	PaymentRepo
	FavouriteRepo
}

type SupabaseRepo struct {
	supabaseClient *supabase.Client
	url            string
	key            string
}

func SupabaseNewRepo(supabaseClient *supabase.Client, url, key string) *SupabaseRepo {
	return &SupabaseRepo{
		supabaseClient: supabaseClient,
		url:            url,
		key:            key,
	}
}

type MongodbRepo struct {
	mongodbClient *mongo.Client
	dbName        string
}

func MongodbNewRepo(mongodbClient *mongo.Client, dbName string) *MongodbRepo {
	return &MongodbRepo{
		mongodbClient: mongodbClient,
		dbName:        dbName,
	}
}

func (mdb *MongodbRepo) GetCollection(ctx context.Context, colName string) (*mongo.Collection, error) {
	if mdb.mongodbClient == nil {
		return nil, fmt.Errorf("mongodb client is not initialized")
	}
	return mdb.mongodbClient.Database(mdb.dbName).Collection(colName), nil
}

// EnsureIndexes creates the indexes of every collection the repo owns.
func (mdb *MongodbRepo) EnsureIndexes(ctx context.Context) error {
	if err := mdb.ensureViewIndexes(ctx); err != nil {
		return err
	}
	if err := mdb.ensureAuditIndexes(ctx); err != nil {
		return err
	}
	if err := mdb.ensurePaymentIndexes(ctx); err != nil {
		return err
	}
	return mdb.ensureFavouriteIndexes(ctx)
}
