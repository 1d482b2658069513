package repository

import (
	"context"
	"time"

	"fleettrack/internal/core/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type TripSettingsRepository interface {
	// FindByUserID returns the user's segmentation settings, or nil when
	// none are stored.
	FindByUserID(userID string) (*model.TripSettings, error)
	Upsert(settings *model.TripSettings) error
}

type MongoTripSettingsRepository struct {
	collection *mongo.Collection
}

func NewMongoTripSettingsRepository(db *mongo.Database) *MongoTripSettingsRepository {
	return &MongoTripSettingsRepository{
		collection: db.Collection("trip_settings"),
	}
}

func (r *MongoTripSettingsRepository) FindByUserID(userID string) (*model.TripSettings, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var settings model.TripSettings
	err := r.collection.FindOne(ctx, bson.M{"userId": userID}).Decode(&settings)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (r *MongoTripSettingsRepository) Upsert(settings *model.TripSettings) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"userId": settings.UserID}, settings, opts)
	return err
}
