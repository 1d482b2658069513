package repository

import (
	"context"
	"time"

	"fleettrack/internal/core/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type LocationRepository interface {
	// Create appends a sample. Samples are immutable after insert.
	Create(location *model.Location) error
	// FindInRange returns all samples for a device in [from, to],
	// ordered by device timestamp ascending.
	FindInRange(deviceID string, from, to time.Time) ([]*model.Location, error)
	// FindValidInRange is FindInRange restricted to GPS-valid samples.
	FindValidInRange(deviceID string, from, to time.Time) ([]*model.Location, error)
	// FindLatestValid returns the newest GPS-valid sample, or nil.
	FindLatestValid(deviceID string) (*model.Location, error)
}

type MongoLocationRepository struct {
	collection *mongo.Collection
}

func NewMongoLocationRepository(db *mongo.Database) *MongoLocationRepository {
	return &MongoLocationRepository{
		collection: db.Collection("locations"),
	}
}

func (r *MongoLocationRepository) Create(location *model.Location) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := r.collection.InsertOne(ctx, location)
	return err
}

func (r *MongoLocationRepository) FindInRange(deviceID string, from, to time.Time) ([]*model.Location, error) {
	return r.find(bson.M{
		"deviceId":  deviceID,
		"timestamp": bson.M{"$gte": from, "$lte": to},
	})
}

func (r *MongoLocationRepository) FindValidInRange(deviceID string, from, to time.Time) ([]*model.Location, error) {
	return r.find(bson.M{
		"deviceId":  deviceID,
		"gpsValid":  true,
		"timestamp": bson.M{"$gte": from, "$lte": to},
	})
}

func (r *MongoLocationRepository) find(filter bson.M) ([]*model.Location, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.M{"timestamp": 1})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var locations []*model.Location
	if err = cursor.All(ctx, &locations); err != nil {
		return nil, err
	}
	return locations, nil
}

func (r *MongoLocationRepository) FindLatestValid(deviceID string) (*model.Location, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opts := options.FindOne().SetSort(bson.M{"timestamp": -1})
	var location model.Location
	err := r.collection.FindOne(ctx, bson.M{"deviceId": deviceID, "gpsValid": true}, opts).Decode(&location)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &location, nil
}
