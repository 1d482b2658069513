package repository

import (
	"context"
	"time"

	"fleettrack/internal/core/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type TripRepository interface {
	Create(trip *model.Trip) error
	Update(trip *model.Trip) error
	Delete(id string) error
	FindByID(id string) (*model.Trip, error)
	// FindOpenByDeviceID returns the device's open trip (endTime unset),
	// or nil. A device has at most one open trip at a time.
	FindOpenByDeviceID(deviceID string) (*model.Trip, error)
	// FindLatestClosedByDeviceID returns the most recently ended trip,
	// or nil.
	FindLatestClosedByDeviceID(deviceID string) (*model.Trip, error)
	FindByDeviceID(deviceID string) ([]*model.Trip, error)
}

type MongoTripRepository struct {
	collection *mongo.Collection
}

func NewMongoTripRepository(db *mongo.Database) *MongoTripRepository {
	return &MongoTripRepository{
		collection: db.Collection("trips"),
	}
}

func (r *MongoTripRepository) Create(trip *model.Trip) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := r.collection.InsertOne(ctx, trip)
	return err
}

func (r *MongoTripRepository) Update(trip *model.Trip) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	trip.UpdatedAt = time.Now().UTC()
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": trip.ID}, trip)
	return err
}

func (r *MongoTripRepository) Delete(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *MongoTripRepository) FindByID(id string) (*model.Trip, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var trip model.Trip
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&trip)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &trip, nil
}

func (r *MongoTripRepository) FindOpenByDeviceID(deviceID string) (*model.Trip, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var trip model.Trip
	err := r.collection.FindOne(ctx, bson.M{
		"deviceId": deviceID,
		"endTime":  bson.M{"$exists": false},
	}).Decode(&trip)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &trip, nil
}

func (r *MongoTripRepository) FindLatestClosedByDeviceID(deviceID string) (*model.Trip, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opts := options.FindOne().SetSort(bson.M{"endTime": -1})
	var trip model.Trip
	err := r.collection.FindOne(ctx, bson.M{
		"deviceId": deviceID,
		"endTime":  bson.M{"$exists": true},
	}, opts).Decode(&trip)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &trip, nil
}

func (r *MongoTripRepository) FindByDeviceID(deviceID string) ([]*model.Trip, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.M{"startTime": 1})
	cursor, err := r.collection.Find(ctx, bson.M{"deviceId": deviceID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var trips []*model.Trip
	if err = cursor.All(ctx, &trips); err != nil {
		return nil, err
	}
	return trips, nil
}
