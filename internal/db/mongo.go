package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Collection names.
const (
	UsersCollection       = "users"
	MissionsCollection    = "user_missions"
	ActivityCollection    = "activity_log"
	FraudCollection       = "fraud_tracking"
	ImageHashesCollection = "image_hashes"
)

// ConnectDB initializes and returns a MongoDB client and database instance.
func ConnectDB(uri, dbName string, logger *zap.Logger) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping the primary node
	ctxPing, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := client.Ping(ctxPing, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(dbName)
	logger.Info("connected to MongoDB", zap.String("database", dbName))

	return client, db, nil
}

// DisconnectDB closes the MongoDB client connection.
func DisconnectDB(client *mongo.Client, logger *zap.Logger) error {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect MongoDB: %w", err)
	}
	logger.Info("MongoDB connection closed")
	return nil
}

// EnsureIndexes creates the indexes the engine's queries rely on. hashTTLDays > 0 expires
// image hash entries after that many days; 0 keeps them forever.
func EnsureIndexes(ctx context.Context, db *mongo.Database, hashTTLDays int) error {
	byScore := func(field string) mongo.IndexModel {
		return mongo.IndexModel{Keys: bson.D{{Key: field, Value: 1}, {Key: "ecoScore", Value: -1}}}
	}
	specs := map[string][]mongo.IndexModel{
		UsersCollection: {
			{Keys: bson.D{{Key: "ecoScore", Value: -1}}},
			byScore("state"),
			byScore("district"),
			byScore("subDistrict"),
			byScore("village"),
			byScore("crops.name"),
		},
		MissionsCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "submittedAt", Value: 1}}},
		},
		ActivityCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		ImageHashesCollection: {
			{Keys: bson.D{{Key: "hash", Value: 1}}, Options: options.Index().SetName("hash_1")},
		},
	}
	if hashTTLDays > 0 {
		specs[ImageHashesCollection] = append(specs[ImageHashesCollection], mongo.IndexModel{
			Keys:    bson.D{{Key: "uploadedAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(hashTTLDays * 24 * 3600)),
		})
	}

	for coll, models := range specs {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll, err)
		}
	}
	return nil
}
