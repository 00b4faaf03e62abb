// Package database opens the MongoDB connection used by every repository.
package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo bundles the client and the application database. It is constructed
// once at boot and handed to the repositories; nothing reads it from a
// package global.
type Mongo struct {
	Client *mongo.Client
	DB     *mongo.Database
}

// Connect opens the client, verifies the connection with a ping, and
// ensures the collection indexes the application relies on.
func Connect(ctx context.Context, uri, db string) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOpts := options.Client().ApplyURI(uri).
		SetConnectTimeout(5 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(25)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("database: connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("database: ping: %w", err)
	}

	m := &Mongo{Client: client, DB: client.Database(db)}
	if err := m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return m, nil
}

// ensureIndexes creates the unique and lookup indexes. Safe to run on every
// boot; Mongo treats an existing identical index as a no-op.
func (m *Mongo) ensureIndexes(ctx context.Context) error {
	users := m.DB.Collection("users")
	if _, err := users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("database: users email index: %w", err)
	}

	products := m.DB.Collection("products")
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "category", Value: 1}}},
		{Keys: bson.D{{Key: "soldBy", Value: 1}}},
		{Keys: bson.D{{Key: "name", Value: 1}}},
	}
	if _, err := products.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("database: products indexes: %w", err)
	}

	intents := m.DB.Collection("storage_intents")
	if _, err := intents.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created", Value: 1}},
	}); err != nil {
		return fmt.Errorf("database: intents index: %w", err)
	}

	return nil
}

// Close disconnects the client, bounded by a short timeout.
func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.Client.Disconnect(ctx)
}
