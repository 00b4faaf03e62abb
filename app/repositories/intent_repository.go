package repositories

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/shashiranjanraj/dukaan/pkg/metrics"
)

// DeleteIntent records that a storage object should no longer exist. Intents
// are written before the object delete is attempted and cleared once it
// succeeds, so a crash or storage outage between the two leaves a durable
// marker for the reconciliation sweep.
type DeleteIntent struct {
	Key     string    `bson:"key"`
	Disk    string    `bson:"disk"`
	Created time.Time `bson:"created"`
}

// IntentRepository persists delete intents in the storage_intents collection.
type IntentRepository struct {
	intents *mongo.Collection
}

func NewIntentRepository(db *mongo.Database) *IntentRepository {
	return &IntentRepository{intents: db.Collection("storage_intents")}
}

// Record writes intents for the given keys. Re-recording a key is harmless;
// the sweep deduplicates by key when it runs.
func (r *IntentRepository) Record(ctx context.Context, disk string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	defer metrics.ObserveDBQuery("storage_intents.insertMany", time.Now())

	docs := make([]interface{}, 0, len(keys))
	now := time.Now().UTC()
	for _, key := range keys {
		docs = append(docs, DeleteIntent{Key: key, Disk: disk, Created: now})
	}
	if _, err := r.intents.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("repositories: record intents: %w", err)
	}
	return nil
}

// Clear removes every intent for the given keys.
func (r *IntentRepository) Clear(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	defer metrics.ObserveDBQuery("storage_intents.deleteMany", time.Now())

	if _, err := r.intents.DeleteMany(ctx, bson.M{"key": bson.M{"$in": keys}}); err != nil {
		return fmt.Errorf("repositories: clear intents: %w", err)
	}
	return nil
}

// All returns every outstanding intent, oldest first.
func (r *IntentRepository) All(ctx context.Context) ([]DeleteIntent, error) {
	defer metrics.ObserveDBQuery("storage_intents.find", time.Now())

	cur, err := r.intents.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("repositories: find intents: %w", err)
	}
	defer cur.Close(ctx)

	intents := []DeleteIntent{}
	if err := cur.All(ctx, &intents); err != nil {
		return nil, fmt.Errorf("repositories: decode intents: %w", err)
	}
	return intents, nil
}
