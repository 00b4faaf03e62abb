package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shashiranjanraj/dukaan/app/models"
	"github.com/shashiranjanraj/dukaan/pkg/metrics"
)

// CategoryRepository handles category persistence.
type CategoryRepository struct {
	categories *mongo.Collection
}

func NewCategoryRepository(db *mongo.Database) *CategoryRepository {
	return &CategoryRepository{categories: db.Collection("categories")}
}

// FindByID looks up one category.
func (r *CategoryRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Category, error) {
	defer metrics.ObserveDBQuery("categories.findOne", time.Now())

	var category models.Category
	err := r.categories.FindOne(ctx, bson.M{"_id": id}).Decode(&category)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repositories: find category: %w", err)
	}
	return &category, nil
}

// All returns every category sorted by name.
func (r *CategoryRepository) All(ctx context.Context) ([]models.Category, error) {
	defer metrics.ObserveDBQuery("categories.find", time.Now())

	cur, err := r.categories.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("repositories: find categories: %w", err)
	}
	defer cur.Close(ctx)

	categories := []models.Category{}
	if err := cur.All(ctx, &categories); err != nil {
		return nil, fmt.Errorf("repositories: decode categories: %w", err)
	}
	return categories, nil
}

// Ensure inserts a category by name if it does not already exist and
// returns the stored document. Used by the seeder.
func (r *CategoryRepository) Ensure(ctx context.Context, name string) (*models.Category, error) {
	defer metrics.ObserveDBQuery("categories.findOneAndUpdate", time.Now())

	now := time.Now().UTC()
	update := bson.M{
		"$setOnInsert": bson.M{"name": name, "createdAt": now},
		"$set":         bson.M{"updatedAt": now},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var category models.Category
	err := r.categories.FindOneAndUpdate(ctx, bson.M{"name": name}, update, opts).Decode(&category)
	if err != nil {
		return nil, fmt.Errorf("repositories: ensure category %q: %w", name, err)
	}
	return &category, nil
}
