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

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("not found")

// ProductRepository handles catalog persistence.
type ProductRepository struct {
	products   *mongo.Collection
	categories *mongo.Collection
	users      *mongo.Collection
}

func NewProductRepository(db *mongo.Database) *ProductRepository {
	return &ProductRepository{
		products:   db.Collection("products"),
		categories: db.Collection("categories"),
		users:      db.Collection("users"),
	}
}

// FindByID loads one product with its category populated.
func (r *ProductRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	defer metrics.ObserveDBQuery("products.findOne", time.Now())

	var product models.Product
	err := r.products.FindOne(ctx, bson.M{"_id": id}).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repositories: find product: %w", err)
	}

	if err := r.populateCategories(ctx, []*models.Product{&product}, false); err != nil {
		return nil, err
	}
	return &product, nil
}

// List returns up to limit products sorted by sortBy/order, categories
// populated. Defaults: _id ascending, 6 items.
func (r *ProductRepository) List(ctx context.Context, sortBy, order string, limit int64) ([]*models.Product, error) {
	defer metrics.ObserveDBQuery("products.find", time.Now())

	if sortBy == "" {
		sortBy = "_id"
	}
	if limit <= 0 {
		limit = 6
	}

	opts := options.Find().
		SetSort(bson.D{{Key: sortBy, Value: sortOrder(order, 1)}}).
		SetLimit(limit)

	products, err := r.decodeAll(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	if err := r.populateCategories(ctx, products, false); err != nil {
		return nil, err
	}
	return products, nil
}

// ListRelated returns products sharing the given product's category,
// excluding the product itself. Categories are populated with id and name
// only.
func (r *ProductRepository) ListRelated(ctx context.Context, product *models.Product, limit int64) ([]*models.Product, error) {
	defer metrics.ObserveDBQuery("products.find", time.Now())

	if limit <= 0 {
		limit = 6
	}

	filter := RelatedFilter(product.ID, product.Category)
	products, err := r.decodeAll(ctx, filter, options.Find().SetLimit(limit))
	if err != nil {
		return nil, err
	}
	if err := r.populateCategories(ctx, products, true); err != nil {
		return nil, err
	}
	return products, nil
}

// DistinctCategories returns every category currently used by a product.
func (r *ProductRepository) DistinctCategories(ctx context.Context) ([]models.Category, error) {
	defer metrics.ObserveDBQuery("products.distinct", time.Now())

	raw, err := r.products.Distinct(ctx, "category", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("repositories: distinct categories: %w", err)
	}

	ids := make([]primitive.ObjectID, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(primitive.ObjectID); ok {
			ids = append(ids, id)
		}
	}
	return r.categoriesByIDs(ctx, ids, false)
}

// Search runs the storefront filter query with paging. Defaults: sort by _id
// descending, limit 100.
func (r *ProductRepository) Search(ctx context.Context, filter bson.M, sortBy, order string, skip, limit int64) ([]*models.Product, error) {
	defer metrics.ObserveDBQuery("products.find", time.Now())

	if sortBy == "" {
		sortBy = "_id"
	}
	if order == "" {
		order = "desc"
	}
	if limit <= 0 {
		limit = 100
	}

	opts := options.Find().
		SetSort(bson.D{{Key: sortBy, Value: sortOrder(order, -1)}}).
		SetSkip(skip).
		SetLimit(limit)

	products, err := r.decodeAll(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	if err := r.populateCategories(ctx, products, false); err != nil {
		return nil, err
	}
	return products, nil
}

// NameSearch runs the typeahead query. An empty search term yields an empty
// slice without touching the database.
func (r *ProductRepository) NameSearch(ctx context.Context, search, category string) ([]*models.Product, error) {
	filter := NameSearchFilter(search, category)
	if filter == nil {
		return []*models.Product{}, nil
	}

	defer metrics.ObserveDBQuery("products.find", time.Now())
	return r.decodeAll(ctx, filter, options.Find())
}

// DecreaseQuantity applies the order's quantity decrements in one bulk
// write. Each product update is atomic on its own; there is no cross-product
// transaction.
func (r *ProductRepository) DecreaseQuantity(ctx context.Context, items []OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	defer metrics.ObserveDBQuery("products.bulkWrite", time.Now())

	_, err := r.products.BulkWrite(ctx, DecreaseOps(items))
	if err != nil {
		return fmt.Errorf("repositories: decrease quantity: %w", err)
	}
	return nil
}

// ByUser lists one seller's products with the seller summary populated.
func (r *ProductRepository) ByUser(ctx context.Context, sellerID primitive.ObjectID) ([]*models.Product, error) {
	defer metrics.ObserveDBQuery("products.find", time.Now())

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetProjection(bson.M{
			"name": 1, "description": 1, "price": 1, "category": 1,
			"quantity": 1, "shipping": 1, "photo": 1, "soldBy": 1,
		})

	products, err := r.decodeAll(ctx, bson.M{"soldBy": sellerID}, opts)
	if err != nil {
		return nil, err
	}

	var seller models.User
	if err := r.users.FindOne(ctx, bson.M{"_id": sellerID}).Decode(&seller); err == nil {
		summary := seller.Summary()
		for _, p := range products {
			p.Seller = &summary
		}
	}
	return products, nil
}

// Create inserts a new product and fills in its generated id.
func (r *ProductRepository) Create(ctx context.Context, product *models.Product) error {
	defer metrics.ObserveDBQuery("products.insertOne", time.Now())

	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now
	if product.ID.IsZero() {
		product.ID = primitive.NewObjectID()
	}

	if _, err := r.products.InsertOne(ctx, product); err != nil {
		return fmt.Errorf("repositories: create product: %w", err)
	}
	return nil
}

// Save replaces the stored document with the given state.
func (r *ProductRepository) Save(ctx context.Context, product *models.Product) error {
	defer metrics.ObserveDBQuery("products.replaceOne", time.Now())

	product.UpdatedAt = time.Now().UTC()
	res, err := r.products.ReplaceOne(ctx, bson.M{"_id": product.ID}, product)
	if err != nil {
		return fmt.Errorf("repositories: save product: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes one product document.
func (r *ProductRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer metrics.ObserveDBQuery("products.deleteOne", time.Now())

	res, err := r.products.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("repositories: delete product: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteBySeller removes all of a seller's products and returns the deleted
// documents so their storage objects can be cleaned up.
func (r *ProductRepository) DeleteBySeller(ctx context.Context, sellerID primitive.ObjectID) ([]*models.Product, error) {
	defer metrics.ObserveDBQuery("products.deleteMany", time.Now())

	products, err := r.decodeAll(ctx, bson.M{"soldBy": sellerID}, options.Find())
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, nil
	}
	if _, err := r.products.DeleteMany(ctx, bson.M{"soldBy": sellerID}); err != nil {
		return nil, fmt.Errorf("repositories: delete by seller: %w", err)
	}
	return products, nil
}

// ─── internals ───────────────────────────────────────────────────────────────

func (r *ProductRepository) decodeAll(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.Product, error) {
	cur, err := r.products.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("repositories: find products: %w", err)
	}
	defer cur.Close(ctx)

	products := []*models.Product{}
	if err := cur.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("repositories: decode products: %w", err)
	}
	return products, nil
}

// populateCategories attaches category documents in one $in query.
// nameOnly restricts the projection to _id and name.
func (r *ProductRepository) populateCategories(ctx context.Context, products []*models.Product, nameOnly bool) error {
	if len(products) == 0 {
		return nil
	}

	seen := map[primitive.ObjectID]bool{}
	ids := []primitive.ObjectID{}
	for _, p := range products {
		if !p.Category.IsZero() && !seen[p.Category] {
			seen[p.Category] = true
			ids = append(ids, p.Category)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	categories, err := r.categoriesByIDs(ctx, ids, nameOnly)
	if err != nil {
		return err
	}

	byID := make(map[primitive.ObjectID]*models.Category, len(categories))
	for i := range categories {
		byID[categories[i].ID] = &categories[i]
	}
	for _, p := range products {
		if c, ok := byID[p.Category]; ok {
			p.CategoryDoc = c
		}
	}
	return nil
}

func (r *ProductRepository) categoriesByIDs(ctx context.Context, ids []primitive.ObjectID, nameOnly bool) ([]models.Category, error) {
	if len(ids) == 0 {
		return []models.Category{}, nil
	}

	opts := options.Find()
	if nameOnly {
		opts.SetProjection(bson.M{"_id": 1, "name": 1})
	}

	cur, err := r.categories.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
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

func sortOrder(order string, fallback int) int {
	switch order {
	case "asc":
		return 1
	case "desc":
		return -1
	}
	return fallback
}
