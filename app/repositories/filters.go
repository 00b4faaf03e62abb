package repositories

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// SearchFilter turns the storefront filter map into find criteria.
// A "price" entry is read as [low, high] and becomes a $gte/$lte range;
// any other non-empty list becomes $in. Empty lists are skipped entirely.
func SearchFilter(filters map[string][]interface{}) bson.M {
	out := bson.M{}
	for key, values := range filters {
		if len(values) == 0 {
			continue
		}
		if key == "price" {
			rng := bson.M{"$gte": values[0]}
			if len(values) > 1 {
				rng["$lte"] = values[1]
			}
			out[key] = rng
			continue
		}
		out[key] = bson.M{"$in": coerceIDs(key, values)}
	}
	return out
}

// NameSearchFilter builds the typeahead criteria: case-insensitive regex on
// name, narrowed to a category unless the sentinel "All" is selected.
// Returns nil when search is empty; callers answer with an empty list.
func NameSearchFilter(search, category string) bson.M {
	if search == "" {
		return nil
	}
	query := bson.M{
		"name": bson.M{"$regex": search, "$options": "i"},
	}
	if category != "" && category != "All" {
		if id, err := primitive.ObjectIDFromHex(category); err == nil {
			query["category"] = id
		} else {
			query["category"] = category
		}
	}
	return query
}

// RelatedFilter matches products in the same category, excluding the product
// itself.
func RelatedFilter(id, category primitive.ObjectID) bson.M {
	return bson.M{
		"_id":      bson.M{"$ne": id},
		"category": category,
	}
}

// OrderItem is one line of a fulfilled order.
type OrderItem struct {
	ProductID primitive.ObjectID `json:"_id"`
	Count     int                `json:"count"`
}

// DecreaseOps builds the bulk update models for order fulfillment: each
// product's quantity drops by count and its sold tally rises by count.
func DecreaseOps(items []OrderItem) []mongo.WriteModel {
	ops := make([]mongo.WriteModel, 0, len(items))
	for _, item := range items {
		ops = append(ops, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": item.ProductID}).
			SetUpdate(bson.M{"$inc": bson.M{
				"quantity": -item.Count,
				"sold":     item.Count,
			}}))
	}
	return ops
}

// coerceIDs converts hex object-id strings in reference filters (category,
// soldBy) so the $in matches stored ObjectIDs. Everything else passes through.
func coerceIDs(key string, values []interface{}) []interface{} {
	if key != "category" && key != "soldBy" {
		return values
	}
	out := make([]interface{}, len(values))
	for i, v := range values {
		if s, ok := v.(string); ok {
			if id, err := primitive.ObjectIDFromHex(s); err == nil {
				out[i] = id
				continue
			}
		}
		out[i] = v
	}
	return out
}
