package repositories

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestSearchFilterPriceRange(t *testing.T) {
	got := SearchFilter(map[string][]interface{}{
		"price": {0, 10},
	})

	require.Contains(t, got, "price")
	rng, ok := got["price"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, 0, rng["$gte"])
	assert.Equal(t, 10, rng["$lte"])
}

func TestSearchFilterSkipsEmptyLists(t *testing.T) {
	got := SearchFilter(map[string][]interface{}{
		"price":    {},
		"category": {},
	})
	assert.Empty(t, got)
}

func TestSearchFilterCategoryIn(t *testing.T) {
	id := primitive.NewObjectID()
	got := SearchFilter(map[string][]interface{}{
		"category": {id.Hex()},
	})

	in, ok := got["category"].(bson.M)
	require.True(t, ok)
	values, ok := in["$in"].([]interface{})
	require.True(t, ok)
	require.Len(t, values, 1)
	// hex strings become ObjectIDs so the query matches stored refs
	assert.Equal(t, id, values[0])
}

func TestNameSearchFilter(t *testing.T) {
	got := NameSearchFilter("shoe", "")
	require.NotNil(t, got)
	assert.Equal(t, bson.M{"$regex": "shoe", "$options": "i"}, got["name"])
	assert.NotContains(t, got, "category")
}

func TestNameSearchFilterAllCategorySentinel(t *testing.T) {
	got := NameSearchFilter("shoe", "All")
	require.NotNil(t, got)
	assert.NotContains(t, got, "category")
}

func TestNameSearchFilterWithCategory(t *testing.T) {
	id := primitive.NewObjectID()
	got := NameSearchFilter("shoe", id.Hex())
	require.NotNil(t, got)
	assert.Equal(t, id, got["category"])
}

func TestNameSearchFilterEmptyTerm(t *testing.T) {
	assert.Nil(t, NameSearchFilter("", "anything"))
}

func TestRelatedFilterExcludesSelf(t *testing.T) {
	id := primitive.NewObjectID()
	cat := primitive.NewObjectID()

	got := RelatedFilter(id, cat)
	assert.Equal(t, bson.M{"$ne": id}, got["_id"])
	assert.Equal(t, cat, got["category"])
}

func TestPriceRangeKeepsOnlyInRangeProducts(t *testing.T) {
	filter := SearchFilter(map[string][]interface{}{
		"price": {15, 50},
	})
	rng := filter["price"].(bson.M)
	low := float64(rng["$gte"].(int))
	high := float64(rng["$lte"].(int))

	prices := []float64{10, 25, 50}
	matched := []float64{}
	for _, p := range prices {
		if p >= low && p <= high {
			matched = append(matched, p)
		}
	}
	assert.Equal(t, []float64{25, 50}, matched)
}

func TestDecreaseOps(t *testing.T) {
	a := primitive.NewObjectID()
	b := primitive.NewObjectID()

	ops := DecreaseOps([]OrderItem{
		{ProductID: a, Count: 3},
		{ProductID: b, Count: 1},
	})
	require.Len(t, ops, 2)

	first, ok := ops[0].(*mongo.UpdateOneModel)
	require.True(t, ok)
	assert.Equal(t, bson.M{"_id": a}, first.Filter)
	assert.Equal(t, bson.M{"$inc": bson.M{"quantity": -3, "sold": 3}}, first.Update)

	second, ok := ops[1].(*mongo.UpdateOneModel)
	require.True(t, ok)
	assert.Equal(t, bson.M{"_id": b}, second.Filter)
	assert.Equal(t, bson.M{"$inc": bson.M{"quantity": -1, "sold": 1}}, second.Update)
}
