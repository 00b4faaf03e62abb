package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Photo is one object-storage image attached to a product.
type Photo struct {
	URL         string `bson:"url"         json:"url"`
	Key         string `bson:"key"         json:"key"`
	Name        string `bson:"name"        json:"name"`
	ContentType string `bson:"contentType" json:"contentType"`
}

// Product is a catalog item. Category and SoldBy hold references; the
// populated documents are attached by the repository under CategoryDoc and
// Seller and are never persisted.
type Product struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"         json:"_id"`
	Name        string             `bson:"name"                  json:"name"`
	Description string             `bson:"description"           json:"description"`
	Price       float64            `bson:"price"                 json:"price"`
	Category    primitive.ObjectID `bson:"category"              json:"category"`
	Quantity    int                `bson:"quantity"              json:"quantity"`
	Sold        int                `bson:"sold"                  json:"sold"`
	Shipping    bool               `bson:"shipping"              json:"shipping"`
	SoldBy      primitive.ObjectID `bson:"soldBy"                json:"soldBy"`
	Photos      []Photo            `bson:"photo"                 json:"photo"`
	Inline      *InlinePhoto       `bson:"inlinePhoto,omitempty" json:"-"`
	CreatedAt   time.Time          `bson:"createdAt"             json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"             json:"updatedAt"`

	CategoryDoc *Category `bson:"-" json:"categoryDoc,omitempty"`
	Seller      *Summary  `bson:"-" json:"seller,omitempty"`
}
