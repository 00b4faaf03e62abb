// Package gql defines the read-only catalog query surface: a single
// products(search, category, limit) query backed by the repository's name
// search.
package gql

import (
	"context"

	"github.com/graphql-go/graphql"

	"github.com/shashiranjanraj/dukaan/app/models"
)

// Catalog is the repository slice the resolver needs.
type Catalog interface {
	NameSearch(ctx context.Context, search, category string) ([]*models.Product, error)
}

var photoType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Photo",
	Fields: graphql.Fields{
		"url":         &graphql.Field{Type: graphql.String},
		"key":         &graphql.Field{Type: graphql.String},
		"name":        &graphql.Field{Type: graphql.String},
		"contentType": &graphql.Field{Type: graphql.String},
	},
})

var productType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Product",
	Fields: graphql.Fields{
		"id": &graphql.Field{
			Type: graphql.String,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				if product, ok := p.Source.(*models.Product); ok {
					return product.ID.Hex(), nil
				}
				return nil, nil
			},
		},
		"name": &graphql.Field{
			Type:    graphql.String,
			Resolve: productField(func(p *models.Product) interface{} { return p.Name }),
		},
		"description": &graphql.Field{
			Type:    graphql.String,
			Resolve: productField(func(p *models.Product) interface{} { return p.Description }),
		},
		"price": &graphql.Field{
			Type:    graphql.Float,
			Resolve: productField(func(p *models.Product) interface{} { return p.Price }),
		},
		"quantity": &graphql.Field{
			Type:    graphql.Int,
			Resolve: productField(func(p *models.Product) interface{} { return p.Quantity }),
		},
		"sold": &graphql.Field{
			Type:    graphql.Int,
			Resolve: productField(func(p *models.Product) interface{} { return p.Sold }),
		},
		"shipping": &graphql.Field{
			Type:    graphql.Boolean,
			Resolve: productField(func(p *models.Product) interface{} { return p.Shipping }),
		},
		"photo": &graphql.Field{
			Type:    graphql.NewList(photoType),
			Resolve: productField(func(p *models.Product) interface{} { return p.Photos }),
		},
	},
})

func productField(get func(*models.Product) interface{}) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		if product, ok := p.Source.(*models.Product); ok {
			return get(product), nil
		}
		return nil, nil
	}
}

// RootQuery builds the catalog query object.
func RootQuery(catalog Catalog) *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name: "RootQuery",
		Fields: graphql.Fields{
			"products": &graphql.Field{
				Type: graphql.NewList(productType),
				Args: graphql.FieldConfigArgument{
					"search":   &graphql.ArgumentConfig{Type: graphql.String},
					"category": &graphql.ArgumentConfig{Type: graphql.String},
					"limit":    &graphql.ArgumentConfig{Type: graphql.Int},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					search, _ := p.Args["search"].(string)
					category, _ := p.Args["category"].(string)

					products, err := catalog.NameSearch(p.Context, search, category)
					if err != nil {
						return nil, err
					}
					if limit, ok := p.Args["limit"].(int); ok && limit > 0 && limit < len(products) {
						products = products[:limit]
					}
					return products, nil
				},
			},
		},
	})
}
