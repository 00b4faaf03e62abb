package routes

import (
	"net/http"

	"github.com/graphql-go/graphql"

	"github.com/shashiranjanraj/dukaan/app/controllers"
	"github.com/shashiranjanraj/dukaan/app/realtime"
	gqlhttp "github.com/shashiranjanraj/dukaan/pkg/graphql"
	"github.com/shashiranjanraj/dukaan/pkg/middleware"
	"github.com/shashiranjanraj/dukaan/pkg/router"
)

// Deps carries the constructed handlers into route registration.
type Deps struct {
	Products *controllers.ProductController
	Auth     *controllers.AuthController
	Stock    *realtime.StockFeed
	Schema   graphql.Schema
}

// RegisterAPI mounts every route.
func RegisterAPI(r *router.Router, d Deps) {
	api := r.Group("/api")

	// auth
	api.Post("/signup", "auth.signup", d.Auth.Register)
	api.Post("/signin", "auth.signin", d.Auth.Login)
	api.Post("/forgot-password", "auth.forgot", d.Auth.ForgotPassword)
	api.Post("/reset-password", "auth.reset", d.Auth.ResetPassword)

	// public catalog
	api.Get("/products", "products.list", d.Products.List)
	api.Get("/products/search", "products.listSearch", d.Products.ListSearch)
	api.Get("/products/categories", "products.categories", d.Products.ListCategories)
	api.Post("/products/by/search", "products.listBySearch", d.Products.ListBySearch)
	api.Get("/products/related/{productId}", "products.related", d.Products.ListRelated)
	api.Get("/products/by/{userId}", "products.byUser", d.Products.ByUser)
	api.Get("/product/{productId}", "products.read", d.Products.Read)
	api.Get("/product/photo/{productId}", "products.photo", d.Products.Photo)
	api.Post("/graphql", "catalog.graphql", gqlhttp.Handler(d.Schema))

	// authenticated
	protected := api.Group("", middleware.Auth)
	protected.Post("/product/create", "products.create", d.Products.Create)
	protected.Put("/product/{productId}", "products.update", d.Products.Update)
	protected.Delete("/product/{productId}", "products.remove", d.Products.Remove)
	protected.Post("/order", "orders.create",
		d.Products.DecreaseQuantity(http.HandlerFunc(d.Products.OrderProcessed)).ServeHTTP)

	protected.Get("/profile", "auth.profile", d.Auth.Profile)
	protected.Put("/profile", "auth.profile.update", d.Auth.UpdateProfile)
	protected.Delete("/profile", "auth.profile.delete", d.Auth.Delete)

	// realtime stock feed
	r.Get("/ws/stock", "stock.feed", d.Stock.Handler())
}
