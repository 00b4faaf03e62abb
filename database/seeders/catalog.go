package seeders

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/shashiranjanraj/dukaan/app/models"
	"github.com/shashiranjanraj/dukaan/app/repositories"
	"github.com/shashiranjanraj/dukaan/config"
)

func init() {
	Register("categories", SeedCategories)
	Register("admin-user", SeedAdminUser)
}

var defaultCategories = []string{
	"Apparel",
	"Electronics",
	"Home",
	"Shoes",
	"Sports",
}

// SeedCategories makes sure the starter categories exist. Re-running is a
// no-op thanks to the upsert.
func SeedCategories(ctx context.Context, db *mongo.Database) error {
	repo := repositories.NewCategoryRepository(db)
	for _, name := range defaultCategories {
		if _, err := repo.Ensure(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// SeedAdminUser creates the initial admin account when it does not exist.
// Credentials come from ADMIN_EMAIL / ADMIN_PASSWORD.
func SeedAdminUser(ctx context.Context, db *mongo.Database) error {
	email := config.Get("ADMIN_EMAIL", "admin@dukaan.local")
	password := config.Get("ADMIN_PASSWORD", "changeme")

	repo := repositories.NewUserRepository(db)
	if _, err := repo.FindByEmail(ctx, email); err == nil {
		return nil // already seeded
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return err
	}

	admin := &models.User{
		Name:  "Admin",
		Email: email,
		Role:  models.RoleAdmin,
	}
	admin.SetPassword(password)
	return repo.Create(ctx, admin)
}
