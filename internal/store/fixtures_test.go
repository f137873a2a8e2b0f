package store_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/store"
	"github.com/shopspring/decimal"
)

type catalogFixture struct {
	jerseys     *models.Category
	accessories *models.Category
	red         *models.Product
	blue        *models.Product
	white       *models.Product
	headband    *models.Product
	loose       *models.Product
}

func strPtr(s string) *string { return &s }

func seedCatalog(t *testing.T, db *sql.DB) catalogFixture {
	t.Helper()
	ctx := context.Background()

	jerseys, err := store.UpsertCategory(ctx, db, store.UpsertCategoryRequest{
		Name: "Basketball Jerseys", Slug: "basketball-jerseys",
		Description: strPtr("High-quality basketball jerseys for fans and players"),
	})
	if err != nil {
		t.Fatalf("Upsert category: %v", err)
	}

	accessories, err := store.UpsertCategory(ctx, db, store.UpsertCategoryRequest{
		Name: "Accessories", Slug: "accessories",
	})
	if err != nil {
		t.Fatalf("Upsert category: %v", err)
	}

	product := func(name, slug, price string, inventory int, category *models.Category, featured bool) *models.Product {
		var categoryID *uuid.UUID
		if category != nil {
			categoryID = &category.ID
		}
		p, err := store.UpsertProduct(ctx, db, store.UpsertProductRequest{
			Name: name, Slug: slug, Price: decimal.RequireFromString(price),
			InventoryCount: inventory, CategoryID: categoryID, IsFeatured: featured,
		})
		if err != nil {
			t.Fatalf("Upsert product %s: %v", slug, err)
		}
		return p
	}

	return catalogFixture{
		jerseys:     jerseys,
		accessories: accessories,
		red:         product("Classic Red Basketball Jersey #23", "classic-red-basketball-jersey-23", "89.99", 50, jerseys, true),
		blue:        product("Blue Away Team Jersey #30", "blue-away-team-jersey-30", "79.99", 35, jerseys, true),
		white:       product("White Home Team Jersey #7", "white-home-team-jersey-7", "84.99", 40, jerseys, false),
		headband:    product("Headband", "headband", "10.00", 5, accessories, false),
		loose:       product("Gift Card", "gift-card", "5.00", 100, nil, true),
	}
}

func testAddress() *models.Address {
	return &models.Address{
		Name: "Jane Doe", Address1: "1 Court St", City: "Boston",
		State: "MA", PostalCode: "02108", Country: "US",
	}
}
