package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
)

const categoryColumns = `id, name, slug, description, image_url, created_at, updated_at`

func scanCategory(row interface{ Scan(...any) error }, c *models.Category) error {
	return row.Scan(
		&c.ID,
		&c.Name,
		&c.Slug,
		&c.Description,
		&c.ImageURL,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
}

func ListCategories(ctx context.Context, db database.Querier) ([]models.Category, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var category models.Category
		if err := scanCategory(rows, &category); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, category)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return categories, nil
}

func GetCategoryBySlug(ctx context.Context, db database.Querier, slug string) (*models.Category, error) {
	category := &models.Category{}

	err := scanCategory(db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE slug = $1`, slug), category)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("get category: %w", err)
	}

	return category, nil
}

type UpsertCategoryRequest struct {
	Name        string
	Slug        string
	Description *string
	ImageURL    *string
}

// UpsertCategory inserts a category or updates the one sharing its slug.
func UpsertCategory(ctx context.Context, db database.Querier, req UpsertCategoryRequest) (*models.Category, error) {
	category := &models.Category{}

	query := `
		INSERT INTO categories (name, slug, description, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (slug) DO UPDATE
		SET name = EXCLUDED.name,
		    description = EXCLUDED.description,
		    image_url = EXCLUDED.image_url,
		    updated_at = NOW()
		RETURNING ` + categoryColumns

	err := scanCategory(db.QueryRowContext(ctx, query,
		req.Name, req.Slug, req.Description, req.ImageURL), category)
	if err != nil {
		return nil, fmt.Errorf("upsert category: %w", err)
	}

	return category, nil
}
