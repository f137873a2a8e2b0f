package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
	"github.com/shopspring/decimal"
)

const (
	DefaultProductLimit  = 100
	DefaultFeaturedLimit = 8
)

// productSelect embeds the product's category through a left join so
// uncategorized products still come back.
const productSelect = `
	SELECT p.id, p.name, p.slug, p.description, p.price, p.image_url,
	       p.inventory_count, p.category_id, p.is_featured, p.created_at, p.updated_at,
	       c.id, c.name, c.slug, c.description, c.image_url, c.created_at, c.updated_at
	FROM products p
	LEFT JOIN categories c ON c.id = p.category_id`

// joinedCategory holds the nullable side of a left join on categories.
type joinedCategory struct {
	ID          uuid.NullUUID
	Name        sql.NullString
	Slug        sql.NullString
	Description *string
	ImageURL    *string
	CreatedAt   sql.NullTime
	UpdatedAt   sql.NullTime
}

func (j joinedCategory) category() *models.Category {
	if !j.ID.Valid {
		return nil
	}
	return &models.Category{
		ID:          j.ID.UUID,
		Name:        j.Name.String,
		Slug:        j.Slug.String,
		Description: j.Description,
		ImageURL:    j.ImageURL,
		CreatedAt:   j.CreatedAt.Time,
		UpdatedAt:   j.UpdatedAt.Time,
	}
}

func (j *joinedCategory) dest() []any {
	return []any{&j.ID, &j.Name, &j.Slug, &j.Description, &j.ImageURL, &j.CreatedAt, &j.UpdatedAt}
}

func productDest(p *models.Product) []any {
	return []any{
		&p.ID,
		&p.Name,
		&p.Slug,
		&p.Description,
		&p.Price,
		&p.ImageURL,
		&p.InventoryCount,
		&p.CategoryID,
		&p.IsFeatured,
		&p.CreatedAt,
		&p.UpdatedAt,
	}
}

func scanProduct(row interface{ Scan(...any) error }, p *models.Product) error {
	var c joinedCategory
	if err := row.Scan(append(productDest(p), c.dest()...)...); err != nil {
		return err
	}
	p.Category = c.category()
	return nil
}

func queryProducts(ctx context.Context, db database.Querier, query string, args ...any) ([]models.Product, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var product models.Product
		if err := scanProduct(rows, &product); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

func normalizeLimit(limit, fallback int) int {
	if limit < 1 {
		return fallback
	}
	return limit
}

func ListProducts(ctx context.Context, db database.Querier, limit, offset int) ([]models.Product, error) {
	if offset < 0 {
		offset = 0
	}
	return queryProducts(ctx, db,
		productSelect+` ORDER BY p.created_at DESC, p.id DESC LIMIT $1 OFFSET $2`,
		normalizeLimit(limit, DefaultProductLimit), offset)
}

func ListFeaturedProducts(ctx context.Context, db database.Querier, limit int) ([]models.Product, error) {
	return queryProducts(ctx, db,
		productSelect+` WHERE p.is_featured ORDER BY p.created_at DESC, p.id DESC LIMIT $1`,
		normalizeLimit(limit, DefaultFeaturedLimit))
}

func ListProductsByCategory(ctx context.Context, db database.Querier, categoryID uuid.UUID, limit int) ([]models.Product, error) {
	return queryProducts(ctx, db,
		productSelect+` WHERE p.category_id = $1 ORDER BY p.created_at DESC, p.id DESC LIMIT $2`,
		categoryID, normalizeLimit(limit, DefaultProductLimit))
}

func GetProductBySlug(ctx context.Context, db database.Querier, slug string) (*models.Product, error) {
	product := &models.Product{}

	err := scanProduct(db.QueryRowContext(ctx, productSelect+` WHERE p.slug = $1`, slug), product)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

func CountProducts(ctx context.Context, db database.Querier) (total int64, featured int64, err error) {
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE is_featured) FROM products`).Scan(&total, &featured)
	if err != nil {
		return 0, 0, fmt.Errorf("count products: %w", err)
	}
	return total, featured, nil
}

type UpsertProductRequest struct {
	Name           string
	Slug           string
	Description    *string
	Price          decimal.Decimal
	ImageURL       *string
	InventoryCount int
	CategoryID     *uuid.UUID
	IsFeatured     bool
}

// UpsertProduct inserts a product or updates the one sharing its slug. The
// returned product has no category embedded.
func UpsertProduct(ctx context.Context, db database.Querier, req UpsertProductRequest) (*models.Product, error) {
	product := &models.Product{}

	query := `
		INSERT INTO products (name, slug, description, price, image_url, inventory_count,
		                      category_id, is_featured, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (slug) DO UPDATE
		SET name = EXCLUDED.name,
		    description = EXCLUDED.description,
		    price = EXCLUDED.price,
		    image_url = EXCLUDED.image_url,
		    inventory_count = EXCLUDED.inventory_count,
		    category_id = EXCLUDED.category_id,
		    is_featured = EXCLUDED.is_featured,
		    updated_at = NOW()
		RETURNING id, name, slug, description, price, image_url, inventory_count,
		          category_id, is_featured, created_at, updated_at`

	err := db.QueryRowContext(ctx, query,
		req.Name, req.Slug, req.Description, req.Price, req.ImageURL,
		req.InventoryCount, req.CategoryID, req.IsFeatured,
	).Scan(productDest(product)...)
	if err != nil {
		return nil, fmt.Errorf("upsert product: %w", err)
	}

	return product, nil
}

// SetProductPrice changes the list price. Past orders keep their
// price_at_purchase.
func SetProductPrice(ctx context.Context, db database.Querier, productID uuid.UUID, price decimal.Decimal) error {
	result, err := db.ExecContext(ctx,
		`UPDATE products SET price = $1, updated_at = NOW() WHERE id = $2`,
		price, productID)
	if err != nil {
		return fmt.Errorf("set product price: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrProductNotFound
	}

	return nil
}
