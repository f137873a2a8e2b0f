package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
)

const cartItemColumns = `id, user_id, product_id, quantity, created_at, updated_at`

func cartItemDest(item *models.CartItem) []any {
	return []any{
		&item.ID,
		&item.UserID,
		&item.ProductID,
		&item.Quantity,
		&item.CreatedAt,
		&item.UpdatedAt,
	}
}

const cartItemsQuery = `
	SELECT ci.id, ci.user_id, ci.product_id, ci.quantity, ci.created_at, ci.updated_at,
	       p.id, p.name, p.slug, p.description, p.price, p.image_url,
	       p.inventory_count, p.category_id, p.is_featured, p.created_at, p.updated_at
	FROM cart_items ci
	JOIN products p ON p.id = ci.product_id
	WHERE ci.user_id = $1`

// GetCartItems returns the user's cart with each product embedded. Order is
// unspecified.
func GetCartItems(ctx context.Context, db database.Querier, userID uuid.UUID) ([]models.CartItem, error) {
	return queryCartItems(ctx, db, cartItemsQuery, userID)
}

func queryCartItems(ctx context.Context, db database.Querier, query string, userID uuid.UUID) ([]models.CartItem, error) {
	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart items: %w", err)
	}
	defer rows.Close()

	items := []models.CartItem{}
	for rows.Next() {
		var item models.CartItem
		product := &models.Product{}
		if err := rows.Scan(append(cartItemDest(&item), productDest(product)...)...); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		item.Product = product
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// AddToCart merges quantity into the user's existing line for the product,
// or creates the line. The merge is a single upsert so concurrent adds for
// the same product accumulate instead of overwriting each other.
// Quantity is not capped by inventory.
func AddToCart(ctx context.Context, db database.Querier, userID, productID uuid.UUID, quantity int) (*models.CartItem, error) {
	if quantity < 1 {
		return nil, database.ErrInvalidQuantity
	}

	item := &models.CartItem{}

	query := `
		INSERT INTO cart_items (user_id, product_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (user_id, product_id) DO UPDATE
		SET quantity = cart_items.quantity + EXCLUDED.quantity,
		    updated_at = NOW()
		RETURNING ` + cartItemColumns

	err := db.QueryRowContext(ctx, query, userID, productID, quantity).Scan(cartItemDest(item)...)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("add to cart: %w", err)
	}

	return item, nil
}

func UpdateCartItemQuantity(ctx context.Context, db database.Querier, userID, cartItemID uuid.UUID, quantity int) (*models.CartItem, error) {
	if quantity < 1 {
		return nil, database.ErrInvalidQuantity
	}

	item := &models.CartItem{}

	query := `
		UPDATE cart_items
		SET quantity = $1, updated_at = NOW()
		WHERE id = $2 AND user_id = $3
		RETURNING ` + cartItemColumns

	err := db.QueryRowContext(ctx, query, quantity, cartItemID, userID).Scan(cartItemDest(item)...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCartItemNotFound
		}
		return nil, fmt.Errorf("update cart item: %w", err)
	}

	return item, nil
}

// RemoveFromCart reports whether a line was deleted.
func RemoveFromCart(ctx context.Context, db database.Querier, userID, cartItemID uuid.UUID) (bool, error) {
	result, err := db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE id = $1 AND user_id = $2`,
		cartItemID, userID)
	if err != nil {
		return false, fmt.Errorf("remove from cart: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// takeFromCart removes quantity of a product from the user's cart, deleting
// the line once nothing is left.
func takeFromCart(ctx context.Context, db database.Querier, userID, productID uuid.UUID, quantity int) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2 AND quantity <= $3`,
		userID, productID, quantity)
	if err != nil {
		return fmt.Errorf("remove ordered cart line: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`UPDATE cart_items
		 SET quantity = quantity - $3, updated_at = NOW()
		 WHERE user_id = $1 AND product_id = $2`,
		userID, productID, quantity)
	if err != nil {
		return fmt.Errorf("reduce ordered cart line: %w", err)
	}

	return nil
}
