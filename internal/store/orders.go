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

const DefaultOrderLimit = 20

type CreateOrderRequest struct {
	UserID          uuid.UUID
	Items           []models.CartItem
	ShippingAddress *models.Address
	BillingAddress  *models.Address
}

const orderColumns = `id, user_id, status, total_amount, shipping_address, billing_address,
	payment_intent_id, payment_status, created_at, updated_at`

func orderDest(o *models.Order) []any {
	return []any{
		&o.ID,
		&o.UserID,
		&o.Status,
		&o.TotalAmount,
		&o.ShippingAddress,
		&o.BillingAddress,
		&o.PaymentIntentID,
		&o.PaymentStatus,
		&o.CreatedAt,
		&o.UpdatedAt,
	}
}

// PriceCart snapshots the current product price of every line that has its
// product loaded and returns the lines with the order total. Lines without a
// product are skipped.
func PriceCart(items []models.CartItem) ([]models.OrderItem, decimal.Decimal) {
	total := decimal.Zero
	lines := make([]models.OrderItem, 0, len(items))

	for _, item := range items {
		if item.Product == nil {
			continue
		}
		lines = append(lines, models.OrderItem{
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			PriceAtPurchase: item.Product.Price,
		})
		total = total.Add(item.LineTotal())
	}

	return lines, total
}

// CreateOrder turns the supplied cart lines into an order with price
// snapshots and takes the ordered quantities out of the user's cart. Lines
// added to the cart after the caller read it stay in the cart. The order
// insert, the item inserts and the cart update commit together or not at all.
func CreateOrder(ctx context.Context, db *sql.DB, req CreateOrderRequest) (*models.Order, error) {
	if lines, _ := PriceCart(req.Items); len(lines) == 0 {
		return nil, database.ErrEmptyCart
	}

	var order *models.Order

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var err error
		order, err = insertOrder(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

// CreateOrderFromCart checks out the user's cart as it stands once the
// transaction has locked its rows.
func CreateOrderFromCart(ctx context.Context, db *sql.DB, userID uuid.UUID, shipping, billing *models.Address) (*models.Order, error) {
	var order *models.Order

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		items, err := queryCartItems(ctx, tx, cartItemsQuery+` FOR UPDATE OF ci`, userID)
		if err != nil {
			return err
		}

		order, err = insertOrder(ctx, tx, CreateOrderRequest{
			UserID:          userID,
			Items:           items,
			ShippingAddress: shipping,
			BillingAddress:  billing,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

func insertOrder(ctx context.Context, tx *sql.Tx, req CreateOrderRequest) (*models.Order, error) {
	lines, total := PriceCart(req.Items)
	if len(lines) == 0 {
		return nil, database.ErrEmptyCart
	}

	order := &models.Order{}
	err := tx.QueryRowContext(ctx,
		`INSERT INTO orders (user_id, status, total_amount, shipping_address, billing_address,
		                     payment_status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		 RETURNING `+orderColumns,
		req.UserID, models.OrderStatusPending, total,
		req.ShippingAddress, req.BillingAddress, models.PaymentStatusPending,
	).Scan(orderDest(order)...)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	for i := range lines {
		line := &lines[i]
		err := tx.QueryRowContext(ctx,
			`INSERT INTO order_items (order_id, product_id, quantity, price_at_purchase, created_at)
			 VALUES ($1, $2, $3, $4, NOW())
			 RETURNING id, order_id, created_at`,
			order.ID, line.ProductID, line.Quantity, line.PriceAtPurchase,
		).Scan(&line.ID, &line.OrderID, &line.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}

		if err := takeFromCart(ctx, tx, req.UserID, line.ProductID, line.Quantity); err != nil {
			return nil, err
		}
	}

	return order, nil
}

// GetOrderByID returns one of the user's orders with its items and their
// products.
func GetOrderByID(ctx context.Context, db database.Querier, userID, orderID uuid.UUID) (*models.Order, error) {
	order := &models.Order{}

	err := db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND user_id = $2`,
		orderID, userID,
	).Scan(orderDest(order)...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	itemsQuery := `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price_at_purchase, oi.created_at,
		       p.id, p.name, p.slug, p.description, p.price, p.image_url,
		       p.inventory_count, p.category_id, p.is_featured, p.created_at, p.updated_at
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.created_at, oi.id`

	rows, err := db.QueryContext(ctx, itemsQuery, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		product := &models.Product{}
		dest := append([]any{
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Quantity,
			&item.PriceAtPurchase,
			&item.CreatedAt,
		}, productDest(product)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		item.Product = product
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	order.Items = items

	return order, nil
}

// GetUserOrders pages through the user's orders, newest first.
func GetUserOrders(ctx context.Context, db database.Querier, userID uuid.UUID, cursor string, limit int) (*CursorPage, error) {
	if limit < 1 {
		limit = DefaultOrderLimit
	}

	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = $1
		  AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	rows, err := db.QueryContext(ctx, query, userID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var order models.Order
		if err := rows.Scan(orderDest(&order)...); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		last := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// UpdateOrderStatus moves an order along pending → processing → shipped →
// delivered, or to cancelled from pending or processing.
func UpdateOrderStatus(ctx context.Context, db *sql.DB, orderID uuid.UUID, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, database.ErrInvalidStatus
	}

	var order *models.Order

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		current, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if !current.Status.CanTransitionTo(status) {
			return fmt.Errorf("%w: %s -> %s", database.ErrInvalidTransition, current.Status, status)
		}

		order = &models.Order{}
		err = tx.QueryRowContext(ctx,
			`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 RETURNING `+orderColumns,
			status, orderID,
		).Scan(orderDest(order)...)
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

// UpdatePaymentStatus settles a pending payment as paid or failed. A nil
// paymentIntentID keeps the stored one.
func UpdatePaymentStatus(ctx context.Context, db *sql.DB, orderID uuid.UUID, status models.PaymentStatus, paymentIntentID *string) (*models.Order, error) {
	if !status.Valid() {
		return nil, database.ErrInvalidStatus
	}

	var order *models.Order

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		current, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if !current.PaymentStatus.CanTransitionTo(status) {
			return fmt.Errorf("%w: %s -> %s", database.ErrInvalidTransition, current.PaymentStatus, status)
		}

		order = &models.Order{}
		err = tx.QueryRowContext(ctx,
			`UPDATE orders
			 SET payment_status = $1,
			     payment_intent_id = COALESCE($2, payment_intent_id),
			     updated_at = NOW()
			 WHERE id = $3
			 RETURNING `+orderColumns,
			status, paymentIntentID, orderID,
		).Scan(orderDest(order)...)
		if err != nil {
			return fmt.Errorf("update payment status: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

func lockOrder(ctx context.Context, tx *sql.Tx, orderID uuid.UUID) (*models.Order, error) {
	order := &models.Order{}

	err := tx.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID,
	).Scan(orderDest(order)...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}

	return order, nil
}

// AdvancePaidOrder claims the oldest paid order still pending and moves it
// to processing. Concurrent workers skip rows another worker holds.
func AdvancePaidOrder(ctx context.Context, db *sql.DB) (*models.Order, error) {
	var order *models.Order

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var id uuid.UUID
		err := tx.QueryRowContext(ctx,
			`SELECT id
			 FROM orders
			 WHERE status = $1 AND payment_status = $2
			 ORDER BY created_at
			 FOR UPDATE SKIP LOCKED
			 LIMIT 1`,
			models.OrderStatusPending, models.PaymentStatusPaid,
		).Scan(&id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return database.ErrNoPendingOrder
			}
			return fmt.Errorf("claim paid order: %w", err)
		}

		order = &models.Order{}
		err = tx.QueryRowContext(ctx,
			`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 RETURNING `+orderColumns,
			models.OrderStatusProcessing, id,
		).Scan(orderDest(order)...)
		if err != nil {
			return fmt.Errorf("advance order: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}
