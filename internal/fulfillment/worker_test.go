package fulfillment_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/safar/go-storefront/internal/database/dbtest"
	"github.com/safar/go-storefront/internal/fulfillment"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func TestDrainAdvancesPaidOrders(t *testing.T) {
	db, cleanup := dbtest.Setup(t)
	defer cleanup()

	ctx := context.Background()

	product, err := store.UpsertProduct(ctx, db, store.UpsertProductRequest{
		Name: "Headband", Slug: "headband", Price: decimal.RequireFromString("10.00"), InventoryCount: 5,
	})
	if err != nil {
		t.Fatalf("Upsert product: %v", err)
	}

	var paid []uuid.UUID
	for i := 0; i < 3; i++ {
		order, err := store.CreateOrder(ctx, db, store.CreateOrderRequest{
			UserID: uuid.New(),
			Items:  []models.CartItem{{ProductID: product.ID, Quantity: 1, Product: product}},
		})
		if err != nil {
			t.Fatalf("Create order: %v", err)
		}
		if i < 2 {
			if _, err := store.UpdatePaymentStatus(ctx, db, order.ID, models.PaymentStatusPaid, nil); err != nil {
				t.Fatalf("Mark paid: %v", err)
			}
			paid = append(paid, order.ID)
		}
	}

	log := logrus.New()
	log.SetOutput(io.Discard)
	worker := fulfillment.NewWorker(db, time.Minute, log)

	if n := worker.Drain(ctx); n != len(paid) {
		t.Errorf("Expected %d orders advanced, got %d", len(paid), n)
	}

	if n := worker.Drain(ctx); n != 0 {
		t.Errorf("Expected nothing left to advance, got %d", n)
	}
}
