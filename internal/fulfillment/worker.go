package fulfillment

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/store"
	"github.com/sirupsen/logrus"
)

// Worker moves paid orders from pending to processing on a fixed interval.
// Several workers may run against the same database.
type Worker struct {
	db       *sql.DB
	interval time.Duration
	log      logrus.FieldLogger
}

func NewWorker(db *sql.DB, interval time.Duration, log logrus.FieldLogger) *Worker {
	return &Worker{
		db:       db,
		interval: interval,
		log:      log.WithField("component", "fulfillment"),
	}
}

// Run blocks until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.WithField("interval", w.interval.String()).Info("fulfillment worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info("fulfillment worker stopped")
			return
		case <-ticker.C:
			w.Drain(ctx)
		}
	}
}

// Drain advances paid orders until none are left and returns how many it
// moved.
func (w *Worker) Drain(ctx context.Context) int {
	advanced := 0
	for ctx.Err() == nil {
		order, err := store.AdvancePaidOrder(ctx, w.db)
		if err != nil {
			if !errors.Is(err, database.ErrNoPendingOrder) {
				w.log.WithError(err).Error("advance paid order")
			}
			return advanced
		}

		advanced++
		w.log.WithField("order_id", order.ID).Info("order moved to processing")
	}
	return advanced
}
