package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/safar/go-storefront/internal/auth"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/store"
	"github.com/sirupsen/logrus"
)

type AdminHandler struct {
	db     *sql.DB
	log    logrus.FieldLogger
	admins map[string]struct{}
}

// NewAdminHandler restricts admin routes to the given emails. With no
// emails every signed-in user is an admin.
func NewAdminHandler(db *sql.DB, log logrus.FieldLogger, adminEmails []string) *AdminHandler {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, email := range adminEmails {
		if email != "" {
			admins[email] = struct{}{}
		}
	}

	return &AdminHandler{
		db:     db,
		log:    log,
		admins: admins,
	}
}

type adminStats struct {
	TotalProducts    int64 `json:"total_products"`
	FeaturedProducts int64 `json:"featured_products"`
	Categories       int   `json:"categories"`
}

func (h *AdminHandler) RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := auth.UserFrom(c)
			if !ok {
				return respondError(c, http.StatusUnauthorized, "Not authenticated")
			}
			if len(h.admins) > 0 {
				if _, ok := h.admins[user.Email]; !ok {
					return respondError(c, http.StatusForbidden, "Admin access required")
				}
			}
			return next(c)
		}
	}
}

func (h *AdminHandler) Dashboard(c echo.Context) error {
	ctx := c.Request().Context()

	categories, err := store.ListCategories(ctx, h.db)
	if err != nil {
		h.log.WithError(err).Error("admin list categories")
		categories = []models.Category{}
	}

	products, err := store.ListProducts(ctx, h.db, store.DefaultProductLimit, 0)
	if err != nil {
		h.log.WithError(err).Error("admin list products")
		products = []models.Product{}
	}

	total, featured, err := store.CountProducts(ctx, h.db)
	if err != nil {
		h.log.WithError(err).Error("admin count products")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"stats": adminStats{
			TotalProducts:    total,
			FeaturedProducts: featured,
			Categories:       len(categories),
		},
		"categories": categories,
		"products":   products,
	})
}

// AdvanceFulfillment runs one step of the fulfillment queue on demand.
func (h *AdminHandler) AdvanceFulfillment(c echo.Context) error {
	order, err := store.AdvancePaidOrder(c.Request().Context(), h.db)
	if err != nil {
		if errors.Is(err, database.ErrNoPendingOrder) {
			return c.NoContent(http.StatusNoContent)
		}
		h.log.WithError(err).Error("advance paid order")
		return respondError(c, http.StatusInternalServerError, "Failed to advance order")
	}

	h.log.WithField("order_id", order.ID).Info("order moved to processing")
	return c.JSON(http.StatusOK, order)
}
