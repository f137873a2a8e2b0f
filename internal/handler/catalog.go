package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/store"
	"github.com/sirupsen/logrus"
)

// CatalogHandler serves the public catalog. List endpoints log backend
// failures and answer with an empty list.
type CatalogHandler struct {
	db  *sql.DB
	log logrus.FieldLogger
}

func NewCatalogHandler(db *sql.DB, log logrus.FieldLogger) *CatalogHandler {
	return &CatalogHandler{
		db:  db,
		log: log,
	}
}

func (h *CatalogHandler) ListCategories(c echo.Context) error {
	categories, err := store.ListCategories(c.Request().Context(), h.db)
	if err != nil {
		h.log.WithError(err).Error("list categories")
		categories = []models.Category{}
	}

	return c.JSON(http.StatusOK, categories)
}

func (h *CatalogHandler) GetCategory(c echo.Context) error {
	ctx := c.Request().Context()
	slug := c.Param("slug")

	category, err := store.GetCategoryBySlug(ctx, h.db, slug)
	if err != nil {
		if errors.Is(err, database.ErrCategoryNotFound) {
			return respondError(c, http.StatusNotFound, "Category not found")
		}
		h.log.WithError(err).WithField("slug", slug).Error("get category")
		return respondError(c, http.StatusInternalServerError, "Failed to load category")
	}

	products, err := store.ListProductsByCategory(ctx, h.db, category.ID, store.DefaultProductLimit)
	if err != nil {
		h.log.WithError(err).WithField("category_id", category.ID).Error("list category products")
		products = []models.Product{}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"category": category,
		"products": products,
	})
}

func (h *CatalogHandler) ListProducts(c echo.Context) error {
	ctx := c.Request().Context()
	page, pageSize := parsePage(c)

	products, err := store.ListProducts(ctx, h.db, pageSize, (page-1)*pageSize)
	if err != nil {
		h.log.WithError(err).Error("list products")
		return c.JSON(http.StatusOK, store.NewOffsetPage([]models.Product{}, 0, page, pageSize))
	}

	total, _, err := store.CountProducts(ctx, h.db)
	if err != nil {
		h.log.WithError(err).Error("count products")
		total = int64(len(products))
	}

	return c.JSON(http.StatusOK, store.NewOffsetPage(products, total, page, pageSize))
}

func (h *CatalogHandler) ListFeatured(c echo.Context) error {
	limit, ok := positiveInt(c, "limit", store.DefaultFeaturedLimit)
	if !ok {
		return respondError(c, http.StatusBadRequest, "Invalid limit")
	}

	products, err := store.ListFeaturedProducts(c.Request().Context(), h.db, limit)
	if err != nil {
		h.log.WithError(err).Error("list featured products")
		products = []models.Product{}
	}

	return c.JSON(http.StatusOK, products)
}

func (h *CatalogHandler) GetProduct(c echo.Context) error {
	slug := c.Param("slug")

	product, err := store.GetProductBySlug(c.Request().Context(), h.db, slug)
	if err != nil {
		if errors.Is(err, database.ErrProductNotFound) {
			return respondError(c, http.StatusNotFound, "Product not found")
		}
		h.log.WithError(err).WithField("slug", slug).Error("get product")
		return respondError(c, http.StatusInternalServerError, "Failed to load product")
	}

	return c.JSON(http.StatusOK, product)
}
