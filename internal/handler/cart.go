package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/safar/go-storefront/internal/auth"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type CartHandler struct {
	db  *sql.DB
	log logrus.FieldLogger
}

func NewCartHandler(db *sql.DB, log logrus.FieldLogger) *CartHandler {
	return &CartHandler{
		db:  db,
		log: log,
	}
}

type cartResponse struct {
	Items    []models.CartItem `json:"items"`
	Subtotal decimal.Decimal   `json:"subtotal"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"gte=1"`
}

func (h *CartHandler) GetCart(c echo.Context) error {
	user, _ := auth.UserFrom(c)

	items, err := store.GetCartItems(c.Request().Context(), h.db, user.ID)
	if err != nil {
		h.log.WithError(err).WithField("user_id", user.ID).Error("get cart items")
		items = []models.CartItem{}
	}

	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}

	return c.JSON(http.StatusOK, cartResponse{Items: items, Subtotal: subtotal})
}

// AddItem takes productId and quantity from the query string. Browser form
// posts are answered with a redirect to the cart page.
func (h *CartHandler) AddItem(c echo.Context) error {
	user, ok := auth.UserFrom(c)
	if !ok {
		return c.Redirect(http.StatusSeeOther, "/login")
	}

	rawID := c.QueryParam("productId")
	if rawID == "" {
		return respondError(c, http.StatusBadRequest, "Product ID is required")
	}
	productID, err := uuid.Parse(rawID)
	if err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid product ID")
	}

	quantity, ok := positiveInt(c, "quantity", 1)
	if !ok {
		return respondError(c, http.StatusBadRequest, "Quantity must be a positive integer")
	}

	if _, err := store.AddToCart(c.Request().Context(), h.db, user.ID, productID, quantity); err != nil {
		if errors.Is(err, database.ErrProductNotFound) {
			return respondError(c, http.StatusNotFound, "Product not found")
		}
		h.log.WithError(err).WithFields(logrus.Fields{
			"user_id":    user.ID,
			"product_id": productID,
		}).Error("add to cart")
		return respondError(c, http.StatusInternalServerError, "Failed to add item to cart")
	}

	if strings.Contains(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationForm) {
		return c.Redirect(http.StatusSeeOther, "/cart")
	}

	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (h *CartHandler) UpdateItem(c echo.Context) error {
	user, _ := auth.UserFrom(c)

	itemID, ok := parseID(c, "id")
	if !ok {
		return respondError(c, http.StatusBadRequest, "Invalid cart item ID")
	}

	var req updateCartItemRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	item, err := store.UpdateCartItemQuantity(c.Request().Context(), h.db, user.ID, itemID, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrCartItemNotFound):
			return respondError(c, http.StatusNotFound, "Cart item not found")
		case errors.Is(err, database.ErrInvalidQuantity):
			return respondError(c, http.StatusBadRequest, err.Error())
		}
		h.log.WithError(err).WithField("cart_item_id", itemID).Error("update cart item")
		return respondError(c, http.StatusInternalServerError, "Failed to update cart item")
	}

	return c.JSON(http.StatusOK, item)
}

func (h *CartHandler) RemoveItem(c echo.Context) error {
	user, _ := auth.UserFrom(c)

	itemID, ok := parseID(c, "id")
	if !ok {
		return respondError(c, http.StatusBadRequest, "Invalid cart item ID")
	}

	removed, err := store.RemoveFromCart(c.Request().Context(), h.db, user.ID, itemID)
	if err != nil {
		h.log.WithError(err).WithField("cart_item_id", itemID).Error("remove from cart")
		return respondError(c, http.StatusInternalServerError, "Failed to remove cart item")
	}
	if !removed {
		return respondError(c, http.StatusNotFound, "Cart item not found")
	}

	return c.NoContent(http.StatusNoContent)
}
