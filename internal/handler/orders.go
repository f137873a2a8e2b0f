package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/safar/go-storefront/internal/auth"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/store"
	"github.com/sirupsen/logrus"
)

type OrderHandler struct {
	db  *sql.DB
	log logrus.FieldLogger
}

func NewOrderHandler(db *sql.DB, log logrus.FieldLogger) *OrderHandler {
	return &OrderHandler{
		db:  db,
		log: log,
	}
}

type checkoutRequest struct {
	ShippingAddress *models.Address `json:"shipping_address" validate:"required"`
	BillingAddress  *models.Address `json:"billing_address" validate:"required"`
}

type updateOrderStatusRequest struct {
	Status models.OrderStatus `json:"status" validate:"required"`
}

type updatePaymentStatusRequest struct {
	PaymentStatus   models.PaymentStatus `json:"payment_status" validate:"required"`
	PaymentIntentID *string              `json:"payment_intent_id"`
}

// Checkout turns the user's cart into an order.
func (h *OrderHandler) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	user, _ := auth.UserFrom(c)

	var req checkoutRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	order, err := store.CreateOrderFromCart(ctx, h.db, user.ID, req.ShippingAddress, req.BillingAddress)
	if err != nil {
		if errors.Is(err, database.ErrEmptyCart) {
			return respondError(c, http.StatusBadRequest, "Cart is empty")
		}
		h.log.WithError(err).WithField("user_id", user.ID).Error("create order")
		return respondError(c, http.StatusInternalServerError, "Failed to create order")
	}

	h.log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"user_id":  user.ID,
		"total":    order.TotalAmount.StringFixed(2),
	}).Info("order created")

	full, err := store.GetOrderByID(ctx, h.db, user.ID, order.ID)
	if err != nil {
		h.log.WithError(err).WithField("order_id", order.ID).Warn("reload created order")
		return c.JSON(http.StatusCreated, order)
	}

	return c.JSON(http.StatusCreated, full)
}

func (h *OrderHandler) ListOrders(c echo.Context) error {
	user, _ := auth.UserFrom(c)

	cursor := c.QueryParam("cursor")
	if _, err := store.DecodeCursor(cursor); err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid cursor")
	}

	limit, ok := positiveInt(c, "limit", store.DefaultOrderLimit)
	if !ok || limit > 100 {
		return respondError(c, http.StatusBadRequest, "Invalid limit")
	}

	page, err := store.GetUserOrders(c.Request().Context(), h.db, user.ID, cursor, limit)
	if err != nil {
		h.log.WithError(err).WithField("user_id", user.ID).Error("list orders")
		return respondError(c, http.StatusInternalServerError, "Failed to list orders")
	}

	return c.JSON(http.StatusOK, page)
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	user, _ := auth.UserFrom(c)

	orderID, ok := parseID(c, "id")
	if !ok {
		return respondError(c, http.StatusBadRequest, "Invalid order ID")
	}

	order, err := store.GetOrderByID(c.Request().Context(), h.db, user.ID, orderID)
	if err != nil {
		if errors.Is(err, database.ErrOrderNotFound) {
			return respondError(c, http.StatusNotFound, "Order not found")
		}
		h.log.WithError(err).WithField("order_id", orderID).Error("get order")
		return respondError(c, http.StatusInternalServerError, "Failed to load order")
	}

	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	orderID, ok := parseID(c, "id")
	if !ok {
		return respondError(c, http.StatusBadRequest, "Invalid order ID")
	}

	var req updateOrderStatusRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	order, err := store.UpdateOrderStatus(c.Request().Context(), h.db, orderID, req.Status)
	if err != nil {
		return h.transitionError(c, err, orderID)
	}

	h.log.WithFields(logrus.Fields{
		"order_id": orderID,
		"status":   order.Status,
	}).Info("order status updated")

	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) UpdatePayment(c echo.Context) error {
	orderID, ok := parseID(c, "id")
	if !ok {
		return respondError(c, http.StatusBadRequest, "Invalid order ID")
	}

	var req updatePaymentStatusRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	order, err := store.UpdatePaymentStatus(c.Request().Context(), h.db, orderID, req.PaymentStatus, req.PaymentIntentID)
	if err != nil {
		return h.transitionError(c, err, orderID)
	}

	h.log.WithFields(logrus.Fields{
		"order_id":       orderID,
		"payment_status": order.PaymentStatus,
	}).Info("payment status updated")

	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) transitionError(c echo.Context, err error, orderID uuid.UUID) error {
	switch {
	case errors.Is(err, database.ErrOrderNotFound):
		return respondError(c, http.StatusNotFound, "Order not found")
	case errors.Is(err, database.ErrInvalidStatus):
		return respondError(c, http.StatusBadRequest, "Invalid status")
	case errors.Is(err, database.ErrInvalidTransition):
		return respondError(c, http.StatusConflict, err.Error())
	}

	h.log.WithError(err).WithField("order_id", orderID).Error("update order")
	return respondError(c, http.StatusInternalServerError, "Failed to update order")
}
