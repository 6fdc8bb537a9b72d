package httpserver

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"tableside/internal/billing"
	"tableside/internal/checkout"
	"tableside/internal/domain"
)

type checkoutHandlers struct {
	svc    CheckoutService
	logger *log.Logger
}

type cartItemRequest struct {
	ItemID    string          `json:"itemId" binding:"required"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice" binding:"required"`
	Quantity  int             `json:"quantity" binding:"required"`
}

type formCheckoutRequest struct {
	CustomerID    string            `json:"customerId" binding:"required"`
	Items         []cartItemRequest `json:"items" binding:"required"`
	Discount      decimal.Decimal   `json:"discount"`
	Redeemable    decimal.Decimal   `json:"redeemable"`
	PaymentMethod string            `json:"paymentMethod" binding:"required"`
	TipKind       string            `json:"tipKind"`
	TipValue      decimal.Decimal   `json:"tipValue"`
	SplitCount    int               `json:"splitCount" binding:"required"`
}

type startSessionRequest struct {
	CustomerID string            `json:"customerId" binding:"required"`
	Items      []cartItemRequest `json:"items" binding:"required"`
	Discount   decimal.Decimal   `json:"discount"`
	Redeemable decimal.Decimal   `json:"redeemable"`
}

type sessionMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

type formCheckoutResponse struct {
	Order *domain.Order     `json:"order"`
	Bill  billing.Breakdown `json:"bill"`
}

func toCart(items []cartItemRequest) domain.Cart {
	cart := domain.Cart{Items: make([]domain.CartItem, 0, len(items))}
	for _, it := range items {
		cart.Items = append(cart.Items, domain.CartItem{
			ItemID:    it.ItemID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		})
	}
	return cart
}

func (h checkoutHandlers) submitForm(c *gin.Context) {
	var req formCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, bill, err := h.svc.SubmitForm(c.Request.Context(), checkout.FormInput{
		CustomerID:    req.CustomerID,
		Cart:          toCart(req.Items),
		Discount:      req.Discount,
		Redeemable:    req.Redeemable,
		PaymentMethod: req.PaymentMethod,
		TipKind:       req.TipKind,
		TipValue:      req.TipValue,
		SplitCount:    req.SplitCount,
	})
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, domain.ErrEmptyCart) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, formCheckoutResponse{Order: order, Bill: bill.Rounded()})
}

func (h checkoutHandlers) startSession(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reply, err := h.svc.Start(c.Request.Context(), checkout.StartInput{
		CustomerID: req.CustomerID,
		Cart:       toCart(req.Items),
		Discount:   req.Discount,
		Redeemable: req.Redeemable,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, reply)
}

func (h checkoutHandlers) advanceSession(c *gin.Context) {
	var req sessionMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reply, err := h.svc.Advance(c.Request.Context(), c.Param("id"), req.Text)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found or expired"})
			return
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, reply)
}
