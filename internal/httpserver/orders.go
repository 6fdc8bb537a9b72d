package httpserver

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"tableside/internal/domain"
	"tableside/internal/lifecycle"
)

type orderHandlers struct {
	orders    OrderReader
	lifecycle Lifecycle
	logger    *log.Logger
}

type orderResponse struct {
	Order            *domain.Order `json:"order"`
	CountdownSeconds *int64        `json:"countdownSeconds,omitempty"`
	OutOfSync        bool          `json:"outOfSync"`
}

type orderPatchRequest struct {
	Status          *string `json:"status"`
	PrepTimeMinutes *int    `json:"prepTimeMinutes"`
}

func orderNumberParam(c *gin.Context) (int64, bool) {
	n, err := strconv.ParseInt(c.Param("number"), 10, 64)
	if err != nil || n < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order number"})
		return 0, false
	}
	return n, true
}

func toOrderResponse(o *domain.Order, outOfSync bool) orderResponse {
	resp := orderResponse{Order: o, OutOfSync: outOfSync}
	if remaining, ok := lifecycle.Countdown(o, time.Now()); ok {
		secs := int64(remaining / time.Second)
		resp.CountdownSeconds = &secs
	}
	return resp
}

func (h orderHandlers) get(c *gin.Context) {
	n, ok := orderNumberParam(c)
	if !ok {
		return
	}

	order, err := h.orders.GetByNumber(c.Request.Context(), n)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		h.logger.Printf("get order %d: %v", n, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, toOrderResponse(order, h.lifecycle.OutOfSync(n)))
}

func (h orderHandlers) pause(c *gin.Context) {
	n, ok := orderNumberParam(c)
	if !ok {
		return
	}
	order, err := h.lifecycle.Pause(c.Request.Context(), n)
	if err != nil {
		h.commandError(c, n, "pause", err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order, h.lifecycle.OutOfSync(n)))
}

func (h orderHandlers) resume(c *gin.Context) {
	n, ok := orderNumberParam(c)
	if !ok {
		return
	}
	order, err := h.lifecycle.Resume(c.Request.Context(), n)
	if err != nil {
		h.commandError(c, n, "resume", err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order, h.lifecycle.OutOfSync(n)))
}

// patch applies staff adjustments: a forward status override, a new prep
// time, or both in one request.
func (h orderHandlers) patch(c *gin.Context) {
	n, ok := orderNumberParam(c)
	if !ok {
		return
	}

	var req orderPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Status == nil && req.PrepTimeMinutes == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to change"})
		return
	}

	var (
		order *domain.Order
		err   error
	)
	if req.PrepTimeMinutes != nil {
		order, err = h.lifecycle.SetPrepTime(c.Request.Context(), n, *req.PrepTimeMinutes)
		if err != nil {
			h.commandError(c, n, "set prep time", err)
			return
		}
	}
	if req.Status != nil {
		to, perr := domain.ParseStatus(*req.Status)
		if perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": perr.Error()})
			return
		}
		order, err = h.lifecycle.Override(c.Request.Context(), n, to)
		if err != nil {
			h.commandError(c, n, "override", err)
			return
		}
	}

	c.JSON(http.StatusOK, toOrderResponse(order, h.lifecycle.OutOfSync(n)))
}

func (h orderHandlers) commandError(c *gin.Context, n int64, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrStale):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Printf("%s order %d: %v", op, n, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
