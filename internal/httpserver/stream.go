package httpserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tableside/internal/domain"
	"tableside/internal/feed"
)

const heartbeatEvery = 15 * time.Second

type streamHandlers struct {
	orders    OrderReader
	lifecycle Lifecycle
	feed      feed.Feed
	logger    *log.Logger
}

// events streams order updates as server-sent events. The stream opens with
// a snapshot of the current record, forwards every change-feed update, and
// closes once the order reaches its terminal stage.
func (h streamHandlers) events(c *gin.Context) {
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
		h.logger.Printf("stream order %d: %v", n, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	updates := make(chan *domain.Order, 8)
	sub, err := h.feed.Subscribe(n, func(o *domain.Order) {
		select {
		case updates <- o:
		default:
			// A full buffer means the client is behind; it catches up on
			// the next update or reconnects and refetches.
		}
	})
	if err != nil {
		h.logger.Printf("subscribe order %d: %v", n, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	defer sub.Unsubscribe()

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)

	if !h.send(c, flusher, order) {
		return
	}
	if order.Status.Terminal() {
		return
	}

	heartbeat := time.NewTicker(heartbeatEvery)
	defer heartbeat.Stop()

	last := order.Status
	for {
		select {
		case <-c.Request.Context().Done():
			return
		case o := <-updates:
			// Status never decreases for an observer; a reordered delivery
			// (republish racing a concurrent advance) is dropped.
			if o.Status.Before(last) {
				continue
			}
			last = o.Status
			if !h.send(c, flusher, o) {
				return
			}
			if o.Status.Terminal() {
				return
			}
		case <-heartbeat.C:
			if _, err := c.Writer.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h streamHandlers) send(c *gin.Context, flusher http.Flusher, o *domain.Order) bool {
	payload, err := json.Marshal(toOrderResponse(o, h.lifecycle.OutOfSync(o.OrderNumber)))
	if err != nil {
		h.logger.Printf("marshal order %d update: %v", o.OrderNumber, err)
		return false
	}
	if _, err := c.Writer.Write([]byte("event: order\ndata: ")); err != nil {
		return false
	}
	if _, err := c.Writer.Write(payload); err != nil {
		return false
	}
	if _, err := c.Writer.Write([]byte("\n\n")); err != nil {
		return false
	}
	flusher.Flush()
	return true
}
