package httpserver

import (
	"context"
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"tableside/internal/billing"
	"tableside/internal/checkout"
	"tableside/internal/domain"
	"tableside/internal/feed"
)

// CheckoutService is the slice of the checkout service the handlers need.
type CheckoutService interface {
	Start(ctx context.Context, in checkout.StartInput) (*checkout.Reply, error)
	Advance(ctx context.Context, sessionID, text string) (*checkout.Reply, error)
	SubmitForm(ctx context.Context, in checkout.FormInput) (*domain.Order, billing.Breakdown, error)
}

// OrderReader fetches a single order record.
type OrderReader interface {
	GetByNumber(ctx context.Context, orderNumber int64) (*domain.Order, error)
}

// Lifecycle exposes the engine commands driven over HTTP.
type Lifecycle interface {
	Pause(ctx context.Context, orderNumber int64) (*domain.Order, error)
	Resume(ctx context.Context, orderNumber int64) (*domain.Order, error)
	SetPrepTime(ctx context.Context, orderNumber int64, minutes int) (*domain.Order, error)
	Override(ctx context.Context, orderNumber int64, to domain.Status) (*domain.Order, error)
	OutOfSync(orderNumber int64) bool
}

// Deps carries the collaborators the router wires handlers to.
type Deps struct {
	Checkout  CheckoutService
	Orders    OrderReader
	Lifecycle Lifecycle
	Feed      feed.Feed
}

// buildRouter wires routes for the API.
func buildRouter(logger *log.Logger, db *pgxpool.Pool, deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	router.Use(cors.New(corsCfg))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	co := checkoutHandlers{svc: deps.Checkout, logger: logger}
	router.POST("/checkout", co.submitForm)
	router.POST("/checkout/sessions", co.startSession)
	router.POST("/checkout/sessions/:id/messages", co.advanceSession)

	or := orderHandlers{orders: deps.Orders, lifecycle: deps.Lifecycle, logger: logger}
	router.GET("/orders/:number", or.get)
	router.POST("/orders/:number/pause", or.pause)
	router.POST("/orders/:number/resume", or.resume)
	router.PATCH("/orders/:number", or.patch)

	if deps.Feed != nil {
		st := streamHandlers{orders: deps.Orders, lifecycle: deps.Lifecycle, feed: deps.Feed, logger: logger}
		router.GET("/orders/:number/events", st.events)
	}

	return router
}
