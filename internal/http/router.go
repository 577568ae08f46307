// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"lumo/internal/http/handlers"
	"lumo/internal/http/middleware"
	"lumo/internal/modules/pricing"
	"lumo/internal/modules/quote"
	"lumo/internal/modules/trip"
)

type RouterDeps struct {
	Pricing *pricing.Service
	Quote   *quote.Service
	Trip    *trip.Service
	Log     zerolog.Logger
	// Metrics serves /metrics; nil uses the default Prometheus gatherer.
	Metrics http.Handler
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log), middleware.Logging(deps.Log), middleware.Metrics())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	metrics := deps.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	r.GET("/metrics", gin.WrapH(metrics))

	api := r.Group("/api")

	pricingHandler := handlers.NewPricingHandler(deps.Pricing)
	api.GET("/pricing/calculate", pricingHandler.Calculate)
	api.POST("/pricing/calculate", pricingHandler.CalculateJSON)
	api.GET("/pricing/currency", pricingHandler.Currency)
	api.GET("/pricing/tariffs", pricingHandler.Tariffs)

	if deps.Quote != nil {
		quoteHandler := handlers.NewQuoteHandler(deps.Quote)
		api.POST("/quotes", quoteHandler.Create)
		api.GET("/quotes/:id", quoteHandler.Get)
	}

	if deps.Trip != nil {
		tripHandler := handlers.NewTripHandler(deps.Trip)
		api.POST("/trips", tripHandler.Create)
		api.GET("/trips/:id", tripHandler.Get)
		api.GET("/trips/:id/events", tripHandler.Events)
		api.POST("/trips/:id/accept", tripHandler.Accept)
		api.POST("/trips/:id/start", tripHandler.Start)
		api.POST("/trips/:id/complete", tripHandler.Complete)
		api.POST("/trips/:id/cancel", tripHandler.Cancel)
	}

	return r
}
