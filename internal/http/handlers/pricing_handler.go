// README: Pricing handlers for fare calculation, currency lookup and the tariff table.
package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"lumo/internal/modules/pricing"
)

type PricingHandler struct {
	pricing *pricing.Service
}

func NewPricingHandler(svc *pricing.Service) *PricingHandler {
	return &PricingHandler{pricing: svc}
}

type calculateReq struct {
	Distance    *float64 `json:"distance" binding:"required"`
	Country     string   `json:"country"`
	VehicleType string   `json:"vehicleType"`
}

// Calculate serves GET with query parameters.
func (h *PricingHandler) Calculate(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("distance"))
	if raw == "" {
		writeError(c, http.StatusBadRequest, "distance is required")
		return
	}
	distance, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		writeError(c, http.StatusBadRequest, pricing.ErrInvalidDistance.Error())
		return
	}
	h.respond(c, distance, c.Query("country"), c.Query("vehicleType"))
}

// CalculateJSON serves POST with a JSON body.
func (h *PricingHandler) CalculateJSON(c *gin.Context) {
	var req calculateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json: distance is required")
		return
	}
	h.respond(c, *req.Distance, req.Country, req.VehicleType)
}

func (h *PricingHandler) respond(c *gin.Context, distance float64, country, vehicleType string) {
	if err := pricing.ValidateDistance(distance); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	b := h.pricing.Calculate(c.Request.Context(), pricing.Request{
		DistanceKm: distance,
		Country:    country,
		Vehicle:    pricing.ParseVehicleType(vehicleType),
	})
	writeJSON(c, http.StatusOK, b)
}

func (h *PricingHandler) Currency(c *gin.Context) {
	country := c.Query("country")
	writeJSON(c, http.StatusOK, gin.H{
		"country":  pricing.TariffCountry(country),
		"currency": h.pricing.Currency(country),
	})
}

func (h *PricingHandler) Tariffs(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{
		"default": pricing.DefaultCountry,
		"tariffs": pricing.Tariffs(),
	})
}
