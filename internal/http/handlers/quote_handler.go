// README: Quote handlers for create/get.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lumo/internal/modules/pricing"
	"lumo/internal/modules/quote"
	"lumo/internal/types"
)

type QuoteHandler struct {
	quote *quote.Service
}

func NewQuoteHandler(svc *quote.Service) *QuoteHandler {
	return &QuoteHandler{quote: svc}
}

type createQuoteReq struct {
	PassengerID string       `json:"passenger_id" binding:"required"`
	Country     string       `json:"country"`
	VehicleType string       `json:"vehicle_type"`
	DistanceKm  float64      `json:"distance_km"`
	Pickup      *types.Point `json:"pickup"`
	Dropoff     *types.Point `json:"dropoff"`
}

func (h *QuoteHandler) Create(c *gin.Context) {
	var req createQuoteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	q, err := h.quote.Create(c.Request.Context(), quote.CreateCommand{
		PassengerID: types.ID(req.PassengerID),
		Country:     req.Country,
		VehicleType: pricing.ParseVehicleType(req.VehicleType),
		DistanceKm:  req.DistanceKm,
		Pickup:      req.Pickup,
		Dropoff:     req.Dropoff,
	})
	if err != nil {
		writeQuoteError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, q)
}

func (h *QuoteHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid quote id")
		return
	}
	q, err := h.quote.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeQuoteError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, q)
}
