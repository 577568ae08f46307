// README: Trip handlers for booking and driver/passenger state transitions.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lumo/internal/modules/trip"
	"lumo/internal/types"
)

type TripHandler struct {
	trip *trip.Service
}

func NewTripHandler(svc *trip.Service) *TripHandler {
	return &TripHandler{trip: svc}
}

type createTripReq struct {
	PassengerID string `json:"passenger_id" binding:"required"`
	QuoteID     string `json:"quote_id" binding:"required"`
}

type driverReq struct {
	DriverID string `json:"driver_id" binding:"required"`
}

type completeTripReq struct {
	DriverID   string   `json:"driver_id" binding:"required"`
	DistanceKm *float64 `json:"distance_km"`
}

type cancelTripReq struct {
	ActorType string `json:"actor_type" binding:"required,oneof=passenger driver system"`
	ActorID   string `json:"actor_id"`
	Reason    string `json:"reason"`
}

func (h *TripHandler) Create(c *gin.Context) {
	var req createTripReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	t, err := h.trip.Create(c.Request.Context(), trip.CreateCommand{
		PassengerID: types.ID(req.PassengerID),
		QuoteID:     types.ID(req.QuoteID),
	})
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, t)
}

func (h *TripHandler) Get(c *gin.Context) {
	id, ok := tripID(c)
	if !ok {
		return
	}
	t, err := h.trip.Get(c.Request.Context(), id)
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, t)
}

func (h *TripHandler) Events(c *gin.Context) {
	id, ok := tripID(c)
	if !ok {
		return
	}
	events, err := h.trip.Events(c.Request.Context(), id)
	if err != nil {
		writeTripError(c, err)
		return
	}
	out := make([]gin.H, 0, len(events))
	for _, e := range events {
		out = append(out, gin.H{
			"from":       e.FromStatus,
			"to":         e.ToStatus,
			"actor_type": e.ActorType,
			"actor_id":   e.ActorID,
			"created_at": e.CreatedAt,
		})
	}
	writeJSON(c, http.StatusOK, gin.H{"events": out})
}

func (h *TripHandler) Accept(c *gin.Context) {
	id, ok := tripID(c)
	if !ok {
		return
	}
	var req driverReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "missing driver_id")
		return
	}
	t, err := h.trip.Accept(c.Request.Context(), trip.AcceptCommand{TripID: id, DriverID: types.ID(req.DriverID)})
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, t)
}

func (h *TripHandler) Start(c *gin.Context) {
	id, ok := tripID(c)
	if !ok {
		return
	}
	var req driverReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "missing driver_id")
		return
	}
	t, err := h.trip.Start(c.Request.Context(), trip.StartCommand{TripID: id, DriverID: types.ID(req.DriverID)})
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, t)
}

func (h *TripHandler) Complete(c *gin.Context) {
	id, ok := tripID(c)
	if !ok {
		return
	}
	var req completeTripReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "missing driver_id")
		return
	}
	t, err := h.trip.Complete(c.Request.Context(), trip.CompleteCommand{
		TripID:     id,
		DriverID:   types.ID(req.DriverID),
		DistanceKm: req.DistanceKm,
	})
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, t)
}

func (h *TripHandler) Cancel(c *gin.Context) {
	id, ok := tripID(c)
	if !ok {
		return
	}
	var req cancelTripReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	t, err := h.trip.Cancel(c.Request.Context(), trip.CancelCommand{
		TripID:    id,
		ActorType: req.ActorType,
		ActorID:   types.ID(req.ActorID),
		Reason:    req.Reason,
	})
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, t)
}

func tripID(c *gin.Context) (types.ID, bool) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid trip id")
		return "", false
	}
	return types.ID(id), true
}
