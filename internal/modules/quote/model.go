// README: Fare quote issued before a trip is requested.
package quote

import (
	"time"

	"lumo/internal/modules/pricing"
	"lumo/internal/types"
)

type Quote struct {
	ID          types.ID            `json:"id"`
	PassengerID types.ID            `json:"passenger_id"`
	Country     string              `json:"country"`
	VehicleType pricing.VehicleType `json:"vehicle_type,omitempty"`
	DistanceKm  float64             `json:"distance_km"`
	Pickup      *types.Point        `json:"pickup,omitempty"`
	Dropoff     *types.Point        `json:"dropoff,omitempty"`
	Price       pricing.Breakdown   `json:"price"`
	CreatedAt   time.Time           `json:"created_at"`
	ExpiresAt   time.Time           `json:"expires_at"`
}

// Fare returns the quoted total as money.
func (q *Quote) Fare() types.Money {
	return types.Money{Amount: q.Price.TotalPrice, Currency: q.Price.Currency}
}
