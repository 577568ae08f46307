// README: Trip aggregate and status definitions.
package trip

import (
	"time"

	"lumo/internal/modules/pricing"
	"lumo/internal/types"
)

type Status string

const (
	StatusNone       Status = "none"
	StatusRequested  Status = "requested"
	StatusAccepted   Status = "accepted"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

type Trip struct {
	ID               types.ID            `json:"id"`
	PassengerID      types.ID            `json:"passenger_id"`
	DriverID         *types.ID           `json:"driver_id,omitempty"`
	QuoteID          types.ID            `json:"quote_id"`
	Status           Status              `json:"status"`
	StatusVersion    int                 `json:"status_version"`
	Country          string              `json:"country"`
	VehicleType      pricing.VehicleType `json:"vehicle_type,omitempty"`
	DistanceKm       float64             `json:"distance_km"`
	EstimatedFare    types.Money         `json:"estimated_fare"`
	ActualFare       *types.Money        `json:"actual_fare,omitempty"`
	ActualDistanceKm *float64            `json:"actual_distance_km,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	AcceptedAt       *time.Time          `json:"accepted_at,omitempty"`
	StartedAt        *time.Time          `json:"started_at,omitempty"`
	CompletedAt      *time.Time          `json:"completed_at,omitempty"`
	CancelledAt      *time.Time          `json:"cancelled_at,omitempty"`
	CancelReason     *string             `json:"cancel_reason,omitempty"`
}

type Event struct {
	ID         int64
	TripID     types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}

// Transition is a conditional status update: it only applies while the trip is
// still at From with the given StatusVersion.
type Transition struct {
	TripID           types.ID
	From             Status
	To               Status
	Version          int
	DriverID         *types.ID
	ActualFare       *types.Money
	ActualDistanceKm *float64
	CancelReason     *string
}

// AllowedTransitions represents the trip state flow as code.
var AllowedTransitions = map[Status][]Status{
	StatusRequested:  {StatusAccepted, StatusCancelled},
	StatusAccepted:   {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted},
}

func CanTransition(from, to Status) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ActiveStatuses block a passenger from booking another trip. Keep in sync with
// the uq_trips_passenger_active index.
var ActiveStatuses = []Status{StatusRequested, StatusAccepted, StatusInProgress}
