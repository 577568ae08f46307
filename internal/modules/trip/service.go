// README: Trip service implements booking, state transitions and fare settlement.
package trip

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lumo/internal/modules/pricing"
	"lumo/internal/modules/quote"
	"lumo/internal/obs"
	"lumo/internal/types"
)

var (
	ErrInvalidState     = errors.New("invalid state transition")
	ErrNotFound         = errors.New("trip not found")
	ErrConflict         = errors.New("trip state conflict")
	ErrActiveTrip       = errors.New("passenger has active trip")
	ErrBadRequest       = errors.New("bad request")
	ErrForbidden        = errors.New("forbidden")
	ErrQuoteUnavailable = errors.New("quote not found or expired")
)

type Repository interface {
	// Create returns ErrActiveTrip when the passenger already holds an active trip.
	Create(ctx context.Context, t *Trip) error
	Get(ctx context.Context, id types.ID) (*Trip, error)
	UpdateStatus(ctx context.Context, tr Transition) (bool, error)
	AppendEvent(ctx context.Context, e *Event) error
	HasActiveByPassenger(ctx context.Context, passengerID types.ID) (bool, error)
	ListEvents(ctx context.Context, tripID types.ID) ([]Event, error)
}

type Quotes interface {
	Get(ctx context.Context, id types.ID) (*quote.Quote, error)
}

type Pricing interface {
	Estimate(ctx context.Context, distanceKm float64, country string, vehicle pricing.VehicleType) (types.Money, error)
}

type Service struct {
	store   Repository
	quotes  Quotes
	pricing Pricing
	now     func() time.Time
	log     zerolog.Logger
}

func NewService(store Repository, quotes Quotes, pricing Pricing, log zerolog.Logger) *Service {
	return &Service{
		store:   store,
		quotes:  quotes,
		pricing: pricing,
		now:     time.Now,
		log:     log.With().Str("module", "trip").Logger(),
	}
}

type CreateCommand struct {
	PassengerID types.ID
	QuoteID     types.ID
}

type AcceptCommand struct {
	TripID   types.ID
	DriverID types.ID
}

type StartCommand struct {
	TripID   types.ID
	DriverID types.ID
}

type CompleteCommand struct {
	TripID   types.ID
	DriverID types.ID
	// DistanceKm is the measured trip distance; nil settles at the quoted fare.
	DistanceKm *float64
}

type CancelCommand struct {
	TripID    types.ID
	ActorType string
	ActorID   types.ID
	Reason    string
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Trip, error) {
	if cmd.PassengerID == "" || cmd.QuoteID == "" {
		return nil, ErrBadRequest
	}
	q, err := s.quotes.Get(ctx, cmd.QuoteID)
	if errors.Is(err, quote.ErrNotFound) {
		return nil, ErrQuoteUnavailable
	}
	if err != nil {
		return nil, err
	}
	if q.PassengerID != cmd.PassengerID {
		return nil, ErrForbidden
	}

	active, err := s.store.HasActiveByPassenger(ctx, cmd.PassengerID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, ErrActiveTrip
	}

	now := s.now().UTC()
	t := &Trip{
		ID:            types.ID(uuid.NewString()),
		PassengerID:   cmd.PassengerID,
		QuoteID:       q.ID,
		Status:        StatusRequested,
		StatusVersion: 0,
		Country:       q.Country,
		VehicleType:   q.VehicleType,
		DistanceKm:    q.DistanceKm,
		EstimatedFare: q.Fare(),
		CreatedAt:     now,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, err
	}
	s.recordEvent(ctx, t.ID, StatusNone, StatusRequested, "passenger", &cmd.PassengerID)
	return t, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Trip, error) {
	if id == "" {
		return nil, ErrBadRequest
	}
	return s.store.Get(ctx, id)
}

func (s *Service) Events(ctx context.Context, id types.ID) ([]Event, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListEvents(ctx, id)
}

func (s *Service) Accept(ctx context.Context, cmd AcceptCommand) (*Trip, error) {
	if cmd.DriverID == "" {
		return nil, ErrBadRequest
	}
	t, err := s.store.Get(ctx, cmd.TripID)
	if err != nil {
		return nil, err
	}
	if t.PassengerID == cmd.DriverID {
		return nil, ErrForbidden
	}
	return s.transition(ctx, t, Transition{To: StatusAccepted, DriverID: &cmd.DriverID}, "driver", &cmd.DriverID)
}

func (s *Service) Start(ctx context.Context, cmd StartCommand) (*Trip, error) {
	t, err := s.assignedTrip(ctx, cmd.TripID, cmd.DriverID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, t, Transition{To: StatusInProgress}, "driver", t.DriverID)
}

func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) (*Trip, error) {
	t, err := s.assignedTrip(ctx, cmd.TripID, cmd.DriverID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(t.Status, StatusCompleted) {
		return nil, ErrInvalidState
	}

	fare := t.EstimatedFare
	if cmd.DistanceKm != nil {
		fare, err = s.pricing.Estimate(ctx, *cmd.DistanceKm, t.Country, t.VehicleType)
		if err != nil {
			return nil, ErrBadRequest
		}
	}
	return s.transition(ctx, t, Transition{
		To:               StatusCompleted,
		ActualFare:       &fare,
		ActualDistanceKm: cmd.DistanceKm,
	}, "driver", t.DriverID)
}

func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*Trip, error) {
	t, err := s.store.Get(ctx, cmd.TripID)
	if err != nil {
		return nil, err
	}
	switch cmd.ActorType {
	case "passenger":
		if cmd.ActorID != t.PassengerID {
			return nil, ErrForbidden
		}
	case "driver":
		if t.DriverID == nil || *t.DriverID != cmd.ActorID {
			return nil, ErrForbidden
		}
	case "system":
	default:
		return nil, ErrBadRequest
	}

	var actorID *types.ID
	if cmd.ActorID != "" {
		actorID = &cmd.ActorID
	}
	reason := cmd.Reason
	return s.transition(ctx, t, Transition{To: StatusCancelled, CancelReason: &reason}, cmd.ActorType, actorID)
}

// assignedTrip loads a trip and checks driverID is the driver it was accepted by.
func (s *Service) assignedTrip(ctx context.Context, tripID, driverID types.ID) (*Trip, error) {
	if driverID == "" {
		return nil, ErrBadRequest
	}
	t, err := s.store.Get(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if t.DriverID == nil || *t.DriverID != driverID {
		return nil, ErrForbidden
	}
	return t, nil
}

func (s *Service) transition(ctx context.Context, t *Trip, tr Transition, actorType string, actorID *types.ID) (*Trip, error) {
	if !CanTransition(t.Status, tr.To) {
		return nil, ErrInvalidState
	}
	tr.TripID = t.ID
	tr.From = t.Status
	tr.Version = t.StatusVersion

	ok, err := s.store.UpdateStatus(ctx, tr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	s.recordEvent(ctx, t.ID, tr.From, tr.To, actorType, actorID)
	return s.store.Get(ctx, t.ID)
}

func (s *Service) recordEvent(ctx context.Context, id types.ID, from, to Status, actorType string, actorID *types.ID) {
	obs.TripTransitionsTotal.WithLabelValues(string(to)).Inc()
	err := s.store.AppendEvent(ctx, &Event{
		TripID:     id,
		FromStatus: from,
		ToStatus:   to,
		ActorType:  actorType,
		ActorID:    actorID,
		CreatedAt:  s.now().UTC(),
	})
	if err != nil {
		s.log.Warn().Err(err).Str("trip_id", string(id)).Str("to", string(to)).Msg("append trip event")
	}
}
