// README: Quote service prices a prospective trip and keeps the quote for a limited time.
package quote

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lumo/internal/modules/pricing"
	"lumo/internal/obs"
	"lumo/internal/types"
)

var (
	ErrNotFound   = errors.New("quote not found")
	ErrBadRequest = errors.New("bad request")
)

type Repository interface {
	Save(ctx context.Context, q *Quote, ttl time.Duration) error
	Get(ctx context.Context, id types.ID) (*Quote, error)
}

type Pricing interface {
	Calculate(ctx context.Context, req pricing.Request) pricing.Breakdown
}

type Service struct {
	store   Repository
	pricing Pricing
	ttl     time.Duration
	now     func() time.Time
	log     zerolog.Logger
}

func NewService(store Repository, pricing Pricing, ttl time.Duration, log zerolog.Logger) *Service {
	return &Service{
		store:   store,
		pricing: pricing,
		ttl:     ttl,
		now:     time.Now,
		log:     log.With().Str("module", "quote").Logger(),
	}
}

type CreateCommand struct {
	PassengerID types.ID
	Country     string
	VehicleType pricing.VehicleType
	DistanceKm  float64
	Pickup      *types.Point
	Dropoff     *types.Point
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Quote, error) {
	if cmd.PassengerID == "" {
		return nil, ErrBadRequest
	}
	distance, err := resolveDistance(cmd)
	if err != nil {
		return nil, err
	}

	country := pricing.TariffCountry(cmd.Country)
	price := s.pricing.Calculate(ctx, pricing.Request{
		DistanceKm: distance,
		Country:    country,
		Vehicle:    cmd.VehicleType,
	})

	now := s.now().UTC()
	q := &Quote{
		ID:          types.ID(uuid.NewString()),
		PassengerID: cmd.PassengerID,
		Country:     country,
		VehicleType: cmd.VehicleType,
		DistanceKm:  distance,
		Pickup:      cmd.Pickup,
		Dropoff:     cmd.Dropoff,
		Price:       price,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}
	if err := s.store.Save(ctx, q, s.ttl); err != nil {
		return nil, err
	}

	obs.QuotesTotal.WithLabelValues(country, string(cmd.VehicleType)).Inc()
	s.log.Info().
		Str("quote_id", string(q.ID)).
		Str("country", country).
		Float64("distance_km", distance).
		Int64("total", price.TotalPrice).
		Msg("quote issued")
	return q, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Quote, error) {
	if id == "" {
		return nil, ErrBadRequest
	}
	return s.store.Get(ctx, id)
}

// resolveDistance prefers an explicit distance and otherwise measures pickup to dropoff.
func resolveDistance(cmd CreateCommand) (float64, error) {
	if cmd.DistanceKm != 0 {
		if pricing.ValidateDistance(cmd.DistanceKm) != nil {
			return 0, ErrBadRequest
		}
		return cmd.DistanceKm, nil
	}
	if cmd.Pickup == nil || cmd.Dropoff == nil {
		return 0, ErrBadRequest
	}
	if !cmd.Pickup.Valid() || !cmd.Dropoff.Valid() {
		return 0, ErrBadRequest
	}
	return haversineKm(*cmd.Pickup, *cmd.Dropoff), nil
}
