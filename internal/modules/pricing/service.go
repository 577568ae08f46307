// README: Pricing service exposes the tariff engine to handlers and other modules.
package pricing

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"lumo/internal/types"
)

// MaxDistanceKm is the longest trip accepted for pricing.
const MaxDistanceKm = 25000

var ErrInvalidDistance = fmt.Errorf("distance must be a number between 0 and %d km", MaxDistanceKm)

// ValidateDistance is the check callers run before handing a distance to the engine.
func ValidateDistance(km float64) error {
	if math.IsNaN(km) || km < 0 || km > MaxDistanceKm {
		return ErrInvalidDistance
	}
	return nil
}

type Request struct {
	DistanceKm float64
	Country    string
	Vehicle    VehicleType
}

type Service struct {
	log zerolog.Logger
}

func NewService(log zerolog.Logger) *Service {
	return &Service{log: log.With().Str("module", "pricing").Logger()}
}

func (s *Service) Calculate(ctx context.Context, req Request) Breakdown {
	b := CalculateTripPrice(req.DistanceKm, req.Country, req.Vehicle)
	s.log.Debug().
		Float64("distance_km", req.DistanceKm).
		Str("country", TariffCountry(req.Country)).
		Str("vehicle", req.Vehicle.String()).
		Int64("total", b.TotalPrice).
		Str("currency", b.Currency).
		Msg("trip priced")
	return b
}

// Estimate prices a trip and returns only the rounded total.
func (s *Service) Estimate(ctx context.Context, distanceKm float64, country string, vehicle VehicleType) (types.Money, error) {
	if err := ValidateDistance(distanceKm); err != nil {
		return types.Money{}, err
	}
	b := s.Calculate(ctx, Request{DistanceKm: distanceKm, Country: country, Vehicle: vehicle})
	return types.Money{Amount: b.TotalPrice, Currency: b.Currency}, nil
}

func (s *Service) Currency(country string) string {
	return CountryCurrency(country)
}
