package pricing

import (
	"context"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumo/internal/types"
)

func TestService_Estimate(t *testing.T) {
	s := NewService(zerolog.Nop())

	tests := []struct {
		name     string
		distance float64
		country  string
		vehicle  VehicleType
		want     types.Money
		wantErr  error
	}{
		{name: "Chile 100km", distance: 100, country: "CL", want: types.Money{Amount: 137000, Currency: "CLP"}},
		{name: "Chile sedan 100km", distance: 100, country: "chile", vehicle: VehicleSedan, want: types.Money{Amount: 123800, Currency: "CLP"}},
		{name: "Zero distance", distance: 0, country: "mx", want: types.Money{Amount: 50, Currency: "MXN"}},
		{name: "Negative distance", distance: -1, wantErr: ErrInvalidDistance},
		{name: "NaN distance", distance: math.NaN(), wantErr: ErrInvalidDistance},
		{name: "Infinite distance", distance: math.Inf(1), wantErr: ErrInvalidDistance},
		{name: "Longest accepted trip", distance: MaxDistanceKm, country: "CL", want: types.Money{Amount: 30017000, Currency: "CLP"}},
		{name: "Beyond the longest trip", distance: MaxDistanceKm + 0.001, wantErr: ErrInvalidDistance},
		{name: "Overflowing distance", distance: 1e16, wantErr: ErrInvalidDistance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Estimate(context.Background(), tt.distance, tt.country, tt.vehicle)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_Currency(t *testing.T) {
	s := NewService(zerolog.Nop())
	assert.Equal(t, "PEN", s.Currency("Perú"))
	assert.Equal(t, "CLP", s.Currency(""))
}
