// README: Tiered distance pricing with the optional sedan discount.
package pricing

import "math"

// CalculateTripPrice prices a trip of distance kilometres in the given country.
// It never fails: unknown countries fall back to DefaultCountry.
func CalculateTripPrice(distance float64, country string, vehicle VehicleType) Breakdown {
	tariff := lookup(ResolveCountry(country))

	// NaN prices like zero distance.
	if !(distance > 0) {
		return Breakdown{
			BasePrice:  tariff.BasePrice,
			TotalPrice: roundHalfUp(tariff.BasePrice),
			Currency:   tariff.Currency,
		}
	}

	distancePrice := 0.0
	remaining := distance
	for _, tier := range tariff.Tiers {
		if remaining <= 0 {
			break
		}
		km := tier.kmIn(remaining)
		distancePrice += km * tier.PricePerKm
		remaining -= km
	}

	// Reserved for duration-based pricing.
	timePrice := 0.0

	if vehicle.sedanDiscounted() && tariff.SedanDiscount != nil {
		distancePrice *= 1 - *tariff.SedanDiscount
	}

	return Breakdown{
		BasePrice:     tariff.BasePrice,
		DistancePrice: distancePrice,
		TimePrice:     timePrice,
		TotalPrice:    roundHalfUp(tariff.BasePrice + distancePrice + timePrice),
		Currency:      tariff.Currency,
	}
}

// CountryCurrency returns the currency of the tariff the country resolves to.
func CountryCurrency(country string) string {
	return lookup(ResolveCountry(country)).Currency
}

// roundHalfUp rounds to the nearest whole unit, saturating at the int64 range.
func roundHalfUp(v float64) int64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt64:
		return math.MaxInt64
	case v <= math.MinInt64:
		return math.MinInt64
	}
	return int64(math.Floor(v + 0.5))
}
