// README: Compiled-in per-country tariff table and its invariants.
package pricing

import (
	"errors"
	"fmt"
	"sort"
)

// DefaultCountry is used whenever a country cannot be resolved or is not supported.
const DefaultCountry = "CL"

var (
	ErrEmptyTiers       = errors.New("tariff has no tiers")
	ErrNegativePrice    = errors.New("tariff has a negative price")
	ErrTierOrder        = errors.New("tier bounds must strictly increase")
	ErrOpenTier         = errors.New("only the last tier may be unbounded and it must be")
	ErrDiscountRange    = errors.New("sedan discount must be in [0, 1)")
	ErrMissingDefault   = errors.New("default country has no tariff")
	ErrCurrencyRequired = errors.New("tariff currency is required")
)

func discount(d float64) *float64 { return &d }

// tariffs is read-only after package init.
var tariffs = map[string]Tariff{
	"CL": {
		Currency:      "CLP",
		BasePrice:     5000,
		Tiers:         []Tier{Upto(40, 1500), Beyond(1200)},
		SedanDiscount: discount(0.10),
	},
	"AR": {
		Currency:      "ARS",
		BasePrice:     1500,
		Tiers:         []Tier{Upto(40, 600), Beyond(450)},
		SedanDiscount: discount(0.10),
	},
	"MX": {
		Currency:      "MXN",
		BasePrice:     50,
		Tiers:         []Tier{Upto(40, 12), Beyond(9.5)},
		SedanDiscount: discount(0.15),
	},
	"CO": {
		Currency:  "COP",
		BasePrice: 6000,
		Tiers:     []Tier{Upto(40, 2500), Beyond(2000)},
	},
	"PE": {
		Currency:      "PEN",
		BasePrice:     8,
		Tiers:         []Tier{Upto(40, 2.5), Beyond(1.8)},
		SedanDiscount: discount(0.05),
	},
	"US": {
		Currency:  "USD",
		BasePrice: 5,
		Tiers:     []Tier{Upto(40, 1.5), Beyond(1.2)},
	},
	"ES": {
		Currency:  "EUR",
		BasePrice: 4,
		Tiers:     []Tier{Upto(40, 1.2), Beyond(0.95)},
	},
	"BR": {
		Currency:      "BRL",
		BasePrice:     8,
		Tiers:         []Tier{Upto(40, 2.4), Beyond(1.9)},
		SedanDiscount: discount(0.10),
	},
}

func init() {
	if err := validateTable(tariffs); err != nil {
		panic(fmt.Sprintf("pricing: invalid tariff table: %v", err))
	}
}

// LookupTariff resolves country and returns its tariff, falling back to the
// default country's tariff for codes the table does not know.
func LookupTariff(country string) Tariff {
	return lookup(ResolveCountry(country)).clone()
}

// TariffCountry returns the code of the tariff that prices trips for country.
// Unlike ResolveCountry it never returns a code the table does not know.
func TariffCountry(country string) string {
	return lookupCode(ResolveCountry(country))
}

func lookupCode(code string) string {
	if _, ok := tariffs[code]; ok {
		return code
	}
	return DefaultCountry
}

func lookup(code string) Tariff {
	return tariffs[lookupCode(code)]
}

// Tariffs returns a copy of the full table.
func Tariffs() map[string]Tariff {
	out := make(map[string]Tariff, len(tariffs))
	for code, t := range tariffs {
		out[code] = t.clone()
	}
	return out
}

// SupportedCountries lists the country codes with a tariff, sorted.
func SupportedCountries() []string {
	codes := make([]string, 0, len(tariffs))
	for code := range tariffs {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Validate checks a single tariff against the table invariants.
func (t Tariff) Validate() error {
	if t.Currency == "" {
		return ErrCurrencyRequired
	}
	if t.BasePrice < 0 {
		return ErrNegativePrice
	}
	if len(t.Tiers) == 0 {
		return ErrEmptyTiers
	}
	prev := 0.0
	for i, tier := range t.Tiers {
		if tier.PricePerKm < 0 {
			return ErrNegativePrice
		}
		last := i == len(t.Tiers)-1
		if tier.Unbounded != last {
			return ErrOpenTier
		}
		if last {
			break
		}
		if tier.MaxKm <= prev {
			return ErrTierOrder
		}
		prev = tier.MaxKm
	}
	if t.SedanDiscount != nil && (*t.SedanDiscount < 0 || *t.SedanDiscount >= 1) {
		return ErrDiscountRange
	}
	return nil
}

func validateTable(table map[string]Tariff) error {
	if _, ok := table[DefaultCountry]; !ok {
		return ErrMissingDefault
	}
	for code, t := range table {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("%s: %w", code, err)
		}
	}
	return nil
}
