// README: Tariff, tier and price breakdown definitions plus the vehicle type enum.
package pricing

// Tier bills up to MaxKm kilometres at PricePerKm. The final tier of a tariff is
// Unbounded and absorbs whatever distance is left.
type Tier struct {
	MaxKm      float64 `json:"maxKm,omitempty"`
	Unbounded  bool    `json:"unbounded,omitempty"`
	PricePerKm float64 `json:"pricePerKm"`
}

// Upto returns a tier capped at maxKm kilometres.
func Upto(maxKm, pricePerKm float64) Tier {
	return Tier{MaxKm: maxKm, PricePerKm: pricePerKm}
}

// Beyond returns the open-ended last tier.
func Beyond(pricePerKm float64) Tier {
	return Tier{Unbounded: true, PricePerKm: pricePerKm}
}

// kmIn returns how many of the remaining kilometres this tier bills.
func (t Tier) kmIn(remaining float64) float64 {
	if t.Unbounded || remaining < t.MaxKm {
		return remaining
	}
	return t.MaxKm
}

type Tariff struct {
	Currency      string   `json:"currency"`
	BasePrice     float64  `json:"basePrice"`
	Tiers         []Tier   `json:"tiers"`
	SedanDiscount *float64 `json:"sedanDiscount,omitempty"`
}

func (t Tariff) clone() Tariff {
	out := t
	out.Tiers = append([]Tier(nil), t.Tiers...)
	if t.SedanDiscount != nil {
		d := *t.SedanDiscount
		out.SedanDiscount = &d
	}
	return out
}

// Breakdown is the result of pricing a single trip. Only TotalPrice is rounded.
type Breakdown struct {
	BasePrice     float64 `json:"basePrice"`
	DistancePrice float64 `json:"distancePrice"`
	TimePrice     float64 `json:"timePrice"`
	TotalPrice    int64   `json:"totalPrice"`
	Currency      string  `json:"currency"`
}

type VehicleType string

const (
	VehicleUnknown    VehicleType = ""
	VehicleSedan      VehicleType = "SEDAN"
	VehicleSUV        VehicleType = "SUV"
	VehicleVan        VehicleType = "VAN"
	VehiclePickup     VehicleType = "PICKUP"
	VehicleHatchback  VehicleType = "HATCHBACK"
	VehicleMotorcycle VehicleType = "MOTORCYCLE"
)

var vehicleTypes = []VehicleType{
	VehicleSedan,
	VehicleSUV,
	VehicleVan,
	VehiclePickup,
	VehicleHatchback,
	VehicleMotorcycle,
}

// ParseVehicleType matches s against the known vehicle types exactly (case-sensitive).
// Anything else maps to VehicleUnknown.
func ParseVehicleType(s string) VehicleType {
	for _, v := range vehicleTypes {
		if string(v) == s {
			return v
		}
	}
	return VehicleUnknown
}

func (v VehicleType) String() string {
	return string(v)
}

// sedanDiscounted reports whether the tariff's sedan discount applies to this vehicle.
func (v VehicleType) sedanDiscounted() bool {
	return v == VehicleSedan
}
