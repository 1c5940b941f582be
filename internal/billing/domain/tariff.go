package billing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Tier prices every kWh of a consumption at Rate when the total is at most
// UpTo. The last tier has UpTo == 0 and is unbounded.
type Tier struct {
	UpTo float64 `yaml:"up_to"`
	Rate float64 `yaml:"rate"`
}

// DefaultTiers is the residential cliff tariff.
var DefaultTiers = []Tier{
	{UpTo: 100, Rate: 0.40},
	{UpTo: 200, Rate: 0.50},
	{Rate: 0.65},
}

// TieredTariff prices the whole consumption at the single rate of the tier
// the total falls into. It is not progressive.
type TieredTariff struct {
	tiers []Tier
}

// NewTieredTariff validates tiers: ascending bounds, non-negative rates and
// exactly one trailing unbounded tier.
func NewTieredTariff(tiers []Tier) (*TieredTariff, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("%w: no tiers", ErrInvalidTariff)
	}
	var prev float64
	for i, tier := range tiers {
		if tier.Rate < 0 {
			return nil, fmt.Errorf("%w: tier %d has negative rate", ErrInvalidTariff, i)
		}
		last := i == len(tiers)-1
		if last {
			if tier.UpTo != 0 {
				return nil, fmt.Errorf("%w: last tier must be unbounded", ErrInvalidTariff)
			}
			break
		}
		if tier.UpTo <= prev {
			return nil, fmt.Errorf("%w: tier %d bound %v not ascending", ErrInvalidTariff, i, tier.UpTo)
		}
		prev = tier.UpTo
	}
	copied := make([]Tier, len(tiers))
	copy(copied, tiers)
	return &TieredTariff{tiers: copied}, nil
}

// DefaultTariff returns the tariff built from DefaultTiers.
func DefaultTariff() *TieredTariff {
	t, err := NewTieredTariff(DefaultTiers)
	if err != nil {
		panic(err)
	}
	return t
}

// Tiers returns a copy of the tier table.
func (t *TieredTariff) Tiers() []Tier {
	out := make([]Tier, len(t.tiers))
	copy(out, t.tiers)
	return out
}

// Rate returns the per-kWh rate applicable to the total consumption.
func (t *TieredTariff) Rate(kwh float64) float64 {
	for _, tier := range t.tiers {
		if tier.UpTo == 0 || kwh <= tier.UpTo {
			return tier.Rate
		}
	}
	return t.tiers[len(t.tiers)-1].Rate
}

// Price returns kwh multiplied by the applicable rate.
func (t *TieredTariff) Price(kwh float64) float64 {
	rate := decimal.NewFromFloat(t.Rate(kwh))
	return decimal.NewFromFloat(kwh).Mul(rate).InexactFloat64()
}

// Price prices kwh with the default tariff.
func Price(kwh float64) float64 {
	return DefaultTariff().Price(kwh)
}
