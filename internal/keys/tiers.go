package keys

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Tier maps a license duration in days to its credit cost.
type Tier struct {
	Days       int             `json:"days"`
	CreditCost decimal.Decimal `json:"credit_cost"`
}

// tierTable is the fixed day-to-cost pricing. Both Generate and the
// advisory pre-flight endpoint read from here; there is no other copy.
var tierTable = map[int]decimal.Decimal{
	5:  decimal.RequireFromString("0.5"),
	10: decimal.RequireFromString("1"),
	20: decimal.RequireFromString("2"),
	30: decimal.RequireFromString("3"),
	60: decimal.RequireFromString("6"),
}

// TierCost returns the credit cost for a license duration.
// Fails with ErrInvalidTier when days is not a priced tier.
func TierCost(days int) (decimal.Decimal, error) {
	cost, ok := tierTable[days]
	if !ok {
		return decimal.Zero, ErrInvalidTier
	}
	return cost, nil
}

// Tiers returns all tiers sorted by duration.
func Tiers() []Tier {
	out := make([]Tier, 0, len(tierTable))
	for days, cost := range tierTable {
		out = append(out, Tier{Days: days, CreditCost: cost})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Days < out[j].Days })
	return out
}
