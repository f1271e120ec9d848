package keys

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestTierCost_KnownTiers(t *testing.T) {
	cases := map[int]string{
		5:  "0.5",
		10: "1",
		20: "2",
		30: "3",
		60: "6",
	}
	for days, want := range cases {
		cost, err := TierCost(days)
		if err != nil {
			t.Fatalf("TierCost(%d): %v", days, err)
		}
		if !cost.Equal(decimal.RequireFromString(want)) {
			t.Fatalf("TierCost(%d): expected %s, got %s", days, want, cost)
		}
	}
}

func TestTierCost_UnknownTier(t *testing.T) {
	for _, days := range []int{0, 1, 7, 15, 90, -5} {
		if _, err := TierCost(days); !errors.Is(err, ErrInvalidTier) {
			t.Fatalf("TierCost(%d): expected ErrInvalidTier, got %v", days, err)
		}
	}
}

func TestTiers_SortedByDays(t *testing.T) {
	tiers := Tiers()
	if len(tiers) != 5 {
		t.Fatalf("expected 5 tiers, got %d", len(tiers))
	}
	for i := 1; i < len(tiers); i++ {
		if tiers[i-1].Days >= tiers[i].Days {
			t.Fatalf("tiers not sorted: %d before %d", tiers[i-1].Days, tiers[i].Days)
		}
	}
}
