package models

// Tier selects the session price class.
type Tier string

const (
	TierFree     Tier = "free" // cooldown-gated, costs nothing
	TierOrdinary Tier = "ordinary"
	TierPremium  Tier = "premium"
)

// UnitCost is the per-throw price in stars.
func (t Tier) UnitCost() int64 {
	switch t {
	case TierPremium:
		return 5
	case TierOrdinary:
		return 1
	default:
		return 0
	}
}

// RewardStars is the catalog price point of the gift awarded on a win.
func (t Tier) RewardStars() int64 {
	if t == TierPremium {
		return 25
	}
	return 15
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierOrdinary, TierPremium:
		return true
	}
	return false
}
