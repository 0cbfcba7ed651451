package quota

import "strings"

const (
	TierFree = "free"

	DefaultFreeAllowance    = 5
	DefaultPremiumAllowance = 50
)

// TierPolicy maps a subscription tier label to a daily allowance.
type TierPolicy struct {
	FreeAllowance    int
	PremiumAllowance int
}

// DefaultTierPolicy returns 5 generations a day for free users and 50 for premium.
func DefaultTierPolicy() TierPolicy {
	return TierPolicy{FreeAllowance: DefaultFreeAllowance, PremiumAllowance: DefaultPremiumAllowance}
}

// NormalizeTier trims and lower-cases a tier label; empty becomes "free".
func NormalizeTier(tier string) string {
	t := strings.ToLower(strings.TrimSpace(tier))
	if t == "" {
		return TierFree
	}
	return t
}

// IsFreeTier reports whether tier is the free tier. Every other label is premium.
func IsFreeTier(tier string) bool {
	return NormalizeTier(tier) == TierFree
}

// Class returns "free" or "premium" for metric labels.
func (p TierPolicy) Class(tier string) string {
	if IsFreeTier(tier) {
		return TierFree
	}
	return "premium"
}

// Allowance returns the daily allowance for tier. It never fails.
func (p TierPolicy) Allowance(tier string) int {
	if IsFreeTier(tier) {
		return p.FreeAllowance
	}
	return p.PremiumAllowance
}
