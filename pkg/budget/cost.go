package budget

import "github.com/mediapulse/patternlab/pkg/models"

// Per-thousand-token pricing by tier, in USD.
const (
	largeRatePer1K  = 0.015
	mediumRatePer1K = 0.003
	smallRatePer1K  = 0.0005
)

// CalculateCost returns the linear cost of the given token count on a tier.
func CalculateCost(tier models.Tier, tokens int) float64 {
	return float64(tokens) / 1000 * ratePerThousand(tier)
}

func ratePerThousand(tier models.Tier) float64 {
	switch tier {
	case models.TierLarge:
		return largeRatePer1K
	case models.TierMedium:
		return mediumRatePer1K
	default:
		return smallRatePer1K
	}
}
