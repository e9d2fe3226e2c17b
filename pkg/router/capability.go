package router

import "github.com/mediapulse/patternlab/pkg/models"

// Capability names a class of reasoning work a tier may or may not handle.
type Capability string

// Capabilities used by the orchestrator when picking work for a tier.
const (
	CapabilityHypothesize  Capability = "hypothesize_patterns"
	CapabilityCompactState Capability = "compact_state"
	CapabilityToolRouting  Capability = "tool_routing"
	CapabilityEnrichment   Capability = "enrichment"
	CapabilitySummarize    Capability = "summarize"
)

// capabilityMatrix is static: only the two larger tiers can hypothesize
// patterns or compact state; routine work runs anywhere.
var capabilityMatrix = map[Capability]map[models.Tier]bool{
	CapabilityHypothesize:  {models.TierLarge: true, models.TierMedium: true},
	CapabilityCompactState: {models.TierLarge: true, models.TierMedium: true},
	CapabilityToolRouting:  {models.TierLarge: true, models.TierMedium: true, models.TierSmall: true},
	CapabilityEnrichment:   {models.TierLarge: true, models.TierMedium: true, models.TierSmall: true},
	CapabilitySummarize:    {models.TierLarge: true, models.TierMedium: true, models.TierSmall: true},
}

// CanHandle reports whether a tier supports a capability.
func CanHandle(tier models.Tier, capability Capability) bool {
	tiers, ok := capabilityMatrix[capability]
	if !ok {
		return false
	}
	return tiers[tier]
}
