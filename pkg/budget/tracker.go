// Package budget provides per-session resource accounting: hard caps,
// monotonic usage counters, admission control, and cost attribution.
// Exhaustion is communicated through boolean returns so callers can degrade
// gracefully; the tracker never raises an error for normal budget pressure.
package budget

import (
	"strings"
	"sync"
	"time"

	"github.com/mediapulse/patternlab/pkg/models"
)

// criticalThreshold is the fraction of a cap at which a dimension is
// reported as critical in the budget summary.
const criticalThreshold = 0.90

// Tracker accounts one session's resource consumption against its caps.
// All methods are safe for concurrent use, though the orchestrator only
// mutates it from its own control-flow goroutine.
type Tracker struct {
	mu      sync.Mutex
	caps    models.BudgetCaps
	usage   models.BudgetUsage
	started time.Time
}

// NewTracker creates a tracker with the given caps and zeroed usage.
func NewTracker(caps models.BudgetCaps) *Tracker {
	t := &Tracker{}
	t.Initialize(caps)
	return t
}

// Initialize installs caps and resets usage. Idempotent per session: calling
// it again with the same caps re-arms the same zero state.
func (t *Tracker) Initialize(caps models.BudgetCaps) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.caps = caps
	t.usage = models.BudgetUsage{}
	t.started = time.Now()
}

// CanExecute reports whether a call to the named tool is admissible.
// A call is rejected when any relevant dimension is already at its cap or
// the estimated tokens would reach the token cap. Caps are strict upper
// bounds: an admitted call never pushes a counter past its cap.
func (t *Tracker) CanExecute(toolName string, estimatedTokens int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.usage.ToolCalls >= t.caps.MaxToolCalls {
		return false
	}
	if estimatedTokens > 0 && t.usage.Tokens+estimatedTokens >= t.caps.MaxTokens {
		return false
	}
	if isValidationTool(toolName) && t.usage.Validations >= t.caps.MaxValidations {
		return false
	}
	if isSearchTool(toolName) && t.usage.Fanouts >= t.caps.MaxFanouts {
		return false
	}
	return true
}

// RecordToolCall records a completed (non-skipped) tool dispatch: increments
// the call and token counters and attributes cost to the tier bucket implied
// by the tool's naming convention.
func (t *Tracker) RecordToolCall(toolName string, tokensUsed int, cost float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.usage.ToolCalls++
	t.usage.Tokens += tokensUsed
	switch TierForTool(toolName) {
	case models.TierLarge:
		t.usage.Costs.Large += cost
	case models.TierMedium:
		t.usage.Costs.Medium += cost
	default:
		t.usage.Costs.Small += cost
	}
	t.usage.Costs.Total += cost
}

// RecordModelUsage records tokens and cost consumed by a reasoning-model
// call. Model calls count against the token budget and the tier's cost
// bucket but are not tool dispatches, so the tool-call counter is untouched.
func (t *Tracker) RecordModelUsage(tier models.Tier, tokensUsed int, cost float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.usage.Tokens += tokensUsed
	switch tier {
	case models.TierLarge:
		t.usage.Costs.Large += cost
	case models.TierMedium:
		t.usage.Costs.Medium += cost
	default:
		t.usage.Costs.Small += cost
	}
	t.usage.Costs.Total += cost
}

// RecordValidation attempts to record one validation batch over
// candidateCount candidates. Rejects without mutation when the validation
// dimension is at cap or the batch would exceed the candidate cap.
func (t *Tracker) RecordValidation(candidateCount int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.usage.Validations >= t.caps.MaxValidations {
		return false
	}
	if t.usage.Candidates+candidateCount > t.caps.MaxCandidates {
		return false
	}
	t.usage.Validations++
	t.usage.Candidates += candidateCount
	return true
}

// RecordFanout attempts to record one parallel search round.
func (t *Tracker) RecordFanout() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.usage.Fanouts >= t.caps.MaxFanouts {
		return false
	}
	t.usage.Fanouts++
	return true
}

// Usage returns a snapshot of current consumption, with elapsed wall time
// refreshed at call time.
func (t *Tracker) Usage() models.BudgetUsage {
	t.mu.Lock()
	defer t.mu.Unlock()
	u := t.usage
	u.Elapsed = time.Since(t.started)
	return u
}

// Caps returns the installed caps.
func (t *Tracker) Caps() models.BudgetCaps {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.caps
}

// IsExceeded reports whether any dimension has reached or passed its cap.
func (t *Tracker) IsExceeded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.usage.Fanouts >= t.caps.MaxFanouts ||
		t.usage.Validations >= t.caps.MaxValidations ||
		t.usage.Candidates >= t.caps.MaxCandidates ||
		t.usage.Tokens >= t.caps.MaxTokens ||
		t.usage.ToolCalls >= t.caps.MaxToolCalls ||
		time.Since(t.started) >= t.caps.MaxDuration
}

// Remaining returns the per-dimension headroom, floored at zero.
func (t *Tracker) Remaining() models.RemainingBudget {
	t.mu.Lock()
	defer t.mu.Unlock()

	return models.RemainingBudget{
		Fanouts:     maxInt(0, t.caps.MaxFanouts-t.usage.Fanouts),
		Validations: maxInt(0, t.caps.MaxValidations-t.usage.Validations),
		Candidates:  maxInt(0, t.caps.MaxCandidates-t.usage.Candidates),
		Tokens:      maxInt(0, t.caps.MaxTokens-t.usage.Tokens),
		Duration:    maxDur(0, t.caps.MaxDuration-time.Since(t.started)),
		ToolCalls:   maxInt(0, t.caps.MaxToolCalls-t.usage.ToolCalls),
	}
}

// Summary reports percent-used per dimension, the dimensions at or above
// the critical threshold, and a projection of remaining spend at the
// blended per-token rate observed so far.
func (t *Tracker) Summary() models.BudgetSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.started)
	pct := map[string]float64{
		"fanouts":     percent(t.usage.Fanouts, t.caps.MaxFanouts),
		"validations": percent(t.usage.Validations, t.caps.MaxValidations),
		"candidates":  percent(t.usage.Candidates, t.caps.MaxCandidates),
		"tokens":      percent(t.usage.Tokens, t.caps.MaxTokens),
		"duration":    percent(int(elapsed), int(t.caps.MaxDuration)),
		"tool_calls":  percent(t.usage.ToolCalls, t.caps.MaxToolCalls),
	}

	var critical []string
	for _, dim := range []string{"fanouts", "validations", "candidates", "tokens", "duration", "tool_calls"} {
		if pct[dim] >= criticalThreshold*100 {
			critical = append(critical, dim)
		}
	}

	remainingTokens := maxInt(0, t.caps.MaxTokens-t.usage.Tokens)
	ratePer1K := ratePerThousand(models.TierSmall)
	if t.usage.Tokens > 0 && t.usage.Costs.Total > 0 {
		ratePer1K = t.usage.Costs.Total / float64(t.usage.Tokens) * 1000
	}

	return models.BudgetSummary{
		PercentUsed:             pct,
		CriticalDimensions:      critical,
		EstimatedRemainingSpend: float64(remainingTokens) / 1000 * ratePer1K,
	}
}

// TierForTool maps a tool name to the model tier its cost is attributed to.
// Comprehensive analysis tools run on the large tier, validation tools on
// the medium tier, everything else on the small tier.
func TierForTool(toolName string) models.Tier {
	name := strings.ToLower(toolName)
	switch {
	case strings.Contains(name, "comprehensive"):
		return models.TierLarge
	case isValidationTool(name):
		return models.TierMedium
	default:
		return models.TierSmall
	}
}

func isValidationTool(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "validat")
}

func isSearchTool(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "search") || strings.Contains(n, "fanout")
}

func percent(used, cap int) float64 {
	if cap <= 0 {
		return 0
	}
	return float64(used) / float64(cap) * 100
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func maxDur(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
