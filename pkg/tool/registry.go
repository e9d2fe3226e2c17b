// Package tool holds the tool registry and the execution wrapper that gives
// every tool call uniform parameter validation, response caching, timeout,
// retry with backoff, and budget admission. Wrapped handlers never return a
// Go error: every failure mode is surfaced as data in the ToolResponse.
package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mediapulse/patternlab/pkg/models"
)

// CallContext is supplied to every tool handler invocation.
type CallContext struct {
	RequestID string
	Mode      models.AnalysisMode
	Tier      models.Tier
}

// Handler is the underlying tool implementation contract. Implementations
// may report failure either through the response envelope or a Go error;
// the wrapper normalizes both into ToolResponse.Error.
type Handler func(ctx context.Context, params map[string]any, call CallContext) (*models.ToolResponse, error)

// Definition describes a registered tool and its execution characteristics.
type Definition struct {
	Name        string
	Category    models.ToolCategory
	Description string
	Params      []ParamSpec
	Handler     Handler

	// ParallelSafe tools may be fanned out concurrently within a turn.
	ParallelSafe bool

	// Cacheable tools have responses cached by (name, normalized params)
	// for CacheTTL.
	Cacheable bool
	CacheTTL  time.Duration

	// Planning estimates used for admission checks and cost projection.
	EstimatedLatency time.Duration
	EstimatedTokens  int
	EstimatedCost    float64
}

// Registry is a thread-safe catalog of tool definitions.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Definition)}
}

// Register adds a tool definition. Names are unique.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool definition requires a name")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool %q requires a handler", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("tool %q is already registered", def.Name)
	}
	r.tools[def.Name] = def
	return nil
}

// Get returns the definition for a tool name.
func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tools[name]
	return def, ok
}

// List returns definitions, optionally filtered by category (empty matches
// all), sorted by name for deterministic iteration.
func (r *Registry) List(category models.ToolCategory) []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Definition
	for _, def := range r.tools {
		if category == "" || def.Category == category {
			out = append(out, def)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ParallelSafe returns all tools safe to fan out concurrently.
func (r *Registry) ParallelSafe() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Definition
	for _, def := range r.tools {
		if def.ParallelSafe {
			out = append(out, def)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// EstimateCost sums the estimated cost of the named tools. Unknown names
// contribute zero.
func (r *Registry) EstimateCost(names []string) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total float64
	for _, name := range names {
		if def, ok := r.tools[name]; ok {
			total += def.EstimatedCost
		}
	}
	return total
}
