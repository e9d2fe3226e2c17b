// Package orchestrator runs the analysis turn loop: it sequences turns,
// asks the router for a model tier, dispatches tools through the execution
// wrapper (serially or fanned out), merges results into session state, and
// consults the budget tracker to decide continuation, degradation, or
// fallback. Each session is one logical control flow; budget mutation and
// state commits happen only on that flow, never inside tool goroutines.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mediapulse/patternlab/pkg/budget"
	"github.com/mediapulse/patternlab/pkg/llm"
	"github.com/mediapulse/patternlab/pkg/models"
	"github.com/mediapulse/patternlab/pkg/router"
	"github.com/mediapulse/patternlab/pkg/session"
	"github.com/mediapulse/patternlab/pkg/tool"
)

// ClassicAnalyzer is the non-agentic fallback path. It works from whatever
// state the agentic flow already committed.
type ClassicAnalyzer interface {
	Analyze(ctx context.Context, state models.SessionState) (*models.FinalReport, error)
}

// Persister stores the final result. Invoked once, at finalization.
type Persister interface {
	SaveResult(ctx context.Context, sessionID string, result *models.OrchestratorResult) error
}

// Emitter receives turn lifecycle notifications for relay to callers.
// Implementations must be safe for concurrent use across sessions.
type Emitter interface {
	SessionStatus(sessionID string, status models.SessionStatus)
	TurnStarted(sessionID string, turn models.TurnType, decision models.RoutingDecision)
	TurnCompleted(sessionID string, turn models.TurnType, usage models.BudgetUsage)
	SessionResult(result *models.OrchestratorResult)
}

// Deps are the orchestrator's collaborators. Registry, Sessions, and LLM are
// required; the rest are optional and nil-safe.
type Deps struct {
	Registry  *tool.Registry
	Sessions  *session.Manager
	LLM       llm.Client
	Classic   ClassicAnalyzer
	Persister Persister
	Emitter   Emitter
	// Cache is shared across sessions; nil disables response caching.
	Cache  *tool.Cache
	Logger *slog.Logger
}

// Orchestrator drives analysis sessions. Safe for concurrent Run calls;
// sessions share only the registry and the response cache.
type Orchestrator struct {
	registry  *tool.Registry
	sessions  *session.Manager
	llm       llm.Client
	classic   ClassicAnalyzer
	persister Persister
	emitter   Emitter
	cache     *tool.Cache
	logger    *slog.Logger
}

// New creates an orchestrator from its dependencies.
func New(deps Deps) (*Orchestrator, error) {
	if deps.Registry == nil || deps.Sessions == nil || deps.LLM == nil {
		return nil, errors.New("orchestrator: registry, sessions, and llm client are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		registry:  deps.Registry,
		sessions:  deps.Sessions,
		llm:       deps.LLM,
		classic:   deps.Classic,
		persister: deps.Persister,
		emitter:   deps.Emitter,
		cache:     deps.Cache,
		logger:    logger,
	}, nil
}

// run carries the per-session collaborators through the turn loop.
type run struct {
	sess    *session.Session
	tracker *budget.Tracker
	router  *router.Router
	cfg     models.OrchestratorConfig
	started time.Time
	logger  *slog.Logger
}

// Run executes one full analysis session and always returns a well-formed
// result, even under total failure.
func (o *Orchestrator) Run(ctx context.Context, videoID string, cfg models.OrchestratorConfig) *models.OrchestratorResult {
	sess, err := o.sessions.Create(videoID, cfg)
	if err != nil {
		return &models.OrchestratorResult{
			Success: false,
			Mode:    cfg.Mode,
			Error:   fmt.Sprintf("session creation failed: %v", err),
		}
	}

	r := &run{
		sess:    sess,
		tracker: budget.NewTracker(cfg.Caps),
		router:  router.New(cfg.Caps),
		cfg:     cfg,
		started: time.Now(),
		logger:  o.logger.With("session_id", sess.ID, "video_id", videoID),
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Caps.MaxDuration)
	defer cancel()
	sess.SetCancelFunc(cancel)

	sess.SetStatus(models.SessionRunning)
	o.emitStatus(sess.ID, models.SessionRunning)

	if cfg.Mode == models.ModeClassic {
		return o.runClassic(ctx, r, "classic mode requested")
	}
	return o.runAgentic(ctx, r)
}

// runAgentic drives the turn state machine to finalization.
func (o *Orchestrator) runAgentic(ctx context.Context, r *run) *models.OrchestratorResult {
	turn := models.TurnContextGathering
	for {
		if turn != models.TurnFinalization {
			if reason := o.earlyExitReason(ctx, r); reason != "" {
				r.logger.Info("finalizing early", "from_turn", turn, "reason", reason)
				turn = models.TurnFinalization
			}
		}

		snap := r.sess.Snapshot()
		decision := r.router.Route(turn, &snap.State, r.tracker.Usage())
		r.logger.Info("turn starting",
			"turn", turn, "tier", decision.Tier, "reason", decision.Reason,
			"estimated_tokens", decision.EstimatedTokens)
		o.emitTurnStarted(r.sess.ID, turn, decision)

		update, err := o.executeTurn(ctx, r, turn, decision, &snap.State)
		if err != nil {
			r.logger.Warn("turn produced no usable result", "turn", turn, "error", err)
			o.recordTurnError(r, turn, err)
			if r.cfg.FallbackToClassic && o.classic != nil {
				return o.runClassic(ctx, r, fmt.Sprintf("turn %s failed: %v", turn, err))
			}
			if turn == models.TurnFinalization {
				return o.buildResult(ctx, r, models.ModeAgentic, false,
					fmt.Sprintf("finalization failed: %v", err))
			}
			// Degrade: finalize with whatever state is committed.
			turn = models.TurnFinalization
			continue
		}

		if err := o.sessions.Update(r.sess.ID, update); err != nil {
			return o.buildResult(ctx, r, models.ModeAgentic, false,
				fmt.Sprintf("state commit failed: %v", err))
		}
		o.emitTurnCompleted(r.sess.ID, turn, r.tracker.Usage())

		if turn == models.TurnFinalization {
			return o.buildResult(ctx, r, models.ModeAgentic, false, "")
		}
		turn = nextTurn(turn)
	}
}

// runClassic abandons the agentic flow and defers to the classic analyzer,
// preserving any state already committed.
func (o *Orchestrator) runClassic(ctx context.Context, r *run, reason string) *models.OrchestratorResult {
	r.logger.Info("running classic analysis path", "reason", reason)

	state := o.recoveredState(r)
	if o.classic == nil {
		return o.buildResult(ctx, r, models.ModeClassic, true,
			"classic path unavailable: "+reason)
	}

	report, err := o.classic.Analyze(ctx, state)
	if err != nil {
		return o.buildResult(ctx, r, models.ModeClassic, true,
			fmt.Sprintf("classic analysis failed: %v", err))
	}
	report.FallbackUsed = true

	update := models.StateUpdate{FinalReport: report}
	if err := o.sessions.Update(r.sess.ID, update); err != nil {
		r.logger.Warn("classic report commit failed", "error", err)
	}
	return o.buildResult(ctx, r, models.ModeClassic, true, "")
}

// earlyExitReason reports why the loop should jump to finalization, or ""
// to continue.
func (o *Orchestrator) earlyExitReason(ctx context.Context, r *run) string {
	if ctx.Err() != nil {
		return "session deadline reached"
	}
	if r.tracker.IsExceeded() {
		return "budget exhausted"
	}
	return ""
}

// recoveredState returns the last committed state, falling back to the live
// snapshot when recovery is unavailable.
func (o *Orchestrator) recoveredState(r *run) models.SessionState {
	state, err := o.sessions.Recover(r.sess.ID)
	if err != nil {
		return r.sess.Snapshot().State
	}
	return state
}

// recordTurnError appends a structured entry to the session error log.
// Commit failures here are logged and swallowed: the error log is
// best-effort once the session is already failing.
func (o *Orchestrator) recordTurnError(r *run, turn models.TurnType, err error) {
	code := models.ErrCodeExecutionError
	var parseErr *llm.ParseError
	if errors.As(err, &parseErr) {
		code = models.ErrCodeParseFailure
	}
	update := models.StateUpdate{Errors: []models.SessionError{{
		Turn:       turn,
		Code:       code,
		Message:    err.Error(),
		OccurredAt: time.Now(),
	}}}
	if uerr := o.sessions.Update(r.sess.ID, update); uerr != nil {
		r.logger.Warn("error log commit failed", "error", uerr)
	}
}

// nextTurn returns the successor in the state machine.
func nextTurn(turn models.TurnType) models.TurnType {
	switch turn {
	case models.TurnContextGathering:
		return models.TurnHypothesisGeneration
	case models.TurnHypothesisGeneration:
		return models.TurnSearchPlanning
	case models.TurnSearchPlanning:
		return models.TurnEnrichment
	case models.TurnEnrichment:
		return models.TurnValidation
	case models.TurnValidation:
		return models.TurnFinalization
	default:
		return models.TurnFinalization
	}
}

func (o *Orchestrator) emitStatus(sessionID string, status models.SessionStatus) {
	if o.emitter != nil {
		o.emitter.SessionStatus(sessionID, status)
	}
}

func (o *Orchestrator) emitTurnStarted(sessionID string, turn models.TurnType, decision models.RoutingDecision) {
	if o.emitter != nil {
		o.emitter.TurnStarted(sessionID, turn, decision)
	}
}

func (o *Orchestrator) emitTurnCompleted(sessionID string, turn models.TurnType, usage models.BudgetUsage) {
	if o.emitter != nil {
		o.emitter.TurnCompleted(sessionID, turn, usage)
	}
}
