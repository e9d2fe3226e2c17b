package tool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mediapulse/patternlab/pkg/models"
)

// retryBaseDelay is the initial backoff between retry attempts; each retry
// doubles it up to retryMaxDelay.
const (
	retryBaseDelay = 200 * time.Millisecond
	retryMaxDelay  = 5 * time.Second
)

// Admitter is the budget-admission check consulted before every execution
// attempt, including retries. Implemented by budget.Tracker.
type Admitter interface {
	CanExecute(toolName string, estimatedTokens int) bool
}

// WrapConfig configures one wrapped handler.
type WrapConfig struct {
	Def     Definition
	Budget  Admitter
	Cache   *Cache // nil disables caching regardless of Def.Cacheable
	Timeout time.Duration
	// MaxRetries is the number of re-attempts after the first failure.
	MaxRetries int
}

// WrappedHandler is a fully-guarded tool call. It never returns a Go error;
// all failures arrive as ToolResponse.Error.
type WrappedHandler func(ctx context.Context, params map[string]any, call CallContext) *models.ToolResponse

// Wrap builds the guarded handler for a tool definition:
//
//  1. validate params against the schema (INVALID_PARAMS, fail fast);
//  2. consult the response cache — a hit consumes no budget and skips the
//     underlying handler;
//  3. re-check budget admission before every attempt; an attempt that would
//     breach budget is abandoned, not executed;
//  4. invoke the handler under the configured timeout;
//  5. on retryable failure, back off exponentially up to MaxRetries;
//  6. on terminal success, populate the cache (when enabled).
func Wrap(cfg WrapConfig) WrappedHandler {
	def := cfg.Def
	logger := slog.Default().With("tool", def.Name)

	return func(ctx context.Context, params map[string]any, call CallContext) *models.ToolResponse {
		started := time.Now()

		if err := validateParams(def.Params, params); err != nil {
			return &models.ToolResponse{
				Success: false,
				Error: &models.ToolError{
					Code:      models.ErrCodeInvalidParams,
					Message:   fmt.Sprintf("invalid parameters for %s", def.Name),
					Details:   err.Error(),
					Retryable: false,
				},
				Metadata: models.ToolResponseMetadata{ExecutionTime: time.Since(started)},
			}
		}

		if def.Cacheable && cfg.Cache != nil {
			if cached, ok := cfg.Cache.Get(def.Name, params); ok {
				cached.Metadata.ExecutionTime = time.Since(started)
				return cached
			}
		}

		attempts := 0
		var lastErr *models.ToolError
		for attempts <= cfg.MaxRetries {
			if cfg.Budget != nil && !cfg.Budget.CanExecute(def.Name, def.EstimatedTokens) {
				// A retry that would breach budget is abandoned. Preserve
				// the underlying failure when one exists.
				budgetErr := &models.ToolError{
					Code:      models.ErrCodeBudgetExceeded,
					Message:   fmt.Sprintf("budget admission denied for %s", def.Name),
					Retryable: false,
				}
				if lastErr != nil {
					budgetErr.Details = "after failed attempt: " + lastErr.Message
				}
				return failureResponse(budgetErr, attempts, started)
			}

			attempts++
			resp, err := invokeWithTimeout(ctx, def, params, call, cfg.Timeout)

			var toolErr *models.ToolError
			switch {
			case err != nil:
				toolErr = classifyError(err)
			case resp == nil:
				toolErr = &models.ToolError{
					Code:      models.ErrCodeExecutionError,
					Message:   "tool handler returned no response",
					Retryable: false,
				}
			case !resp.Success:
				toolErr = resp.Error
				if toolErr == nil {
					toolErr = &models.ToolError{
						Code:      models.ErrCodeExecutionError,
						Message:   "tool reported failure without error detail",
						Retryable: false,
					}
				}
			}

			if toolErr == nil {
				resp.Metadata.Cached = false
				resp.Metadata.ExecutionTime = time.Since(started)
				resp.Metadata.Attempts = attempts
				if def.Cacheable && cfg.Cache != nil {
					cfg.Cache.Set(def.Name, params, resp, def.CacheTTL)
				}
				return resp
			}

			lastErr = toolErr
			if !toolErr.Retryable || attempts > cfg.MaxRetries {
				break
			}

			delay := backoffDelay(attempts)
			logger.Warn("tool attempt failed, retrying",
				"attempt", attempts, "code", toolErr.Code, "delay", delay, "error", toolErr.Message)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return failureResponse(classifyError(ctx.Err()), attempts, started)
			}
		}

		return failureResponse(lastErr, attempts, started)
	}
}

// invokeWithTimeout runs the handler under a bounded per-call deadline.
func invokeWithTimeout(
	ctx context.Context,
	def Definition,
	params map[string]any,
	call CallContext,
	timeout time.Duration,
) (*models.ToolResponse, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return def.Handler(ctx, params, call)
}

// classifyError maps handler failures onto coarse categories and sets the
// retryable flag. Unclassified failures default to non-retryable execution
// errors.
func classifyError(err error) *models.ToolError {
	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline"):
		return &models.ToolError{Code: models.ErrCodeTimeout, Message: msg, Retryable: true}
	case errors.Is(err, context.Canceled):
		return &models.ToolError{Code: models.ErrCodeExecutionError, Message: msg, Retryable: false}
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many requests") || strings.Contains(lower, "429"):
		return &models.ToolError{Code: models.ErrCodeRateLimited, Message: msg, Retryable: true}
	case strings.Contains(lower, "unavailable") || strings.Contains(lower, "connection") ||
		strings.Contains(lower, "upstream") || strings.Contains(lower, "502") || strings.Contains(lower, "503"):
		return &models.ToolError{Code: models.ErrCodeUpstreamError, Message: msg, Retryable: true}
	default:
		return &models.ToolError{Code: models.ErrCodeExecutionError, Message: msg, Retryable: false}
	}
}

func backoffDelay(attempt int) time.Duration {
	delay := retryBaseDelay << (attempt - 1)
	if delay > retryMaxDelay {
		return retryMaxDelay
	}
	return delay
}

func failureResponse(toolErr *models.ToolError, attempts int, started time.Time) *models.ToolResponse {
	if toolErr == nil {
		toolErr = &models.ToolError{
			Code:      models.ErrCodeExecutionError,
			Message:   "tool execution failed",
			Retryable: false,
		}
	}
	return &models.ToolResponse{
		Success: false,
		Error:   toolErr,
		Metadata: models.ToolResponseMetadata{
			ExecutionTime: time.Since(started),
			Attempts:      attempts,
		},
	}
}
