package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dmmcquay/endgame-mcp/internal/logging"
	"github.com/dmmcquay/endgame-mcp/internal/metrics"
	"github.com/dmmcquay/endgame-mcp/internal/ratelimit"
	"github.com/dmmcquay/endgame-mcp/internal/retry"
	"github.com/dmmcquay/endgame-mcp/internal/uci"
)

type clientIDKey struct{}

// ContextWithClientID tags ctx with the caller's identity for rate limiting.
func ContextWithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDKey{}, clientID)
}

// Middleware wraps MCP tool handlers with rate limiting, metrics and logging.
type Middleware struct {
	logger      logging.ContextLogger
	metrics     *metrics.Collector
	rateLimiter *ratelimit.Limiter
}

// NewMiddleware creates a new middleware instance. rateLimiter may be nil.
func NewMiddleware(logger logging.ContextLogger, metrics *metrics.Collector, rateLimiter *ratelimit.Limiter) *Middleware {
	return &Middleware{
		logger:      logger,
		metrics:     metrics,
		rateLimiter: rateLimiter,
	}
}

// ToolHandler is the function signature for MCP tool handlers.
type ToolHandler func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// WrapTool tags the request with correlation and request IDs, applies rate
// limits and records the outcome.
func (m *Middleware) WrapTool(toolName string, handler ToolHandler) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()

		if _, ok := logging.CorrelationIDFromContext(ctx); !ok {
			ctx = logging.ContextWithCorrelationID(ctx, logging.GenerateCorrelationID())
		}
		ctx = logging.ContextWithRequestID(ctx, logging.GenerateRequestID())

		clientID := extractClientID(ctx, request)
		logger := m.logger.WithContext(ctx).WithFields(map[string]interface{}{
			"tool":   toolName,
			"client": clientID,
		})

		logger.Info("Tool request received", "arguments", request.Params.Arguments)

		if m.rateLimiter != nil {
			err := m.rateLimiter.Allow(clientID, toolName)
			m.metrics.RecordRateLimit(clientID, toolName, err != nil)
			if err != nil {
				logger.Warn("Rate limit exceeded", "error", err)
				m.metrics.RecordToolCall(toolName, "rate_limited", time.Since(start))
				return nil, fmt.Errorf("tool %s: %w", toolName, err)
			}
		}

		result, err := handler(ctx, request)

		status := "success"
		duration := time.Since(start)
		switch {
		case err != nil:
			status = "error"
			logger.Error("Tool request failed", "error", err, "duration", duration)
		case result != nil && result.IsError:
			status = "error"
			logger.Warn("Tool returned an error result", "duration", duration)
		default:
			logger.Info("Tool request completed", "duration", duration)
		}
		m.metrics.RecordToolCall(toolName, status, duration)

		return result, err
	}
}

// WrapToolWithRetry retries a wrapped handler when the engine crashed
// mid-request. The supervisor starts a fresh engine for the next attempt,
// so a crash is worth one more try; any other error is returned at once.
func (m *Middleware) WrapToolWithRetry(toolName string, handler ToolHandler, maxRetries int) ToolHandler {
	wrapped := m.WrapTool(toolName, handler)

	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = maxRetries + 1
	cfg.InitialDelay = 100 * time.Millisecond
	cfg.MaxDelay = time.Second
	manager := retry.NewManager(cfg)
	manager.OnRetry = func(attempt int, delay time.Duration, err error) {
		m.logger.Warn("Retrying tool request",
			"tool", toolName,
			"attempt", attempt,
			"backoff", delay,
			"error", err,
		)
	}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var result *mcp.CallToolResult
		attempts := 0
		err := manager.Run(ctx, func(ctx context.Context) error {
			attempts++
			var err error
			result, err = wrapped(ctx, request)
			if err != nil && !errors.Is(err, uci.ErrEngineCrashed) {
				return retry.Permanent(err)
			}
			return err
		})
		if err != nil {
			if attempts > 1 {
				return nil, fmt.Errorf("tool %s failed after %d attempts: %w", toolName, attempts, err)
			}
			return nil, err
		}
		return result, nil
	}
}

// extractClientID reads the caller from the context, then from a clientID
// argument, defaulting to "anonymous".
func extractClientID(ctx context.Context, request mcp.CallToolRequest) string {
	if clientID, ok := ctx.Value(clientIDKey{}).(string); ok && clientID != "" {
		return clientID
	}

	if args, ok := request.Params.Arguments.(map[string]interface{}); ok {
		if clientID, ok := args["clientID"].(string); ok && clientID != "" {
			return clientID
		}
	}

	return "anonymous"
}
