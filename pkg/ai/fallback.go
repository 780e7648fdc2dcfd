package ai

import (
	"context"
	"fmt"
	"net"
	"strings"

	"go.uber.org/zap"
)

// FallbackCompleter routes completions across two providers: the primary is
// tried first, the secondary takes over on connection errors, and a quota
// error on the secondary sends the request back to the primary once.
type FallbackCompleter struct {
	primary   Completer
	secondary Completer
	logger    *zap.Logger
}

// NewFallbackCompleter creates a new fallback completer
func NewFallbackCompleter(primary, secondary Completer, logger *zap.Logger) *FallbackCompleter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackCompleter{primary: primary, secondary: secondary, logger: logger}
}

// isConnectionError checks if the error is a network/connection error
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	if _, ok := err.(net.Error); ok {
		return true
	}

	errStr := strings.ToLower(err.Error())
	connectionIndicators := []string{
		"connection refused",
		"no such host",
		"network is unreachable",
		"connection reset",
		"timeout",
		"dial tcp",
		"eof",
	}
	for _, indicator := range connectionIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}

// isQuotaError checks if the error indicates API quota exhaustion (429)
func isQuotaError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	quotaIndicators := []string{
		"429",
		"quota",
		"rate limit",
		"too many requests",
		"resource exhausted",
	}
	for _, indicator := range quotaIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}

// Complete implements Completer with provider fallback
func (f *FallbackCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if f.primary != nil {
		result, err := f.primary.Complete(ctx, systemPrompt, userPrompt)
		if err == nil {
			return result, nil
		}
		if f.secondary == nil {
			return "", err
		}
		if isConnectionError(err) || isQuotaError(err) {
			f.logger.Warn("primary completer unavailable, falling back", zap.Error(err))
		} else {
			f.logger.Warn("primary completer failed, falling back", zap.Error(err))
		}
	}

	if f.secondary == nil {
		return "", fmt.Errorf("no completion provider configured")
	}

	result, err := f.secondary.Complete(ctx, systemPrompt, userPrompt)
	if err == nil {
		return result, nil
	}
	if isQuotaError(err) && f.primary != nil {
		f.logger.Warn("secondary completer quota exhausted, retrying primary", zap.Error(err))
		return f.primary.Complete(ctx, systemPrompt, userPrompt)
	}
	return "", fmt.Errorf("completion failed: %w", err)
}
