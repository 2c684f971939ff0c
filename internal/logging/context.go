package logging

import (
	"context"

	"go.uber.org/zap"
)

type caseCtxKey struct{}
type runCtxKey struct{}
type sessionCtxKey struct{}

// WithCaseID returns a context carrying the case ID.
func WithCaseID(ctx context.Context, caseID string) context.Context {
	return context.WithValue(ctx, caseCtxKey{}, caseID)
}

// CaseIDFromContext returns the case ID, or "" if not set.
func CaseIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(caseCtxKey{}).(string); ok {
		return v
	}
	return ""
}

// WithRunID returns a context carrying the pipeline run ID.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runCtxKey{}, runID)
}

// RunIDFromContext returns the run ID, or "" if not set.
func RunIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(runCtxKey{}).(string); ok {
		return v
	}
	return ""
}

// WithSessionID returns a context carrying the extraction session ID.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, sessionID)
}

// SessionIDFromContext returns the session ID, or "" if not set.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionCtxKey{}).(string); ok {
		return v
	}
	return ""
}

// ContextFields extracts correlation fields from context for logging.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 3)
	if caseID := CaseIDFromContext(ctx); caseID != "" {
		fields = append(fields, zap.String("case.id", caseID))
	}
	if runID := RunIDFromContext(ctx); runID != "" {
		fields = append(fields, zap.String("run.id", runID))
	}
	if sessionID := SessionIDFromContext(ctx); sessionID != "" {
		fields = append(fields, zap.String("session.id", sessionID))
	}
	return fields
}
