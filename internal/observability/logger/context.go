package logger

import (
	"context"
	"strings"
)

type requestIDKey struct{}
type orgIDKey struct{}

// WithRequestID stores the inbound request id in ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if strings.TrimSpace(requestID) == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// WithOrgID stores the organization id in ctx for log enrichment.
func WithOrgID(ctx context.Context, orgID string) context.Context {
	if strings.TrimSpace(orgID) == "" {
		return ctx
	}
	return context.WithValue(ctx, orgIDKey{}, orgID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

func OrgIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(orgIDKey{}).(string)
	return value
}
