// Package context carries request correlation values through context.Context.
package context

import (
	"context"
	"strings"
)

type requestIDKey struct{}
type uploadIDKey struct{}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, strings.TrimSpace(requestID))
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

// WithUploadID tags the context with the upload batch being processed.
func WithUploadID(ctx context.Context, uploadID string) context.Context {
	return context.WithValue(ctx, uploadIDKey{}, strings.TrimSpace(uploadID))
}

func UploadIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(uploadIDKey{}).(string)
	return value
}
