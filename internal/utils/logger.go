package utils

import (
	"context"
	"fmt"
	"log"
	"strings"
)

type requestIDKey struct{}

// WithRequestID stores the request id on ctx so services can log it.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFrom returns the request id stored by WithRequestID, or "".
func RequestIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// LogEvent prints standardized log line with module/action/request_id.
// Avoid logging sensitive payload; message should be summarized.
func LogEvent(requestID, module, action, message string) {
	req := strings.TrimSpace(requestID)
	log.Printf("[%s] action=%s request_id=%s msg=%s", strings.ToUpper(module), action, req, message)
}

// LogEventf is LogEvent with the request id taken from ctx and a formatted message.
func LogEventf(ctx context.Context, module, action, format string, args ...any) {
	LogEvent(RequestIDFrom(ctx), module, action, fmt.Sprintf(format, args...))
}
