package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey    contextKey = "logger"
	requestIDKey contextKey = "request_id"
	cartIDKey    contextKey = "cart_id"
)

// WithContext returns a new context carrying logger
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger stored in ctx, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRequestID stores the request id in ctx
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID returns the request id stored in ctx
func GetRequestID(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDKey).(string)
	return requestID
}

// WithCartID stores the cart id a request operates on
func WithCartID(ctx context.Context, cartID string) context.Context {
	return context.WithValue(ctx, cartIDKey, cartID)
}

// GetCartID returns the cart id stored in ctx
func GetCartID(ctx context.Context) string {
	cartID, _ := ctx.Value(cartIDKey).(string)
	return cartID
}

// Fields returns the correlation fields present in ctx: trace_id, span_id,
// request_id and cart_id.
func Fields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if cartID := GetCartID(ctx); cartID != "" {
		fields = append(fields, zap.String("cart_id", cartID))
	}
	return fields
}

// L returns the logger from ctx enriched with its correlation fields.
//
//	logger.L(ctx).Info("cart refreshed", zap.Int("lines", n))
func L(ctx context.Context) *zap.Logger {
	return WithFields(ctx, FromContext(ctx))
}

// WithFields enriches logger with the correlation fields in ctx
func WithFields(ctx context.Context, logger *zap.Logger) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	fields := Fields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}
