package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from a context: the active OTel
// trace/span ids and the tenant id, when present.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 3)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	if tenant := TenantFromContext(ctx); tenant != "" {
		fields = append(fields, zap.String("tenant_id", tenant))
	}

	return fields
}

type tenantContextKey struct{}

// ContextWithTenant annotates a context with the tenant id for log
// correlation. This is purely observational; storage isolation uses
// explicit filters, never context values.
func ContextWithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tenantID)
}

// TenantFromContext returns the tenant id from the context, or "".
func TenantFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(tenantContextKey{}).(string); ok {
		return v
	}
	return ""
}
