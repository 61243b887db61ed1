package ctxutil

import "context"

type requestMetaKey struct{}

// RequestMeta identifies one inbound request across logs and spans.
type RequestMeta struct {
	TraceID   string
	RequestID string
}

func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

func RequestMetaFrom(ctx context.Context) (RequestMeta, bool) {
	if ctx == nil {
		return RequestMeta{}, false
	}
	meta, ok := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta, ok
}

// LogFields returns the request and trace ids on ctx as logger key/value pairs.
func LogFields(ctx context.Context) []interface{} {
	var kv []interface{}
	if meta, ok := RequestMetaFrom(ctx); ok {
		if meta.RequestID != "" {
			kv = append(kv, "request_id", meta.RequestID)
		}
		if meta.TraceID != "" {
			kv = append(kv, "trace_id", meta.TraceID)
		}
	}
	return kv
}
