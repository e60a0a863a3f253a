package respbuilder

import "context"

type respCtxKey struct{}

var respTracerKey = respCtxKey{}

// Tracer is the request scoped data echoed back in every response envelope.
type Tracer struct {
	RemoteAddr string
	AppTraceID string
}

// Inject stores t in ctx, replacing any Tracer already there.
func Inject(ctx context.Context, t Tracer) context.Context {
	return context.WithValue(ctx, respTracerKey, t)
}

// Extract returns the Tracer of ctx and whether one was injected.
func Extract(ctx context.Context) (Tracer, bool) {
	if ctx == nil {
		return Tracer{}, false
	}

	t, ok := ctx.Value(respTracerKey).(Tracer)
	return t, ok
}

// MustExtract returns the injected Tracer, or the zero Tracer when there is none.
func MustExtract(ctx context.Context) Tracer {
	t, _ := Extract(ctx)
	return t
}
