package httptyped

import (
	"context"

	"github.com/yusufsyaifudin/release/pkg/respbuilder"
	"github.com/yusufsyaifudin/release/pkg/tracer"
	"github.com/yusufsyaifudin/ylog"
)

// Detach returns a context that outlives the request but keeps its trace id in the logs.
// Used for work that continues after the response is written.
func Detach(ctx context.Context) context.Context {
	resp := respbuilder.MustExtract(ctx)
	out := respbuilder.Inject(context.Background(), resp)

	logTracer, err := ylog.NewTracer(tracer.LogData{
		RemoteAddr: resp.RemoteAddr,
		TraceID:    resp.AppTraceID,
	}, ylog.WithTag("tracer"))
	if err != nil {
		return out
	}

	return ylog.Inject(out, logTracer)
}
