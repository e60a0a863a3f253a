package extd

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/satori/uuid"
	"github.com/yusufsyaifudin/release/container"
	"github.com/yusufsyaifudin/release/pkg/tracer"
	"github.com/yusufsyaifudin/release/transport/restapi"
	"github.com/yusufsyaifudin/ylog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const shutdownTimeout = 10 * time.Second

// RunServer serves the REST api until SIGINT or SIGTERM.
// extd (extended) is kept apart from cmd so another binary can embed the server.
func RunServer(ctx context.Context, cfg container.Config) (err error) {

	if ctx == nil {
		ctx = context.TODO()
	}

	// ** setup container
	ylog.Info(ctx, "container preparation: starting")
	dep, err := container.Setup(ctx, cfg)
	if err != nil {
		ylog.Error(ctx, "container preparation: failed", ylog.KV("error", err))
		return
	}

	defer func() {
		ylog.Info(ctx, "closing container: starting")
		if _err := dep.Close(); _err != nil {
			ylog.Error(ctx, "closing container: failed", ylog.KV("error", _err))
			return
		}

		ylog.Info(ctx, "closing container: done")
	}()

	ylog.Info(ctx, "container preparation: done", ylog.KV("configured", dep.Configured()))

	// ** HTTP TRANSPORT
	ylog.Info(ctx, "http transport: starting")
	server, err := restapi.NewHTTPTransport(restapi.Config{
		AppVersion:     cfg.Updater.CurrentVersion,
		CatalogService: dep.Catalog(),
		CatalogRepo:    dep.CatalogRepo(),
		NotesWorkspace: dep.Notes(),
		Updater:        dep.Updater(),
		Settings:       dep.Settings(),
		Credentials:    dep,
	})
	if err != nil {
		ylog.Error(ctx, "http transport: failed", ylog.KV("error", err))
		return
	}

	httpPort := fmt.Sprintf(":%d", cfg.Transport.HTTP.Port)
	h2s := &http2.Server{}
	httpServer := &http.Server{
		Addr:              httpPort,
		Handler:           h2c.NewHandler(server.Server(), h2s), // HTTP/2 Cleartext handler
		ReadHeaderTimeout: 10 * time.Second,
	}

	var apiErrChan = make(chan error, 1)
	go func() {
		ylog.Info(ctx, fmt.Sprintf("http transport: done running on port %d", cfg.Transport.HTTP.Port))
		apiErrChan <- httpServer.ListenAndServe()
	}()

	ylog.Info(ctx, "system: up and running...")

	// ** listen for sigterm signal
	var signalChan = make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-signalChan:
		ylog.Info(ctx, "system: exiting...")
		ylog.Info(ctx, "http transport: exiting...")

		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()

		if _err := httpServer.Shutdown(shutdownCtx); _err != nil {
			ylog.Error(ctx, "http transport: ", ylog.KV("error", _err))
		}

	case err = <-apiErrChan:
		if err != nil {
			ylog.Error(ctx, "http transport: error", ylog.KV("error", err))
		}
	}

	return
}

// SetupLog installs the zap backed global logger writing JSON lines to w,
// and returns ctx carrying a fresh system trace id.
func SetupLog(ctx context.Context, w io.Writer, level zapcore.Level) context.Context {
	if ctx == nil {
		ctx = context.TODO()
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zapcore.EncoderConfig{
			TimeKey:        "ts",
			MessageKey:     "msg",
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
			LineEnding:     zapcore.DefaultLineEnding,
			LevelKey:       "level",
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
		}),
		zapcore.NewMultiWriteSyncer(zapcore.AddSync(w)), // pipe to multiple writer
		level,
	)

	zapLog := zap.New(core)

	propagateData := tracer.LogData{
		RemoteAddr: "system",
		TraceID:    uuid.NewV4().String(),
	}

	traceLog, err := ylog.NewTracer(propagateData, ylog.WithTag("tracer"))
	if err != nil {
		log.Fatalf("error prepare tracer system data: %s", err)
		return ctx
	}

	// inject context
	ctx = ylog.Inject(ctx, traceLog)

	// ** set global logger
	ylog.SetGlobalLogger(ylog.NewZap(zapLog))

	return ctx
}
