package restapi

import (
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/yusufsyaifudin/release/internal/svc/ascrepo"
	"github.com/yusufsyaifudin/release/internal/svc/catalogsvc"
	"github.com/yusufsyaifudin/release/internal/svc/notesvc"
	"github.com/yusufsyaifudin/release/internal/svc/settingsrepo"
	"github.com/yusufsyaifudin/release/internal/svc/updatesvc"
	"github.com/yusufsyaifudin/release/pkg/respbuilder"
	"github.com/yusufsyaifudin/release/pkg/tracer"
	"github.com/yusufsyaifudin/release/pkg/validator"
	"github.com/yusufsyaifudin/release/transport/restapi/handlercatalog"
	"github.com/yusufsyaifudin/release/transport/restapi/handlernotes"
	"github.com/yusufsyaifudin/release/transport/restapi/handlersettings"
	"github.com/yusufsyaifudin/release/transport/restapi/handlerupdate"
	"go.opentelemetry.io/otel"
)

type Config struct {
	AppVersion     string                          `validate:"required"`
	CatalogService catalogsvc.Service              `validate:"required"`
	CatalogRepo    ascrepo.Repo                    `validate:"required"`
	NotesWorkspace *notesvc.Workspace              `validate:"required"`
	Updater        *updatesvc.Controller           `validate:"required"`
	Settings       settingsrepo.Repo               `validate:"required"`
	Credentials    handlersettings.CredentialStore `validate:"required"`
}

type DefaultHTTP struct {
	router *chi.Mux
}

func NewHTTPTransport(cfg Config) (*DefaultHTTP, error) {
	if err := validator.Validate(cfg); err != nil {
		return nil, fmt.Errorf("http transport cfg error: %w", err)
	}

	handlerCatalog, err := handlercatalog.NewHandler(handlercatalog.HandlerConfig{
		CatalogService: cfg.CatalogService,
		NotesWorkspace: cfg.NotesWorkspace,
	})
	if err != nil {
		return nil, err
	}

	handlerNotes, err := handlernotes.NewHandler(handlernotes.HandlerConfig{
		NotesWorkspace: cfg.NotesWorkspace,
	})
	if err != nil {
		return nil, err
	}

	handlerUpdate, err := handlerupdate.NewHandler(handlerupdate.HandlerConfig{
		Updater: cfg.Updater,
	})
	if err != nil {
		return nil, err
	}

	handlerSettings, err := handlersettings.NewHandler(handlersettings.HandlerConfig{
		Settings:    cfg.Settings,
		Credentials: cfg.Credentials,
		CatalogRepo: cfg.CatalogRepo,
	})
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()

	skip := func(r *http.Request) bool {
		switch strings.TrimSpace(path.Clean(r.URL.Path)) {
		case "/health",
			"/ping":
			return true
		}

		return false
	}

	router.Use(middleware.StripSlashes)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Tracer-ID"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	router.Use(func(next http.Handler) http.Handler {
		return tracer.Middleware(tracer.MiddlewareConfig{
			TracerName:     "github.com/yusufsyaifudin/release",
			ServiceName:    tracer.ServiceName,
			SkipFunc:       skip,
			TracerProvider: otel.GetTracerProvider(),    // global tracer provider
			TextPropagator: otel.GetTextMapPropagator(), // use global text map propagator
		}, next)
	})

	// add trace id and also log request response
	router.Use(func(next http.Handler) http.Handler {
		return requestLogger(skip, next)
	})

	router.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"pong":true,"version":%q}`, cfg.AppVersion)
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		err := fmt.Errorf("%s %s does not exist", r.Method, r.URL.Path)
		respbuilder.WriteError(respbuilder.ErrResourceNotFound, w, r, err)
	})

	// Resource: catalog rows
	router.Route("/api/v1/catalog", func(r chi.Router) {
		r.Get("/", handlerCatalog.Snapshot())
		r.Post("/refresh", handlerCatalog.Refresh())
	})

	// Resource: one app and its release notes
	router.Route("/api/v1/apps/{app_id}", func(r chi.Router) {
		r.Get("/", handlerCatalog.Detail())

		r.Route("/notes", func(r chi.Router) {
			r.Get("/", handlerNotes.Get())
			r.Post("/template", handlerNotes.ApplyTemplate())
			r.Post("/previous", handlerNotes.CopyPrevious())
			r.Post("/reset", handlerNotes.ResetAll())
			r.Post("/upload", handlerNotes.UploadAll())
			r.Put("/{locale}", handlerNotes.SetText())
			r.Post("/{locale}/reset", handlerNotes.Reset())
			r.Post("/{locale}/upload", handlerNotes.Upload())
		})
	})

	// Resource: self update
	router.Route("/api/v1/update", func(r chi.Router) {
		r.Get("/", handlerUpdate.Get())
		r.Post("/check", handlerUpdate.Check())
		r.Post("/install", handlerUpdate.Install())
		r.Post("/ignore", handlerUpdate.Ignore())
	})

	// Resource: settings
	router.Route("/api/v1/settings", func(r chi.Router) {
		r.Get("/credentials", handlerSettings.GetCredentials())
		r.Put("/credentials", handlerSettings.PutCredentials())
		r.Delete("/credentials", handlerSettings.DeleteCredentials())
		r.Post("/test", handlerSettings.TestConnection())
	})

	instance := &DefaultHTTP{
		router: router,
	}

	return instance, nil
}

// Server .
func (a *DefaultHTTP) Server() http.Handler {
	return a.router
}
