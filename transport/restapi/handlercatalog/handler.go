package handlercatalog

import (
	"fmt"
	"net/http"

	"github.com/yusufsyaifudin/release/internal/entity"
	"github.com/yusufsyaifudin/release/internal/svc/catalogsvc"
	"github.com/yusufsyaifudin/release/internal/svc/notesvc"
	"github.com/yusufsyaifudin/release/pkg/respbuilder"
	"github.com/yusufsyaifudin/release/pkg/validator"
	"github.com/yusufsyaifudin/release/transport/restapi/httptyped"
	"github.com/yusufsyaifudin/ylog"
)

type HandlerConfig struct {
	CatalogService catalogsvc.Service `validate:"required"`
	NotesWorkspace *notesvc.Workspace `validate:"required"`
}

type Handler struct {
	Config HandlerConfig
}

func NewHandler(conf HandlerConfig) (*Handler, error) {
	err := validator.Validate(conf)
	if err != nil {
		return nil, err
	}

	return &Handler{Config: conf}, nil
}

// Snapshot returns the current catalog state.
// Path     : GET /api/v1/catalog
// Response : catalogsvc.State
func (h *Handler) Snapshot() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := respbuilder.Success(r.Context(), h.Config.CatalogService.Snapshot())
		respbuilder.WriteJSON(http.StatusOK, w, r, resp)
	}
}

type RefreshQuery struct {
	Wait bool `schema:"wait"`
}

// Refresh starts rebuilding the catalog. Without wait=true it returns at once with the loading state.
// Path     : POST /api/v1/catalog/refresh?wait=
// Response : catalogsvc.State
func (h *Handler) Refresh() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var query RefreshQuery
		if err := httptyped.DecodeQuery(r, &query); err != nil {
			respbuilder.WriteError(respbuilder.ErrValidation, w, r, err)
			return
		}

		if query.Wait {
			state, err := h.Config.CatalogService.Refresh(ctx)
			if err != nil {
				respbuilder.WriteError(httptyped.ErrKind(err), w, r, err)
				return
			}

			respbuilder.WriteJSON(http.StatusOK, w, r, respbuilder.Success(ctx, state))
			return
		}

		// subscribe first so the loading state is not missed
		updates, cancel := h.Config.CatalogService.Subscribe()
		defer cancel()

		bgCtx := httptyped.Detach(ctx)
		go func() {
			if _, err := h.Config.CatalogService.Refresh(bgCtx); err != nil {
				ylog.Error(bgCtx, "catalog refresh failed", ylog.KV("error", err))
			}
		}()

		var state catalogsvc.State
		select {
		case state = <-updates:
		case <-ctx.Done():
			state = h.Config.CatalogService.Snapshot()
		}

		respbuilder.WriteJSON(http.StatusAccepted, w, r, respbuilder.Success(ctx, state))
	}
}

type DetailQuery struct {
	Platform string `schema:"platform"`
}

type DetailResp struct {
	App      entity.AppDetail         `json:"app"`
	Failures []catalogsvc.ItemFailure `json:"failures,omitempty"`
	Editor   notesvc.EditorState      `json:"editor"`
}

// Detail loads one app with its release notes and hands them to the note editor of that app.
// Path     : GET /api/v1/apps/{app_id}?platform=
// Response : DetailResp
func (h *Handler) Detail() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		appID, err := httptyped.URLParam(r, "app_id")
		if err != nil {
			respbuilder.WriteError(respbuilder.ErrValidation, w, r, err)
			return
		}

		var query DetailQuery
		if err = httptyped.DecodeQuery(r, &query); err != nil {
			respbuilder.WriteError(respbuilder.ErrValidation, w, r, err)
			return
		}

		var platform entity.Platform
		if query.Platform != "" {
			var ok bool
			platform, ok = entity.ParsePlatform(query.Platform)
			if !ok {
				err = fmt.Errorf("unknown platform '%s'", query.Platform)
				respbuilder.WriteError(respbuilder.ErrValidation, w, r, err)
				return
			}
		}

		out, err := h.Config.CatalogService.LoadDetail(ctx, catalogsvc.InputLoadDetail{
			AppID:    appID,
			Platform: platform,
		})
		if err != nil {
			respbuilder.WriteError(httptyped.ErrKind(err), w, r, err)
			return
		}

		editor, err := h.Config.NotesWorkspace.Load(out.Detail)
		if err != nil {
			respbuilder.WriteError(respbuilder.ErrUnhandled, w, r, err)
			return
		}

		resp := respbuilder.Success(ctx, DetailResp{
			App:      out.Detail,
			Failures: out.Failures,
			Editor:   editor.Snapshot(),
		})
		respbuilder.WriteJSON(http.StatusOK, w, r, resp)
	}
}
