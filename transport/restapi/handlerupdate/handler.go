package handlerupdate

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/yusufsyaifudin/release/internal/svc/updatesvc"
	"github.com/yusufsyaifudin/release/pkg/respbuilder"
	"github.com/yusufsyaifudin/release/pkg/validator"
	"github.com/yusufsyaifudin/release/transport/restapi/httptyped"
	"github.com/yusufsyaifudin/ylog"
)

type HandlerConfig struct {
	Updater *updatesvc.Controller `validate:"required"`
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

// Get returns the updater state.
// Path     : GET /api/v1/update
// Response : updatesvc.State
func (h *Handler) Get() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		respbuilder.WriteJSON(http.StatusOK, w, r, respbuilder.Success(r.Context(), h.Config.Updater.Snapshot()))
	}
}

// Check asks the release feed for the latest release.
// Path     : POST /api/v1/update/check
// Response : updatesvc.State
func (h *Handler) Check() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		state, err := h.Config.Updater.CheckForUpdates(ctx)
		if err != nil {
			respbuilder.WriteError(httptyped.ErrKind(err), w, r, err)
			return
		}

		respbuilder.WriteJSON(http.StatusOK, w, r, respbuilder.Success(ctx, state))
	}
}

// Install starts download and install in the background; progress is visible through Get.
// The process exits once the new version is in place.
// Path     : POST /api/v1/update/install
// Response : updatesvc.State
func (h *Handler) Install() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		state := h.Config.Updater.Snapshot()
		switch {
		case state.Latest == nil:
			respbuilder.WriteError(respbuilder.ErrConflict, w, r, updatesvc.ErrNoRelease)
			return

		case state.Phase == updatesvc.PhaseDownloading,
			state.Phase == updatesvc.PhaseInstalling,
			state.Phase == updatesvc.PhaseRestarting:
			respbuilder.WriteError(respbuilder.ErrConflict, w, r, updatesvc.ErrBusy)
			return
		}

		bgCtx := httptyped.Detach(ctx)
		go func() {
			if err := h.Config.Updater.DownloadAndInstall(bgCtx); err != nil {
				ylog.Error(bgCtx, "download and install failed", ylog.KV("error", err))
			}
		}()

		respbuilder.WriteJSON(http.StatusAccepted, w, r, respbuilder.Success(ctx, state))
	}
}

type IgnoreReq struct {
	Version string `json:"version"` // empty means the latest release
}

// Ignore remembers a release version so it is flagged as ignored.
// Path         : POST /api/v1/update/ignore
// Request Body : IgnoreReq
// Response     : updatesvc.State
func (h *Handler) Ignore() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var reqBody IgnoreReq
		if err := httptyped.DecodeBody(r, &reqBody); err != nil {
			respbuilder.WriteError(respbuilder.ErrValidation, w, r, err)
			return
		}

		version := strings.TrimSpace(reqBody.Version)
		if version == "" {
			if latest := h.Config.Updater.Snapshot().Latest; latest != nil {
				version = latest.TagName
			}
		}

		if version == "" {
			err := fmt.Errorf("version is required when no release was checked")
			respbuilder.WriteError(respbuilder.ErrValidation, w, r, err)
			return
		}

		if err := h.Config.Updater.IgnoreVersion(ctx, version); err != nil {
			respbuilder.WriteError(httptyped.ErrKind(err), w, r, err)
			return
		}

		respbuilder.WriteJSON(http.StatusOK, w, r, respbuilder.Success(ctx, h.Config.Updater.Snapshot()))
	}
}
