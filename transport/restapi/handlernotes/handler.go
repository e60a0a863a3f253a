package handlernotes

import (
	"fmt"
	"net/http"

	"github.com/yusufsyaifudin/release/internal/svc/notesvc"
	"github.com/yusufsyaifudin/release/pkg/respbuilder"
	"github.com/yusufsyaifudin/release/pkg/validator"
	"github.com/yusufsyaifudin/release/transport/restapi/httptyped"
)

type HandlerConfig struct {
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

// editor resolves {app_id}; it writes the error response itself and returns false on failure.
func (h *Handler) editor(w http.ResponseWriter, r *http.Request) (*notesvc.Editor, bool) {
	appID, err := httptyped.URLParam(r, "app_id")
	if err != nil {
		respbuilder.WriteError(respbuilder.ErrValidation, w, r, err)
		return nil, false
	}

	editor, ok := h.Config.NotesWorkspace.Editor(appID)
	if !ok {
		err = fmt.Errorf("release notes of app %s are not loaded, open the app detail first", appID)
		respbuilder.WriteError(respbuilder.ErrResourceNotFound, w, r, err)
		return nil, false
	}

	return editor, true
}

func writeState(w http.ResponseWriter, r *http.Request, editor *notesvc.Editor) {
	respbuilder.WriteJSON(http.StatusOK, w, r, respbuilder.Success(r.Context(), editor.Snapshot()))
}

// Get returns the editor state.
// Path     : GET /api/v1/apps/{app_id}/notes
// Response : notesvc.EditorState
func (h *Handler) Get() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		editor, ok := h.editor(w, r)
		if !ok {
			return
		}

		writeState(w, r, editor)
	}
}

type SetTextReq struct {
	Text string `json:"text"`
}

// SetText replaces the local text of one locale.
// Path         : PUT /api/v1/apps/{app_id}/notes/{locale}
// Request Body : SetTextReq
// Response     : notesvc.EditorState
func (h *Handler) SetText() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		editor, ok := h.editor(w, r)
		if !ok {
			return
		}

		locale, err := httptyped.URLParam(r, "locale")
		if err != nil {
			respbuilder.WriteError(respbuilder.ErrValidation, w, r, err)
			return
		}

		var reqBody SetTextReq
		if err = httptyped.DecodeBody(r, &reqBody); err != nil {
			respbuilder.WriteError(respbuilder.ErrValidation, w, r, err)
			return
		}

		if err = editor.SetText(locale, reqBody.Text); err != nil {
			respbuilder.WriteError(httptyped.ErrKind(err), w, r, err)
			return
		}

		writeState(w, r, editor)
	}
}

type TemplateReq struct {
	Template string `json:"template"`
}

// ApplyTemplate writes the same text into every locale.
// Path         : POST /api/v1/apps/{app_id}/notes/template
// Request Body : TemplateReq
// Response     : notesvc.EditorState
func (h *Handler) ApplyTemplate() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		editor, ok := h.editor(w, r)
		if !ok {
			return
		}

		var reqBody TemplateReq
		if err := httptyped.DecodeBody(r, &reqBody); err != nil {
			respbuilder.WriteError(respbuilder.ErrValidation, w, r, err)
			return
		}

		if err := editor.ApplyTemplateToAll(reqBody.Template); err != nil {
			respbuilder.WriteError(httptyped.ErrKind(err), w, r, err)
			return
		}

		writeState(w, r, editor)
	}
}

type PreviousResp struct {
	Updated int                 `json:"updated"`
	Editor  notesvc.EditorState `json:"editor"`
}

// CopyPrevious copies the previous version's text into the locales both versions share.
// Path     : POST /api/v1/apps/{app_id}/notes/previous
// Response : PreviousResp
func (h *Handler) CopyPrevious() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		editor, ok := h.editor(w, r)
		if !ok {
			return
		}

		updated, err := editor.FetchPreviousVersionNotes(ctx)
		if err != nil {
			respbuilder.WriteError(httptyped.ErrKind(err), w, r, err)
			return
		}

		resp := respbuilder.Success(ctx, PreviousResp{Updated: updated, Editor: editor.Snapshot()})
		respbuilder.WriteJSON(http.StatusOK, w, r, resp)
	}
}

// ResetAll drops every local edit.
// Path     : POST /api/v1/apps/{app_id}/notes/reset
// Response : notesvc.EditorState
func (h *Handler) ResetAll() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		editor, ok := h.editor(w, r)
		if !ok {
			return
		}

		editor.ResetAll()
		writeState(w, r, editor)
	}
}

// Reset drops the local edit of one locale.
// Path     : POST /api/v1/apps/{app_id}/notes/{locale}/reset
// Response : notesvc.EditorState
func (h *Handler) Reset() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		editor, ok := h.editor(w, r)
		if !ok {
			return
		}

		locale, err := httptyped.URLParam(r, "locale")
		if err != nil {
			respbuilder.WriteError(respbuilder.ErrValidation, w, r, err)
			return
		}

		if err = editor.Reset(locale); err != nil {
			respbuilder.WriteError(httptyped.ErrKind(err), w, r, err)
			return
		}

		writeState(w, r, editor)
	}
}

type UploadAllResp struct {
	Report notesvc.UploadReport `json:"report"`
	Editor notesvc.EditorState  `json:"editor"`
}

// UploadAll uploads every changed locale one by one. Failed locales are listed in the report;
// the request only fails when nothing could be attempted.
// Path     : POST /api/v1/apps/{app_id}/notes/upload
// Response : UploadAllResp
func (h *Handler) UploadAll() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		editor, ok := h.editor(w, r)
		if !ok {
			return
		}

		report, err := editor.UploadAll(ctx)
		if err != nil && len(report.Uploaded) == 0 && len(report.Failed) == 0 {
			respbuilder.WriteError(httptyped.ErrKind(err), w, r, err)
			return
		}

		resp := respbuilder.Success(ctx, UploadAllResp{Report: report, Editor: editor.Snapshot()})
		respbuilder.WriteJSON(http.StatusOK, w, r, resp)
	}
}

// Upload uploads one locale. A locale without changes is not sent.
// Path     : POST /api/v1/apps/{app_id}/notes/{locale}/upload
// Response : notesvc.EditorState
func (h *Handler) Upload() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		editor, ok := h.editor(w, r)
		if !ok {
			return
		}

		locale, err := httptyped.URLParam(r, "locale")
		if err != nil {
			respbuilder.WriteError(respbuilder.ErrValidation, w, r, err)
			return
		}

		if err = editor.Upload(r.Context(), locale); err != nil {
			respbuilder.WriteError(httptyped.ErrKind(err), w, r, err)
			return
		}

		writeState(w, r, editor)
	}
}
