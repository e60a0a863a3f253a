package handlersettings

import (
	"context"
	"errors"
	"net/http"

	"github.com/yusufsyaifudin/release/internal/svc/ascrepo"
	"github.com/yusufsyaifudin/release/internal/svc/settingsrepo"
	"github.com/yusufsyaifudin/release/pkg/ascauth"
	"github.com/yusufsyaifudin/release/pkg/respbuilder"
	"github.com/yusufsyaifudin/release/pkg/validator"
	"github.com/yusufsyaifudin/release/transport/restapi/httptyped"
)

// CredentialStore persists credentials and switches the catalog client to them.
type CredentialStore interface {
	Configured() bool
	SaveCredentials(ctx context.Context, cred ascauth.Credentials) error
	ClearCredentials(ctx context.Context) error
}

type HandlerConfig struct {
	Settings    settingsrepo.Repo `validate:"required"`
	Credentials CredentialStore   `validate:"required"`
	CatalogRepo ascrepo.Repo      `validate:"required"`
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

// CredentialsResp never carries the private key itself.
type CredentialsResp struct {
	Configured    bool   `json:"configured"`
	IssuerID      string `json:"issuer_id"`
	KeyID         string `json:"key_id"`
	HasPrivateKey bool   `json:"has_private_key"`
}

// GetCredentials shows which credentials are stored.
// Path     : GET /api/v1/settings/credentials
// Response : CredentialsResp
func (h *Handler) GetCredentials() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		cred, err := h.Config.Settings.LoadCredentials(ctx)
		if err != nil && !errors.Is(err, settingsrepo.ErrNotConfigured) {
			respbuilder.WriteError(httptyped.ErrKind(err), w, r, err)
			return
		}

		resp := respbuilder.Success(ctx, CredentialsResp{
			Configured:    h.Config.Credentials.Configured(),
			IssuerID:      cred.IssuerID,
			KeyID:         cred.PrivateKeyID,
			HasPrivateKey: cred.PrivateKey != "",
		})
		respbuilder.WriteJSON(http.StatusOK, w, r, resp)
	}
}

type PutCredentialsReq struct {
	IssuerID   string `json:"issuer_id"`
	KeyID      string `json:"key_id"`
	PrivateKey string `json:"private_key"`
}

// PutCredentials validates and stores new credentials, effective immediately.
// Path         : PUT /api/v1/settings/credentials
// Request Body : PutCredentialsReq
// Response     : CredentialsResp
func (h *Handler) PutCredentials() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var reqBody PutCredentialsReq
		if err := httptyped.DecodeBody(r, &reqBody); err != nil {
			respbuilder.WriteError(respbuilder.ErrValidation, w, r, err)
			return
		}

		cred := ascauth.Credentials{
			IssuerID:     reqBody.IssuerID,
			PrivateKeyID: reqBody.KeyID,
			PrivateKey:   reqBody.PrivateKey,
		}

		if err := h.Config.Credentials.SaveCredentials(ctx, cred); err != nil {
			respbuilder.WriteError(httptyped.ErrKind(err), w, r, err)
			return
		}

		resp := respbuilder.Success(ctx, CredentialsResp{
			Configured:    h.Config.Credentials.Configured(),
			IssuerID:      cred.IssuerID,
			KeyID:         cred.PrivateKeyID,
			HasPrivateKey: true,
		})
		respbuilder.WriteJSON(http.StatusOK, w, r, resp)
	}
}

// DeleteCredentials removes the stored credentials.
// Path     : DELETE /api/v1/settings/credentials
// Response : CredentialsResp
func (h *Handler) DeleteCredentials() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if err := h.Config.Credentials.ClearCredentials(ctx); err != nil {
			respbuilder.WriteError(httptyped.ErrKind(err), w, r, err)
			return
		}

		resp := respbuilder.Success(ctx, CredentialsResp{Configured: h.Config.Credentials.Configured()})
		respbuilder.WriteJSON(http.StatusOK, w, r, resp)
	}
}

type TestConnectionResp struct {
	OK bool `json:"ok"`
}

// TestConnection probes the vendor API with the current credentials.
// Path     : POST /api/v1/settings/test
// Response : TestConnectionResp
func (h *Handler) TestConnection() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ok := h.Config.CatalogRepo.TestConnection(ctx)
		respbuilder.WriteJSON(http.StatusOK, w, r, respbuilder.Success(ctx, TestConnectionResp{OK: ok}))
	}
}
