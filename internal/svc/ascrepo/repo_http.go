package ascrepo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/segmentio/encoding/json"
	"github.com/yusufsyaifudin/release/internal/entity"
	"github.com/yusufsyaifudin/release/pkg/ascauth"
	"github.com/yusufsyaifudin/release/pkg/tracer"
	"github.com/yusufsyaifudin/release/pkg/validator"
	"github.com/yusufsyaifudin/ylog"
)

const DefaultBaseURL = "https://api.appstoreconnect.apple.com"

type HTTPConfig struct {
	BaseURL    string         `validate:"required,url"`
	HTTPClient *http.Client   `validate:"required"`
	Signer     ascauth.Signer `validate:"-"` // nil means not configured yet
}

// HTTPRepo calls the vendor REST API. Only a single page is fetched per call.
type HTTPRepo struct {
	baseURL    string
	httpClient *http.Client

	lock   sync.RWMutex
	signer ascauth.Signer
}

var _ Repo = (*HTTPRepo)(nil)

func NewHTTP(cfg HTTPConfig) (*HTTPRepo, error) {
	if err := validator.Validate(cfg); err != nil {
		return nil, fmt.Errorf("app store connect repo config error: %w", err)
	}

	return &HTTPRepo{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: cfg.HTTPClient,
		signer:     cfg.Signer,
	}, nil
}

// SetSigner swaps the signing capability, nil puts the repo back into the not configured state.
func (r *HTTPRepo) SetSigner(signer ascauth.Signer) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.signer = signer
}

// Configured reports whether a signer is present.
func (r *HTTPRepo) Configured() bool {
	return r.getSigner() != nil
}

func (r *HTTPRepo) getSigner() ascauth.Signer {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.signer
}

func (r *HTTPRepo) ListApps(ctx context.Context, in InputListApps) (out OutListApps, err error) {
	ctx, span := tracer.StartSpan(ctx, "ascrepo.ListApps")
	defer span.End()

	query := url.Values{}
	query.Set("limit", strconv.Itoa(ClampLimit(in.Limit)))
	query.Set("fields[apps]", "name,bundleId,sku,primaryLocale")

	var doc listDocument
	err = r.do(ctx, http.MethodGet, "/v1/apps", query, nil, &doc)
	if err != nil {
		err = fmt.Errorf("list apps: %w", err)
		return
	}

	out.Apps = make([]AppSummary, 0, len(doc.Data))
	for _, res := range doc.Data {
		var app AppSummary
		app, err = toAppSummary(res)
		if err != nil {
			err = fmt.Errorf("list apps: %w", err)
			return
		}

		out.Apps = append(out.Apps, app)
	}

	return
}

func (r *HTTPRepo) ListVersions(ctx context.Context, in InputListVersions) (out OutListVersions, err error) {
	ctx, span := tracer.StartSpan(ctx, "ascrepo.ListVersions")
	defer span.End()

	err = validator.Validate(in)
	if err != nil {
		err = fmt.Errorf("list versions validation error: %w", err)
		return
	}

	versions, err := r.listVersions(ctx, in.AppID, in.Limit)
	if err != nil {
		err = fmt.Errorf("list versions of app %s: %w", in.AppID, err)
		return
	}

	out.Versions = entity.FilterByPlatform(versions, in.Platform, entity.VersionPlatform)
	return
}

func (r *HTTPRepo) FetchAppDetail(ctx context.Context, in InputFetchAppDetail) (out OutFetchAppDetail, err error) {
	ctx, span := tracer.StartSpan(ctx, "ascrepo.FetchAppDetail")
	defer span.End()

	err = validator.Validate(in)
	if err != nil {
		err = fmt.Errorf("fetch app detail validation error: %w", err)
		return
	}

	query := url.Values{}
	query.Set("fields[apps]", "name,bundleId,sku,primaryLocale")

	var doc singleDocument
	err = r.do(ctx, http.MethodGet, "/v1/apps/"+url.PathEscape(in.AppID), query, nil, &doc)
	if err != nil {
		err = fmt.Errorf("fetch app %s: %w", in.AppID, err)
		return
	}

	if doc.Data == nil {
		err = &DecodeError{Err: fmt.Errorf("app %s: missing data", in.AppID)}
		return
	}

	out.App, err = toAppSummary(*doc.Data)
	if err != nil {
		err = fmt.Errorf("fetch app %s: %w", in.AppID, err)
		return
	}

	out.Versions, err = r.listVersions(ctx, in.AppID, in.VersionLimit)
	if err != nil {
		err = fmt.Errorf("fetch versions of app %s: %w", in.AppID, err)
		return
	}

	return
}

func (r *HTTPRepo) FetchLocalizedNotes(ctx context.Context, in InputFetchLocalizedNotes) (out OutFetchLocalizedNotes, err error) {
	ctx, span := tracer.StartSpan(ctx, "ascrepo.FetchLocalizedNotes")
	defer span.End()

	err = validator.Validate(in)
	if err != nil {
		err = fmt.Errorf("fetch localized notes validation error: %w", err)
		return
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(MaxLimit))
	query.Set("fields[appStoreVersionLocalizations]", "locale,whatsNew")

	path := "/v1/appStoreVersions/" + url.PathEscape(in.VersionID) + "/appStoreVersionLocalizations"

	var doc listDocument
	err = r.do(ctx, http.MethodGet, path, query, nil, &doc)
	if err != nil {
		err = fmt.Errorf("fetch localizations of version %s: %w", in.VersionID, err)
		return
	}

	out.Notes = make([]entity.LocalizedReleaseNote, 0, len(doc.Data))
	for _, res := range doc.Data {
		var attr localizationAttributes
		if _err := unmarshalAttributes(res.Attributes, &attr); _err != nil {
			err = &DecodeError{Err: fmt.Errorf("localization %s: %w", res.ID, _err)}
			return
		}

		out.Notes = append(out.Notes, toLocalizedNote(res.ID, attr))
	}

	return
}

func (r *HTTPRepo) UpdateLocalizedNote(ctx context.Context, in InputUpdateLocalizedNote) (out OutUpdateLocalizedNote, err error) {
	ctx, span := tracer.StartSpan(ctx, "ascrepo.UpdateLocalizedNote")
	defer span.End()

	err = validator.Validate(in)
	if err != nil {
		err = fmt.Errorf("update localized note validation error: %w", err)
		return
	}

	body := patchLocalizationDocument{
		Data: patchLocalizationData{
			Type: "appStoreVersionLocalizations",
			ID:   in.LocalizationID,
			Attributes: patchLocalizationAttributes{
				WhatsNew: in.Text,
			},
		},
	}

	var doc singleDocument
	err = r.do(ctx, http.MethodPatch, "/v1/appStoreVersionLocalizations/"+url.PathEscape(in.LocalizationID), nil, body, &doc)
	if err != nil {
		err = fmt.Errorf("update localization %s: %w", in.LocalizationID, err)
		return
	}

	if doc.Data == nil || len(doc.Data.Attributes) == 0 {
		err = fmt.Errorf("update localization %s: %w", in.LocalizationID, ErrMissingLocalization)
		return
	}

	var attr localizationAttributes
	if _err := json.Unmarshal(doc.Data.Attributes, &attr); _err != nil {
		err = &DecodeError{Err: fmt.Errorf("localization %s: %w", in.LocalizationID, _err)}
		return
	}

	// a cleared text comes back as null
	if attr.Locale == nil {
		err = fmt.Errorf("update localization %s: %w", in.LocalizationID, ErrMissingLocalization)
		return
	}

	out.Note = toLocalizedNote(doc.Data.ID, attr)
	return
}

func (r *HTTPRepo) TestConnection(ctx context.Context) bool {
	query := url.Values{}
	query.Set("limit", "1")
	query.Set("fields[apps]", "name")

	var doc listDocument
	err := r.do(ctx, http.MethodGet, "/v1/apps", query, nil, &doc)
	if err != nil {
		ylog.Error(ctx, "app store connect connection test failed", ylog.KV("error", err))
		return false
	}

	return true
}

func (r *HTTPRepo) listVersions(ctx context.Context, appID string, limit int) (versions []entity.Version, err error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(ClampLimit(limit)))
	query.Set("fields[appStoreVersions]", "versionString,appStoreState,platform,createdDate")

	var doc listDocument
	err = r.do(ctx, http.MethodGet, "/v1/apps/"+url.PathEscape(appID)+"/appStoreVersions", query, nil, &doc)
	if err != nil {
		return
	}

	versions = make([]entity.Version, 0, len(doc.Data))
	for _, res := range doc.Data {
		var attr versionAttributes
		if _err := unmarshalAttributes(res.Attributes, &attr); _err != nil {
			err = &DecodeError{Err: fmt.Errorf("version %s: %w", res.ID, _err)}
			return
		}

		status, ok := entity.ParseAppStatus(attr.AppStoreState)
		if !ok && attr.AppStoreState != "" {
			ylog.Debug(ctx, "unknown app store state", ylog.KV("state", attr.AppStoreState), ylog.KV("version_id", res.ID))
		}

		versions = append(versions, entity.Version{
			ID:            res.ID,
			VersionString: attr.VersionString,
			Platform:      entity.Platform(attr.Platform),
			Status:        status,
			CreatedDate:   attr.CreatedDate,
		})
	}

	return
}

// do sends one signed request. A nil out skips decoding.
func (r *HTTPRepo) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	signer := r.getSigner()
	if signer == nil {
		return ErrNotConfigured
	}

	reqURL := r.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body error: %w", err)
		}

		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return fmt.Errorf("build request error: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if err = signer.Sign(req); err != nil {
		return fmt.Errorf("sign request error: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request error: %w", err)
	}

	defer func() {
		if _err := resp.Body.Close(); _err != nil {
			ylog.Error(ctx, "cannot close response body", ylog.KV("error", _err))
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body error: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RemoteError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil {
		return nil
	}

	if err = json.Unmarshal(respBody, out); err != nil {
		return &DecodeError{Err: err}
	}

	return nil
}

func toAppSummary(res resource) (AppSummary, error) {
	var attr appAttributes
	if err := unmarshalAttributes(res.Attributes, &attr); err != nil {
		return AppSummary{}, &DecodeError{Err: fmt.Errorf("app %s: %w", res.ID, err)}
	}

	return AppSummary{
		ID:            res.ID,
		Name:          attr.Name,
		BundleID:      attr.BundleID,
		SKU:           attr.SKU,
		PrimaryLocale: attr.PrimaryLocale,
	}, nil
}

func toLocalizedNote(id string, attr localizationAttributes) entity.LocalizedReleaseNote {
	note := entity.LocalizedReleaseNote{ID: id}
	if attr.Locale != nil {
		note.Locale = *attr.Locale
	}

	if attr.WhatsNew != nil {
		note.Notes = *attr.WhatsNew
		note.WhatsNew = *attr.WhatsNew
	}

	return note
}

// unmarshalAttributes leaves out untouched when the attributes object is absent.
func unmarshalAttributes(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	return json.Unmarshal(raw, out)
}
