package ascrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/yusufsyaifudin/release/internal/entity"
)

const (
	// MaxLimit is the largest page size the vendor API accepts.
	MaxLimit = 200

	// DefaultLimit is used when a caller passes zero.
	DefaultLimit = MaxLimit
)

var (
	ErrNotConfigured       = errors.New("app store connect api is not configured")
	ErrMissingLocalization = errors.New("response does not contain the expected localization attributes")
)

// RemoteError is a non-2xx response from the vendor API.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	detail := gjson.Get(e.Body, "errors.0.detail").String()
	if detail == "" {
		detail = gjson.Get(e.Body, "errors.0.title").String()
	}

	if detail == "" {
		detail = strings.TrimSpace(e.Body)
	}

	return fmt.Sprintf("remote error status %d: %s", e.StatusCode, detail)
}

// DecodeError is returned when a response body is not the expected JSON shape.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response error: %s", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Repo is the vendor catalog API. No method retries; failures are returned as-is.
type Repo interface {
	ListApps(ctx context.Context, in InputListApps) (out OutListApps, err error)
	ListVersions(ctx context.Context, in InputListVersions) (out OutListVersions, err error)
	FetchAppDetail(ctx context.Context, in InputFetchAppDetail) (out OutFetchAppDetail, err error)
	FetchLocalizedNotes(ctx context.Context, in InputFetchLocalizedNotes) (out OutFetchLocalizedNotes, err error)
	UpdateLocalizedNote(ctx context.Context, in InputUpdateLocalizedNote) (out OutUpdateLocalizedNote, err error)

	// TestConnection never fails, it reports false on any error.
	TestConnection(ctx context.Context) bool
}

// AppSummary is the app stub returned by the list endpoint.
type AppSummary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	BundleID      string `json:"bundle_id"`
	SKU           string `json:"sku,omitempty"`
	PrimaryLocale string `json:"primary_locale,omitempty"`
}

type InputListApps struct {
	Limit int `validate:"min=0"`
}

type OutListApps struct {
	Apps []AppSummary
}

type InputListVersions struct {
	AppID string `validate:"required"`
	Limit int    `validate:"min=0"`

	// Platform filters locally. When nothing matches the unfiltered list is returned.
	Platform entity.Platform `validate:"-"`
}

type OutListVersions struct {
	// Versions are in server order (most recent first), never re-sorted.
	Versions []entity.Version
}

type InputFetchAppDetail struct {
	AppID        string `validate:"required"`
	VersionLimit int    `validate:"min=0"`
}

type OutFetchAppDetail struct {
	App      AppSummary
	Versions []entity.Version
}

type InputFetchLocalizedNotes struct {
	VersionID string `validate:"required"`
}

type OutFetchLocalizedNotes struct {
	Notes []entity.LocalizedReleaseNote
}

type InputUpdateLocalizedNote struct {
	LocalizationID string `validate:"required"`
	Text           string `validate:"-"`
}

type OutUpdateLocalizedNote struct {
	Note entity.LocalizedReleaseNote
}

// ClampLimit keeps limit in [1, MaxLimit], zero or negative becomes DefaultLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}
