package catalogsvc

import (
	"context"

	"github.com/yusufsyaifudin/release/internal/entity"
)

// Service builds the catalog rows, one per (app, platform), and loads app detail.
type Service interface {
	// Refresh clears the state and rebuilds it. When two refreshes overlap, the later one wins
	// and the earlier one stops publishing.
	Refresh(ctx context.Context) (out State, err error)

	// Snapshot returns a copy of the current state.
	Snapshot() State

	// Subscribe receives a snapshot every time the state changes, latest wins.
	Subscribe() (updates <-chan State, cancel func())

	LoadDetail(ctx context.Context, input InputLoadDetail) (out OutLoadDetail, err error)
}

// ItemFailure records one skipped item of a best-effort loop.
type ItemFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// State is what the presentation layer observes.
// Rows only change when a refresh completes or icons are backfilled.
type State struct {
	Rows          []entity.AppRecord `json:"rows"`
	IsLoading     bool               `json:"is_loading"`
	Progress      float64            `json:"progress"`
	IsComplete    bool               `json:"is_complete"`
	LastError     string             `json:"last_error,omitempty"`
	Failures      []ItemFailure      `json:"failures,omitempty"`
	ProcessedApps int                `json:"processed_apps"`
	TotalApps     int                `json:"total_apps"`
}

func (s State) clone() State {
	out := s
	if s.Rows != nil {
		out.Rows = make([]entity.AppRecord, len(s.Rows))
		copy(out.Rows, s.Rows)
	}

	if s.Failures != nil {
		out.Failures = make([]ItemFailure, len(s.Failures))
		copy(out.Failures, s.Failures)
	}

	return out
}

type InputLoadDetail struct {
	AppID string `validate:"required"`

	// Platform narrows the release notes. No match means every version is shown.
	Platform entity.Platform `validate:"-"`
}

type OutLoadDetail struct {
	Detail entity.AppDetail

	// Failures lists versions whose localizations could not be fetched; they are left out of Detail.
	Failures []ItemFailure
}
