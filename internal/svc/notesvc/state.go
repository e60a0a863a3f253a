package notesvc

import (
	"errors"
	"fmt"
)

var (
	ErrReadOnly          = errors.New("release notes are read only for this version")
	ErrUnknownLocale     = errors.New("locale is not part of the current version")
	ErrNotLoaded         = errors.New("no version loaded")
	ErrNoPreviousVersion = errors.New("there is no previous version")
	ErrUploadInProgress  = errors.New("upload already in progress")
)

// UploadStatus is the per-locale upload lifecycle.
type UploadStatus int

const (
	StatusIdle UploadStatus = iota
	StatusPendingChanges
	StatusUploading
	StatusSuccess
	StatusFailure
)

var uploadStatusNames = map[UploadStatus]string{
	StatusIdle:           "idle",
	StatusPendingChanges: "pending_changes",
	StatusUploading:      "uploading",
	StatusSuccess:        "success",
	StatusFailure:        "failure",
}

func (s UploadStatus) String() string {
	if name, ok := uploadStatusNames[s]; ok {
		return name
	}

	return fmt.Sprintf("UploadStatus(%d)", int(s))
}

func (s UploadStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *UploadStatus) UnmarshalText(text []byte) error {
	for status, name := range uploadStatusNames {
		if name == string(text) {
			*s = status
			return nil
		}
	}

	return fmt.Errorf("unknown upload status %q", string(text))
}

// LocaleState is the editable copy of one localization.
// OriginalText is the last known server text; Text is what the user sees.
type LocaleState struct {
	ID           string       `json:"id"`
	Locale       string       `json:"locale"`
	DisplayName  string       `json:"display_name"`
	OriginalText string       `json:"original_text"`
	Text         string       `json:"text"`
	Status       UploadStatus `json:"status"`
	Message      string       `json:"message,omitempty"` // failure message
}

func (l LocaleState) HasChanges() bool {
	return l.Text != l.OriginalText
}

// EditorState is the snapshot handed to the presentation layer.
type EditorState struct {
	AppID             string        `json:"app_id"`
	VersionID         string        `json:"version_id"`
	Version           string        `json:"version"`
	Editable          bool          `json:"editable"`
	PreviousVersionID string        `json:"previous_version_id,omitempty"`
	Locales           []LocaleState `json:"locales"`
}

// HasChanges is true when any locale has unsaved text.
func (e EditorState) HasChanges() bool {
	for _, l := range e.Locales {
		if l.HasChanges() {
			return true
		}
	}

	return false
}

func (e EditorState) clone() EditorState {
	out := e
	if e.Locales != nil {
		out.Locales = make([]LocaleState, len(e.Locales))
		copy(out.Locales, e.Locales)
	}

	return out
}

// UploadReport is the result of UploadAll.
type UploadReport struct {
	Uploaded []string          `json:"uploaded"`
	Failed   map[string]string `json:"failed,omitempty"` // locale to error message
}
