package updatesvc

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMountFailed      = errors.New("failed to mount installer image")
	ErrVolumeNotFound   = errors.New("mounted volume not found")
	ErrAppNotFound      = errors.New("application not found in installer image")
	ErrCopyFailed       = errors.New("failed to copy application")
	ErrNoRelease        = errors.New("no release information available")
	ErrNoInstallerAsset = errors.New("no installer asset found in release")
	ErrBusy             = errors.New("an update operation is already running")
)

// HTTPError is a non 200 response from the release feed or the asset download.
type HTTPError struct {
	Code int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("release server error (HTTP %d)", e.Code)
}

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseChecking
	PhaseUpdateAvailable
	PhaseUpToDate
	PhaseCheckFailed
	PhaseDownloading
	PhaseInstalling
	PhaseFailed
	PhaseRestarting
)

var phaseNames = map[Phase]string{
	PhaseIdle:            "idle",
	PhaseChecking:        "checking",
	PhaseUpdateAvailable: "update_available",
	PhaseUpToDate:        "up_to_date",
	PhaseCheckFailed:     "check_failed",
	PhaseDownloading:     "downloading",
	PhaseInstalling:      "installing",
	PhaseFailed:          "failed",
	PhaseRestarting:      "restarting",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}

	return fmt.Sprintf("Phase(%d)", int(p))
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	for phase, name := range phaseNames {
		if name == string(text) {
			*p = phase
			return nil
		}
	}

	return fmt.Errorf("unknown update phase %q", string(text))
}

// busy phases reject a new check or install.
func (p Phase) busy() bool {
	return p == PhaseChecking || p == PhaseDownloading || p == PhaseInstalling || p == PhaseRestarting
}

type Asset struct {
	Name        string `json:"name"`
	DownloadURL string `json:"browser_download_url"`
	Size        int64  `json:"size"`
}

// Release is the subset of the feed's latest release we use.
type Release struct {
	TagName string  `json:"tag_name"`
	Name    string  `json:"name"`
	Body    string  `json:"body"`
	Assets  []Asset `json:"assets"`
}

// InstallerAsset returns the first asset whose name ends with ext, case-insensitive.
func (r Release) InstallerAsset(ext string) (Asset, bool) {
	ext = strings.ToLower(ext)
	for _, a := range r.Assets {
		if a.DownloadURL != "" && strings.HasSuffix(strings.ToLower(a.Name), ext) {
			return a, true
		}
	}

	return Asset{}, false
}

type State struct {
	Phase           Phase    `json:"phase"`
	CurrentVersion  string   `json:"current_version"`
	Latest          *Release `json:"latest,omitempty"`
	UpdateAvailable bool     `json:"update_available"`
	Ignored         bool     `json:"ignored"` // latest tag equals the ignored version
	Progress        float64  `json:"progress"`
	Error           string   `json:"error,omitempty"`
}

func (s State) clone() State {
	out := s
	if s.Latest != nil {
		latest := *s.Latest
		latest.Assets = append([]Asset(nil), s.Latest.Assets...)
		out.Latest = &latest
	}

	return out
}
