package entity

import (
	"sort"
	"time"
)

// AppRecord is one display row: a single app on a single platform.
// An app that ships several platform binaries produces one AppRecord per platform.
type AppRecord struct {
	ID           string     `json:"id"` // row id, app id joined with the platform
	AppID        string     `json:"app_id"`
	Name         string     `json:"name"`
	BundleID     string     `json:"bundle_id"`
	Platforms    []Platform `json:"platforms"`
	Status       AppStatus  `json:"status"`
	Version      string     `json:"version,omitempty"`
	LastModified *time.Time `json:"last_modified,omitempty"`
	IconURL      string     `json:"icon_url,omitempty"`
}

// RowID builds the synthetic row id of an (app, platform) pair.
func RowID(appID string, platform Platform) string {
	return appID + "-" + string(platform)
}

// Platform returns the first platform in display order, or empty when none is set.
func (a AppRecord) Platform() Platform {
	sorted := SortedForDisplay(a.Platforms)
	if len(sorted) == 0 {
		return ""
	}

	return sorted[0]
}

// SortRows orders rows by name using plain byte comparison (case-sensitive).
// Equal names are ordered by platform precedence, then app id.
func SortRows(rows []AppRecord) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}

		if a.Platform().Order() != b.Platform().Order() {
			return a.Platform().Order() < b.Platform().Order()
		}

		return a.AppID < b.AppID
	})
}

// Version is one app store version as listed for an app.
type Version struct {
	ID            string     `json:"id"`
	VersionString string     `json:"version_string"`
	Platform      Platform   `json:"platform"`
	Status        AppStatus  `json:"status"`
	CreatedDate   *time.Time `json:"created_date,omitempty"`
}

// VersionPlatform is used with FilterByPlatform.
func VersionPlatform(v Version) Platform {
	return v.Platform
}

// AppDetail is the detail view of one app.
type AppDetail struct {
	AppRecord

	SKU             string        `json:"sku,omitempty"`
	PrimaryLanguage string        `json:"primary_language,omitempty"`
	ReleaseNotes    []ReleaseNote `json:"release_notes"`
}
