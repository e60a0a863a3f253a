package entity

import (
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// ReleaseNote holds the localized notes of one app store version.
// LocalizedNotes order is kept as received and never re-sorted.
type ReleaseNote struct {
	ID             string                 `json:"id"` // the version id
	Version        string                 `json:"version"`
	Platform       Platform               `json:"platform,omitempty"`
	Status         AppStatus              `json:"status"`
	ReleaseDate    *time.Time             `json:"release_date,omitempty"`
	LocalizedNotes []LocalizedReleaseNote `json:"localized_notes"`
}

// ReleaseNotePlatform is used with FilterByPlatform.
func ReleaseNotePlatform(n ReleaseNote) Platform {
	return n.Platform
}

// Locale returns the localization for locale, if present.
func (n ReleaseNote) Locale(locale string) (LocalizedReleaseNote, bool) {
	for _, l := range n.LocalizedNotes {
		if l.Locale == locale {
			return l, true
		}
	}

	return LocalizedReleaseNote{}, false
}

// LocalizedReleaseNote is the server copy of one locale's text.
type LocalizedReleaseNote struct {
	ID       string `json:"id"`
	Locale   string `json:"locale"`
	Notes    string `json:"notes"`
	WhatsNew string `json:"whats_new,omitempty"`
}

// DisplayName is the English name of the locale's language, e.g. "French" for "fr-FR".
// The raw locale code is returned when it cannot be parsed.
func (l LocalizedReleaseNote) DisplayName() string {
	return LocaleDisplayName(l.Locale)
}

func LocaleDisplayName(locale string) string {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return locale
	}

	base, _ := tag.Base()
	name := display.English.Languages().Name(base)
	if name == "" {
		return locale
	}

	return name
}
