package iconrepo

import (
	"context"
)

// DefaultLookupURL is the public lookup endpoint, queried with ?bundleId=.
const DefaultLookupURL = "https://itunes.apple.com/lookup"

// artworkKeys are tried in order, highest resolution first.
var artworkKeys = []string{"artworkUrl512", "artworkUrl100", "artworkUrl60", "artworkUrl30"}

// Icon is the resolved artwork of one bundle id.
type Icon struct {
	BundleID string `json:"bundle_id"`
	URL      string `json:"url"`
	Name     string `json:"name,omitempty"`
}

// Repo resolves icons. Icons are cosmetic: failures are logged and reported as a miss, never as an error.
type Repo interface {
	FetchIcon(ctx context.Context, bundleID string) (icon Icon, ok bool)

	// FetchIcons returns only the bundle ids that resolved.
	FetchIcons(ctx context.Context, bundleIDs []string) map[string]Icon
}
