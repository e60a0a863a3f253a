package entity

import (
	"sort"
	"strings"
)

// Platform is the vendor platform identifier, stored as its wire value.
type Platform string

const (
	PlatformIOS      Platform = "IOS"
	PlatformMacOS    Platform = "MAC_OS"
	PlatformTvOS     Platform = "TV_OS"
	PlatformVisionOS Platform = "VISION_OS"
	PlatformWatchOS  Platform = "WATCH_OS"
)

// platformPrecedence is the display order. It is never alphabetical.
var platformPrecedence = []Platform{
	PlatformIOS,
	PlatformMacOS,
	PlatformTvOS,
	PlatformVisionOS,
	PlatformWatchOS,
}

var platformNames = map[Platform]string{
	PlatformIOS:      "iOS",
	PlatformMacOS:    "macOS",
	PlatformTvOS:     "tvOS",
	PlatformVisionOS: "visionOS",
	PlatformWatchOS:  "watchOS",
}

// Platforms returns all known platforms in display order.
func Platforms() []Platform {
	out := make([]Platform, len(platformPrecedence))
	copy(out, platformPrecedence)
	return out
}

// ParsePlatform accepts the wire value or the display name, case-insensitive.
func ParsePlatform(s string) (Platform, bool) {
	s = strings.TrimSpace(s)
	for _, p := range platformPrecedence {
		if strings.EqualFold(string(p), s) || strings.EqualFold(platformNames[p], s) {
			return p, true
		}
	}

	return "", false
}

// DisplayName is the human name, e.g. "macOS". Unknown platforms return the raw value.
func (p Platform) DisplayName() string {
	if name, ok := platformNames[p]; ok {
		return name
	}

	return string(p)
}

// Order is the position in the display precedence. Unknown platforms sort last.
func (p Platform) Order() int {
	for i, known := range platformPrecedence {
		if known == p {
			return i
		}
	}

	return len(platformPrecedence)
}

// SortedForDisplay removes duplicates and orders platforms by display precedence.
// Platforms with the same precedence (unknown values) keep their input order.
func SortedForDisplay(platforms []Platform) []Platform {
	seen := make(map[Platform]struct{}, len(platforms))
	unique := make([]Platform, 0, len(platforms))
	for _, p := range platforms {
		if _, ok := seen[p]; ok {
			continue
		}

		seen[p] = struct{}{}
		unique = append(unique, p)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].Order() < unique[j].Order()
	})

	return unique
}

// FilterByPlatform keeps the items whose platform matches.
// An empty platform, or a filter that matches nothing, returns the input unchanged
// so a caller never ends up with an empty list just because of the filter.
func FilterByPlatform[T any](items []T, platform Platform, platformOf func(T) Platform) []T {
	if platform == "" {
		return items
	}

	filtered := make([]T, 0, len(items))
	for _, item := range items {
		if platformOf(item) == platform {
			filtered = append(filtered, item)
		}
	}

	if len(filtered) == 0 {
		return items
	}

	return filtered
}
