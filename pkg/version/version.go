// Package version compares dot separated numeric version strings component by component,
// so "1.10" is newer than "1.9" and "1.2" equals "1.2.0".
package version

import (
	"strconv"
	"strings"
)

// Parse splits version into integer components. A leading "v" or "V" is ignored,
// and each component only keeps its leading digits ("3-beta" is 3, "rc" is 0).
func Parse(v string) []int {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(strings.TrimPrefix(v, "v"), "V")
	if v == "" {
		return []int{}
	}

	parts := strings.Split(v, ".")
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		end := 0
		for end < len(part) && part[end] >= '0' && part[end] <= '9' {
			end++
		}

		n, err := strconv.Atoi(part[:end])
		if err != nil {
			n = 0
		}

		out = append(out, n)
	}

	return out
}

// Compare returns -1 when a < b, 0 when equal and 1 when a > b.
// Missing trailing components count as zero.
func Compare(a, b string) int {
	pa, pb := Parse(a), Parse(b)

	size := len(pa)
	if len(pb) > size {
		size = len(pb)
	}

	for i := 0; i < size; i++ {
		var x, y int
		if i < len(pa) {
			x = pa[i]
		}

		if i < len(pb) {
			y = pb[i]
		}

		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}

	return 0
}

// IsNewer reports whether latest is strictly greater than current.
func IsNewer(latest, current string) bool {
	return Compare(latest, current) > 0
}
