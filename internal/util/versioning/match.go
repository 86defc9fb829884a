// Package versioning matches free-form package version strings.
package versioning

import (
	"strings"

	"github.com/hashicorp/go-version"
)

// Equal reports whether two version strings name the same version. When both
// parse as semantic versions they are compared numerically, so "1.0" equals
// "1.0.0"; otherwise they are compared as strings. Case is ignored either way.
func Equal(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	va, errA := version.NewVersion(a)
	vb, errB := version.NewVersion(b)
	if errA == nil && errB == nil {
		return va.Equal(vb)
	}
	return a == b
}

// Find returns the index of the first entry in versions equal to want, or -1.
func Find(versions []string, want string) int {
	for i, v := range versions {
		if Equal(v, want) {
			return i
		}
	}
	return -1
}
