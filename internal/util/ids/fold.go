// Package ids normalises package ids for case-insensitive comparison.
package ids

import "golang.org/x/text/cases"

// Key returns the Unicode case-folded form of id. Two ids name the same
// package exactly when their keys are equal.
func Key(id string) string {
	// A Caser is stateful, so each call gets its own.
	return cases.Fold().String(id)
}
