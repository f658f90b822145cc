// Package selector picks the fixes of a round report worth applying.
package selector

import "github.com/papapumpkin/nullfix/internal/finding"

// Threshold is the exclusive upper bound on the effect score of a fix that
// gets applied. A score below it means the fix does not increase the number
// of reported errors.
const Threshold = 1

// Select returns, in report order, the findings whose effect is below
// Threshold. The input is not modified.
func Select(report []finding.Finding) []finding.Finding {
	out := make([]finding.Finding, 0, len(report))
	for _, f := range report {
		if Effective(f) {
			out = append(out, f)
		}
	}
	return out
}

// Effective reports whether f would be applied this round.
func Effective(f finding.Finding) bool {
	return f.Effect < Threshold
}
