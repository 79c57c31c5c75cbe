// Package diff computes which leak records are new relative to a baseline.
package diff

import (
	"github.com/foreseon/IntelXScan/internal/model"
	"github.com/foreseon/IntelXScan/internal/parser"
)

// Diff returns the records of latest that are absent from baseline, in the
// order they appear in latest, and the baseline with those records merged in
// and re-sorted by AddedAt. Records are compared by value.
//
// Membership is tested against the baseline only, so a record repeated in
// latest is reported once per occurrence.
func Diff(latest, baseline []model.LeakRecord) (newOnly, merged []model.LeakRecord) {
	known := make(map[model.LeakRecord]struct{}, len(baseline))
	for _, rec := range baseline {
		known[rec] = struct{}{}
	}
	for _, rec := range latest {
		if _, ok := known[rec]; !ok {
			newOnly = append(newOnly, rec)
		}
	}
	if len(newOnly) == 0 {
		return nil, baseline
	}
	merged = make([]model.LeakRecord, 0, len(baseline)+len(newOnly))
	merged = append(merged, baseline...)
	merged = append(merged, newOnly...)
	parser.SortByAdded(merged)
	return newOnly, merged
}
