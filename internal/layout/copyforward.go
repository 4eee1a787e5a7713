package layout

import (
	"sort"

	"reactorops/internal/core"
)

// NearestPrior returns the latest stored month strictly before target.
// Month keys compare chronologically as plain strings, so this is a search
// over the sorted key list.
func NearestPrior(months []core.Month, target core.Month) (core.Month, bool) {
	sorted := make([]core.Month, len(months))
	copy(sorted, months)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var found core.Month
	ok := false
	for _, m := range sorted {
		if m >= target {
			break
		}
		found = m
		ok = true
	}
	return found, ok
}
