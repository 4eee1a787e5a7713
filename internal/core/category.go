package core

import "strings"

// Core business-unit categories. Any other non-empty tag is a user-defined
// custom category, accepted as-is for scheduling and synchronized to the
// external ledger later.
const (
	CategoryChemicals = "Chemicals"
	CategoryPharma    = "Pharma"
	CategoryMaterials = "Materials"

	// Uncategorized collects batches saved without a tag; it is a display
	// bucket only and is never written to the ledger.
	Uncategorized = "Uncategorized"
)

// Category is a resolved batch tag.
type Category struct {
	Tag  string `json:"tag"`
	Core bool   `json:"core"`
}

// CoreCategories returns the closed core set.
func CoreCategories() []string {
	return []string{CategoryChemicals, CategoryPharma, CategoryMaterials}
}

// IsCoreCategory reports whether tag belongs to the closed core set.
func IsCoreCategory(tag string) bool {
	switch tag {
	case CategoryChemicals, CategoryPharma, CategoryMaterials:
		return true
	}
	return false
}

// ResolveCategory classifies a raw tag. Empty input resolves to the
// Uncategorized display bucket.
func ResolveCategory(tag string) Category {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return Category{Tag: Uncategorized, Core: false}
	}
	return Category{Tag: tag, Core: IsCoreCategory(tag)}
}

// CustomTags returns the distinct non-empty, non-core tags used by the given
// logs, in first-seen order. These are the tags that must eventually appear
// in the external category ledger.
func CustomTags(logs []ResourceLog) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, l := range logs {
		for _, b := range l.Batches {
			tag := strings.TrimSpace(b.Category)
			if tag == "" || IsCoreCategory(tag) {
				continue
			}
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}
