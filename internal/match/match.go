// Package match decides whether an item is relevant to a subscription
// profile. The predicate is pure so it can be replayed against historical
// items whenever a profile's keyword or category set changes.
package match

import (
	"strings"

	"github.com/elonfeng/paperdigest/internal/store"
)

// Matches reports whether item is relevant to profile: either the item's
// keyword tags intersect the profile's source categories, or any profile
// keyword occurs as a case-insensitive substring of the item's title,
// abstract, or keyword set. A profile with no categories and no keywords
// matches nothing.
func Matches(item *store.Item, profile *store.Profile) bool {
	if len(profile.Categories) == 0 && len(profile.Keywords) == 0 {
		return false
	}

	for _, cat := range profile.Categories {
		for _, tag := range item.Keywords {
			if strings.EqualFold(strings.TrimSpace(cat), strings.TrimSpace(tag)) {
				return true
			}
		}
	}

	if len(profile.Keywords) == 0 {
		return false
	}

	// Each field is searched separately so a multi-word keyword cannot
	// match across field or tag boundaries.
	title := strings.ToLower(item.Title)
	abstract := strings.ToLower(item.Abstract)
	for _, kw := range profile.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(title, kw) || strings.Contains(abstract, kw) {
			return true
		}
		for _, tag := range item.Keywords {
			if strings.Contains(strings.ToLower(tag), kw) {
				return true
			}
		}
	}
	return false
}

// AnyProfile reports whether item matches at least one of the profiles.
func AnyProfile(item *store.Item, profiles []store.Profile) bool {
	for i := range profiles {
		if Matches(item, &profiles[i]) {
			return true
		}
	}
	return false
}

// FilterByNames returns the subset of profiles whose name is in names,
// preserving order.
func FilterByNames(profiles []store.Profile, names []string) []store.Profile {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	var out []store.Profile
	for _, p := range profiles {
		if wanted[p.Name] {
			out = append(out, p)
		}
	}
	return out
}
