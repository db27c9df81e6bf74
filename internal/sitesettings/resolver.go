package sitesettings

import "github.com/JakeFAU/site-shields/internal/hostpattern"

// Resolution is the outcome of resolving a location against a Store.
type Resolution struct {
	// Settings is the merged record; nil when nothing applied.
	Settings Record
	// Matched lists the patterns that contributed, most specific first.
	Matched []string
}

// Found reports whether any override applies to the location.
func (r Resolution) Found() bool {
	return len(r.Settings) > 0
}

// Resolve merges every stored record whose pattern applies to location. For each
// key the most specific pattern wins; broader patterns fill the gaps. It returns
// false when no pattern matched or the merged record is empty, in which case the
// caller should use global defaults only.
func Resolve(store Store, location string) (Record, bool) {
	res := ResolveDetailed(store, location)
	return res.Settings, res.Found()
}

// ResolveDetailed is Resolve that also reports which patterns matched.
func ResolveDetailed(store Store, location string) Resolution {
	if store.Len() == 0 {
		return Resolution{}
	}
	var matched []string
	var records []Record
	for pattern := range hostpattern.Candidates(location) {
		if rec, ok := store.lookup(pattern); ok {
			matched = append(matched, pattern)
			records = append(records, rec)
		}
	}
	if len(records) == 0 {
		return Resolution{}
	}

	// Fold from the least specific record up so more specific keys overwrite.
	merged := make(Record)
	for i := len(records) - 1; i >= 0; i-- {
		for k, v := range records[i] {
			merged[k] = v
		}
	}
	if len(merged) == 0 {
		return Resolution{Matched: matched}
	}
	return Resolution{Settings: merged, Matched: matched}
}
