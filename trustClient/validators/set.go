package validators

import (
	"slices"
	"sort"
)

// Set is a list of records sorted by key with at most one record per key.
// A Set handed out by this package must not be modified.
type Set []Record

// Normalize copies records, sorts them by key and collapses duplicate keys.
// For a duplicated key the label seen last in the input wins.
func Normalize(records []Record) Set {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PublicKey.Compare(sorted[j].PublicKey) < 0
	})

	out := sorted[:0]
	for _, r := range sorted {
		if n := len(out); n > 0 && out[n-1].PublicKey.Equal(r.PublicKey) {
			out[n-1] = r
			continue
		}
		out = append(out, r)
	}
	return Set(out)
}

// Union merges several sets into one. When a key appears in more than one set,
// the record from the earliest set wins.
func Union(sets ...Set) Set {
	total := 0
	for _, s := range sets {
		total += len(s)
	}
	all := make([]Record, 0, total)
	for _, s := range sets {
		all = append(all, s...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].PublicKey.Compare(all[j].PublicKey) < 0
	})

	out := all[:0]
	for _, r := range all {
		if n := len(out); n > 0 && out[n-1].PublicKey.Equal(r.PublicKey) {
			continue
		}
		out = append(out, r)
	}
	return Set(out)
}

func (s Set) Len() int { return len(s) }

// Find returns the record for key using binary search.
func (s Set) Find(key PublicKey) (Record, bool) {
	i, found := slices.BinarySearchFunc(s, key, func(r Record, k PublicKey) int {
		return r.PublicKey.Compare(k)
	})
	if !found {
		return Record{}, false
	}
	return s[i], true
}

func (s Set) Contains(key PublicKey) bool {
	_, ok := s.Find(key)
	return ok
}

// Keys returns the keys of the set in order.
func (s Set) Keys() []PublicKey {
	keys := make([]PublicKey, len(s))
	for i, r := range s {
		keys[i] = r.PublicKey
	}
	return keys
}

// Clone returns a copy that callers may modify.
func (s Set) Clone() Set {
	return slices.Clone(s)
}

func (s Set) sorted() bool {
	for i := 1; i < len(s); i++ {
		if s[i-1].PublicKey.Compare(s[i].PublicKey) >= 0 {
			return false
		}
	}
	return true
}
