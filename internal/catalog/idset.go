package catalog

import "slices"

// IDSet is an immutable ordered set of non-empty ids. The zero value is the
// empty set. Mutators return a new set.
type IDSet struct {
	ids []string
}

// NewIDSet builds a set keeping the first occurrence of every id.
func NewIDSet(ids ...string) IDSet {
	var s IDSet
	for _, id := range ids {
		if id == "" || slices.Contains(s.ids, id) {
			continue
		}
		s.ids = append(s.ids, id)
	}
	return s
}

// Has reports membership.
func (s IDSet) Has(id string) bool {
	return slices.Contains(s.ids, id)
}

// Add returns s with id appended. Adding a member returns s unchanged.
func (s IDSet) Add(id string) IDSet {
	if id == "" || s.Has(id) {
		return s
	}
	ids := make([]string, len(s.ids), len(s.ids)+1)
	copy(ids, s.ids)
	return IDSet{ids: append(ids, id)}
}

// Remove returns s without id.
func (s IDSet) Remove(id string) IDSet {
	i := slices.Index(s.ids, id)
	if i < 0 {
		return s
	}
	return IDSet{ids: slices.Delete(slices.Clone(s.ids), i, i+1)}
}

// Len returns the number of ids.
func (s IDSet) Len() int { return len(s.ids) }

// Slice returns a copy of the ids in insertion order. The empty set yields
// an empty, non-nil slice.
func (s IDSet) Slice() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Equal reports whether both sets hold the same ids in the same order.
func (s IDSet) Equal(o IDSet) bool {
	return slices.Equal(s.ids, o.ids)
}
