package rangestreams

import (
	"fmt"

	"github.com/google/btree"
)

// storeEntry is a single disjoint external interval and the RangeResponse
// that currently owns it, ordered within the RangeStore by the interval's
// start position.
type storeEntry struct {
	key   Interval
	resp  *RangeResponse
	order uint64 // monotonically increasing insertion counter, for "most recent" lookups
}

func lessEntry(a, b *storeEntry) bool {
	return a.key.Start < b.key.Start
}

// RangeStore is an ordered map of disjoint external intervals to
// RangeResponses, backed by a B-tree keyed on interval start.
// Keys are mutually disjoint at rest; the overlap resolver (resolver.go) is
// the only code permitted to pass through a transiently overlapping state,
// and it must restore disjointness before returning.
type RangeStore struct {
	tree    *btree.BTreeG[*storeEntry]
	counter uint64
}

// NewRangeStore builds an empty RangeStore.
func NewRangeStore() *RangeStore {
	return &RangeStore{tree: btree.NewG(32, lessEntry)}
}

// Len returns the number of stored entries.
func (s *RangeStore) Len() int {
	return s.tree.Len()
}

// Insert adds resp under key, which must be disjoint from every interval
// already stored.
func (s *RangeStore) Insert(key Interval, resp *RangeResponse) error {
	for _, e := range s.Intersecting(key) {
		if e.key.Intersects(key) {
			return fmt.Errorf("rangestreams: cannot insert %s: overlaps existing %s", key, e.key)
		}
	}
	s.counter++
	s.tree.ReplaceOrInsert(&storeEntry{key: key, resp: resp, order: s.counter})
	return nil
}

// insertUnchecked is used internally by the resolver, which may briefly
// need the store in a state the public Insert's disjointness check would
// reject (e.g. inserting N before an about-to-be-removed E has been
// removed). Callers must restore disjointness before yielding control back
// to RangeStream.Add.
func (s *RangeStore) insertUnchecked(key Interval, resp *RangeResponse) {
	s.counter++
	s.tree.ReplaceOrInsert(&storeEntry{key: key, resp: resp, order: s.counter})
}

// Remove deletes the entry stored under key, if any.
func (s *RangeStore) Remove(key Interval) (*RangeResponse, bool) {
	e, ok := s.tree.Delete(&storeEntry{key: key})
	if !ok {
		return nil, false
	}
	return e.resp, true
}

// FindContaining returns the entry whose external interval contains pos, if
// any.
func (s *RangeStore) FindContaining(pos int64) (*storeEntry, bool) {
	var found *storeEntry
	s.tree.DescendLessOrEqual(&storeEntry{key: Interval{Start: pos}}, func(e *storeEntry) bool {
		found = e
		return false // stop after the first (largest Start <= pos)
	})
	if found != nil && found.key.Contains(pos) {
		return found, true
	}
	return nil, false
}

// Intersecting returns, in ascending order, every entry whose external
// interval intersects query.
func (s *RangeStore) Intersecting(query Interval) []*storeEntry {
	var out []*storeEntry
	// Entries starting before query.Start might still intersect it (if
	// their own stop extends into query), so start from whichever entry
	// contains or precedes query.Start.
	start := query.Start
	if e, ok := s.FindContaining(query.Start); ok {
		start = e.key.Start
	}
	s.tree.AscendGreaterOrEqual(&storeEntry{key: Interval{Start: start}}, func(e *storeEntry) bool {
		if e.key.Start >= query.Stop {
			return false
		}
		if e.key.Intersects(query) {
			out = append(out, e)
		}
		return true
	})
	return out
}

// Ascend calls fn for every entry in ascending key order, stopping early if
// fn returns false.
func (s *RangeStore) Ascend(fn func(e *storeEntry) bool) {
	s.tree.Ascend(func(e *storeEntry) bool {
		return fn(e)
	})
}

// Entries returns every entry in ascending key order.
func (s *RangeStore) Entries() []*storeEntry {
	out := make([]*storeEntry, 0, s.tree.Len())
	s.Ascend(func(e *storeEntry) bool {
		out = append(out, e)
		return true
	})
	return out
}

// FirstKey returns the lowest-start interval in the store.
func (s *RangeStore) FirstKey() (Interval, bool) {
	e, ok := s.tree.Min()
	if !ok {
		return Interval{}, false
	}
	return e.key, true
}

// LastKey returns the highest-start interval in the store.
func (s *RangeStore) LastKey() (Interval, bool) {
	e, ok := s.tree.Max()
	if !ok {
		return Interval{}, false
	}
	return e.key, true
}

// MostRecent returns the entry with the highest insertion order, or false
// if the store is empty.
func (s *RangeStore) MostRecent() (*storeEntry, bool) {
	var best *storeEntry
	s.Ascend(func(e *storeEntry) bool {
		if best == nil || e.order > best.order {
			best = e
		}
		return true
	})
	if best == nil {
		return nil, false
	}
	return best, true
}
