package rangestreams

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRangeStoreInsertAndFindContaining(t *testing.T) {
	s := NewRangeStore()
	assert.NoError(t, s.Insert(NewInterval(0, 5), &RangeResponse{}))
	assert.NoError(t, s.Insert(NewInterval(10, 20), &RangeResponse{}))

	_, ok := s.FindContaining(3)
	assert.True(t, ok, "expected to find entry containing 3")

	_, ok = s.FindContaining(7)
	assert.False(t, ok, "expected no entry containing 7")

	e, ok := s.FindContaining(15)
	assert.True(t, ok)
	assert.Equal(t, NewInterval(10, 20), e.key)
}

func TestRangeStoreInsertRejectsOverlap(t *testing.T) {
	s := NewRangeStore()
	assert.NoError(t, s.Insert(NewInterval(0, 5), &RangeResponse{}))
	assert.Error(t, s.Insert(NewInterval(4, 8), &RangeResponse{}))
}

func TestRangeStoreRemove(t *testing.T) {
	s := NewRangeStore()
	resp := &RangeResponse{}
	assert.NoError(t, s.Insert(NewInterval(0, 5), resp))

	got, ok := s.Remove(NewInterval(0, 5))
	assert.True(t, ok)
	assert.Same(t, resp, got)
	assert.Equal(t, 0, s.Len())
}

func TestRangeStoreIntersecting(t *testing.T) {
	s := NewRangeStore()
	s.Insert(NewInterval(0, 5), &RangeResponse{})
	s.Insert(NewInterval(10, 20), &RangeResponse{})
	s.Insert(NewInterval(30, 40), &RangeResponse{})

	got := s.Intersecting(NewInterval(4, 25))
	if assert.Len(t, got, 2) {
		assert.Equal(t, NewInterval(0, 5), got[0].key)
		assert.Equal(t, NewInterval(10, 20), got[1].key)
	}
}

func TestRangeStoreFirstLastKey(t *testing.T) {
	s := NewRangeStore()
	_, ok := s.FirstKey()
	assert.False(t, ok, "expected no first key on empty store")

	s.Insert(NewInterval(10, 20), &RangeResponse{})
	s.Insert(NewInterval(0, 5), &RangeResponse{})

	first, ok := s.FirstKey()
	assert.True(t, ok)
	assert.Equal(t, NewInterval(0, 5), first)

	last, ok := s.LastKey()
	assert.True(t, ok)
	assert.Equal(t, NewInterval(10, 20), last)
}

func TestRangeStoreEntriesAscending(t *testing.T) {
	s := NewRangeStore()
	s.Insert(NewInterval(10, 20), &RangeResponse{})
	s.Insert(NewInterval(0, 5), &RangeResponse{})
	s.Insert(NewInterval(30, 40), &RangeResponse{})

	entries := s.Entries()
	want := []Interval{NewInterval(0, 5), NewInterval(10, 20), NewInterval(30, 40)}
	if assert.Len(t, entries, len(want)) {
		for i, e := range entries {
			assert.Equal(t, want[i], e.key)
		}
	}
}
