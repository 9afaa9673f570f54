package rangestreams

import (
	"bytes"
	"context"
	"io"
)

// PruningLevel selects how the resolver treats a new interval that overlaps
// intervals already held in the store.
type PruningLevel int

const (
	// Replant reassigns overlapping bytes between the new and existing
	// entries wherever possible, minimizing both redundant network
	// fetches and discarded buffered bytes.
	Replant PruningLevel = 0
	// Burn fetches the new interval in full and, once that fetch has
	// succeeded, drops every entry it intersects outright.
	Burn PruningLevel = 1
	// Strict rejects any add that overlaps an existing entry.
	Strict PruningLevel = 2
)

func (p PruningLevel) String() string {
	switch p {
	case Replant:
		return "replant"
	case Burn:
		return "burn"
	case Strict:
		return "strict"
	default:
		return "unknown"
	}
}

// multiCloser closes every wrapped io.Closer in order, returning the first
// error encountered.
type multiCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiCloser) Close() error {
	var first error
	for _, c := range m.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// fetchAndInsert issues a fresh Fetcher call for iv and inserts the
// resulting RangeResponse into store under its external interval (which on
// insert equals iv itself, since head_offset and tail_mark both start at
// zero).
func fetchAndInsert(ctx context.Context, store *RangeStore, fetcher Fetcher, url string, iv Interval, name string) (*RangeResponse, Interval, error) {
	result, err := fetcher.Fetch(ctx, url, iv)
	if err != nil {
		return nil, Interval{}, err
	}
	resp := newRangeResponse(iv, result, fetcher, name)
	store.insertUnchecked(iv, resp)
	return resp, iv, nil
}

// reinsertOrBurn removes oldKey from store and, if resp's external interval
// is still non-empty, reinserts it under its new key; otherwise the
// degenerate entry is burned (closed and dropped), per §4.6's "degenerate
// result" rule. Called only from a resolver commit phase, once the new
// fetch this call depends on has already succeeded.
func reinsertOrBurn(store *RangeStore, oldKey Interval, resp *RangeResponse) {
	store.Remove(oldKey)
	newKey := resp.ExternalInterval()
	if newKey.IsEmpty() {
		resp.Close()
		return
	}
	store.insertUnchecked(newKey, resp)
}

// resolve applies policy to admit candidate n into store, mutating store as
// needed to restore disjointness, and returns the RangeResponse and key
// that should become the stream's active range. Per §5/§7, the store (and
// any entry it still owns) must read back exactly as before this call if
// the trailing Fetch for n's uncovered portion fails; no removal, close or
// insert on the shared store happens until that fetch has succeeded.
func resolve(ctx context.Context, store *RangeStore, url string, fetcher Fetcher, policy PruningLevel, n Interval, name string) (*RangeResponse, Interval, error) {
	intersecting := store.Intersecting(n)

	switch policy {
	case Strict:
		if len(intersecting) > 0 {
			return nil, Interval{}, ErrOverlapDisallowed
		}
		return fetchAndInsert(ctx, store, fetcher, url, n, name)

	case Burn:
		result, err := fetcher.Fetch(ctx, url, n)
		if err != nil {
			return nil, Interval{}, err
		}
		for _, e := range intersecting {
			store.Remove(e.key)
			e.resp.Close()
		}
		resp := newRangeResponse(n, result, fetcher, name)
		store.insertUnchecked(n, resp)
		return resp, n, nil

	case Replant:
		return replant(ctx, store, url, fetcher, n, name, intersecting)

	default:
		return fetchAndInsert(ctx, store, fetcher, url, n, name)
	}
}

// replantOutcome records, for one intersecting entry, the store-level
// action to commit once the trailing fetch succeeds.
type replantOutcome struct {
	entry  *storeEntry
	action string // "reinsert" or "close"
}

// replant implements the REPLANT policy branches of §4.6, processing each
// intersecting entry left-to-right and classifying it against the
// caller's original (unshortened) n throughout, since stored keys were
// mutually disjoint before n arrived.
//
// Per-entry field mutations (advanceHead, MarkTail) happen during this
// planning pass since they may require draining the network themselves,
// but every mutation is paired with a rollback closure, and no entry is
// removed from or reinserted into store until the trailing Fetch for the
// still-uncovered portion of n has succeeded. On any error — a drain
// failure while planning, or the trailing Fetch itself failing — every
// rollback runs and store is left exactly as it was found.
func replant(ctx context.Context, store *RangeStore, url string, fetcher Fetcher, n Interval, name string, intersecting []*storeEntry) (*RangeResponse, Interval, error) {
	var fetchPart = n // the portion of n still to be fetched over the network
	var headSplice []byte
	var outcomes []replantOutcome
	var rollbacks []func()

	rollbackAll := func() {
		for i := len(rollbacks) - 1; i >= 0; i-- {
			rollbacks[i]()
		}
	}

	for _, e := range intersecting {
		e := e // each rollback closure must capture its own entry
		// Classify against the entry's current external interval, not its
		// store key: reads advance headOffset without rekeying the entry.
		ext := e.resp.ExternalInterval()
		switch Classify(n, ext) {
		case Head:
			overlap := n.Stop - ext.Start
			prevHeadOffset := e.resp.headOffset
			spliced, err := e.resp.advanceHead(overlap)
			if err != nil {
				rollbackAll()
				return nil, Interval{}, err
			}
			rollbacks = append(rollbacks, func() { e.resp.headOffset = prevHeadOffset })
			fetchPart = Interval{Start: n.Start, Stop: ext.Start}
			headSplice = spliced
			outcomes = append(outcomes, replantOutcome{entry: e, action: "reinsert"})

		case Tail:
			overlap := ext.Stop - n.Start
			prevTailMark := e.resp.tailMark
			if err := e.resp.MarkTail(overlap); err != nil {
				rollbackAll()
				return nil, Interval{}, err
			}
			rollbacks = append(rollbacks, func() { e.resp.tailMark = prevTailMark })
			outcomes = append(outcomes, replantOutcome{entry: e, action: "reinsert"})

		case HeadToTail:
			outcomes = append(outcomes, replantOutcome{entry: e, action: "close"})

		case Subsumed:
			desiredTail := e.resp.RequestInterval().Stop - n.Start
			delta := desiredTail - e.resp.tailMark
			if delta > 0 {
				prevTailMark := e.resp.tailMark
				if err := e.resp.MarkTail(delta); err != nil {
					rollbackAll()
					return nil, Interval{}, err
				}
				rollbacks = append(rollbacks, func() { e.resp.tailMark = prevTailMark })
			}
			outcomes = append(outcomes, replantOutcome{entry: e, action: "reinsert"})

		case Disjoint:
			// e's key intersects n but its external interval does not: the
			// shared bytes were already consumed. Rekey e under its external
			// interval (burning it if that is now empty).
			outcomes = append(outcomes, replantOutcome{entry: e, action: "reinsert"})
		}
	}

	var result *FetchResult
	var err error
	if !fetchPart.IsEmpty() {
		result, err = fetcher.Fetch(ctx, url, fetchPart)
		if err != nil {
			rollbackAll()
			return nil, Interval{}, err
		}
	}

	for _, o := range outcomes {
		switch o.action {
		case "reinsert":
			reinsertOrBurn(store, o.entry.key, o.entry.resp)
		case "close":
			store.Remove(o.entry.key)
			o.entry.resp.Close()
		}
	}

	resp := buildSplicedResponse(n, result, headSplice, fetcher, name)
	store.insertUnchecked(n, resp)
	return resp, n, nil
}

// buildSplicedResponse assembles the RangeResponse for a (possibly)
// shortened-and-spliced HEAD-overlap fetch: bytes already drained from the
// overlapping entry (tail) are appended to the network body (head) so the
// combined stream yields n's bytes in address order without a redundant
// fetch for the spliced portion.
func buildSplicedResponse(n Interval, result *FetchResult, splice []byte, fetcher Fetcher, name string) *RangeResponse {
	if result == nil {
		body := io.NopCloser(bytes.NewReader(splice))
		return newRangeResponse(n, &FetchResult{Body: body}, fetcher, name)
	}
	if len(splice) == 0 {
		return newRangeResponse(n, result, fetcher, name)
	}
	combined := &multiCloser{
		Reader:  io.MultiReader(result.Body, bytes.NewReader(splice)),
		closers: []io.Closer{result.Body},
	}
	return newRangeResponse(n, &FetchResult{Status: result.Status, Headers: result.Headers, Body: combined}, fetcher, name)
}
