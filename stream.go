package rangestreams

import (
	"context"
	"fmt"
)

// RangeStream presents a remote byte-addressable HTTP resource as a single
// logical, file-like object: Add registers an interval of interest, Read
// and Seek operate on the most recently added (active) range, and Close
// releases every live response.
type RangeStream struct {
	url     string
	fetcher Fetcher
	policy  PruningLevel
	logger  logAdapter

	ctx context.Context

	store      *RangeStore
	activeKey  Interval
	hasActive  bool
	totalBytes int64
	totalKnown bool

	singleRequest bool
	singleBody    *RangeResponse
	windowStore   *RangeStore
}

// AddOption customizes a single Add call.
type AddOption func(*addOptions)

type addOptions struct {
	name string
}

// WithRangeName attaches a caller-chosen name to the RangeResponse created
// by this Add call, surfaced in its String().
func WithRangeName(name string) AddOption {
	return func(o *addOptions) { o.name = name }
}

// StreamOption customizes the construction of a RangeStream.
type StreamOption func(*RangeStream)

// WithPruningLevel sets the overlap resolution policy. Defaults to Replant.
func WithPruningLevel(p PruningLevel) StreamOption {
	return func(s *RangeStream) { s.policy = p }
}

// WithFetcher overrides the default HTTPFetcher.
func WithFetcher(f Fetcher) StreamOption {
	return func(s *RangeStream) { s.fetcher = f }
}

// WithLogger overrides the package default logger for this stream only.
func WithLogger(l logAdapter) StreamOption {
	return func(s *RangeStream) { s.logger = l }
}

// WithSingleRequest puts the stream into monostream mode: the first Add
// issues one streaming GET for the whole resource, and every subsequent Add
// is served as a read-only window onto that single body rather than a new
// Range GET. Best suited to codecs that read mostly linearly; codecs that
// jump to the tail first (e.g. ZIP) should leave this off.
func WithSingleRequest(enabled bool) StreamOption {
	return func(s *RangeStream) { s.singleRequest = enabled }
}

// New constructs a RangeStream bound to url and issues the initial fetch
// for initial (use Interval{} for a zero-length length-probe).
func New(ctx context.Context, url string, initial Interval, opts ...StreamOption) (*RangeStream, error) {
	s := &RangeStream{
		url:         url,
		fetcher:     NewHTTPFetcher(),
		policy:      Replant,
		logger:      defaultLogger,
		ctx:         ctx,
		store:       NewRangeStore(),
		windowStore: NewRangeStore(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if initial.IsEmpty() {
		if err := s.probeLength(); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err := s.Add(initial); err != nil {
		return nil, err
	}
	return s, nil
}

// probeLength learns total_length without registering any active range,
// preferring a HeadFetcher when the fetcher supports one.
func (s *RangeStream) probeLength() error {
	if hf, ok := s.fetcher.(HeadFetcher); ok {
		result, err := hf.Head(s.ctx, s.url)
		if err != nil {
			return err
		}
		if cl := result.Headers.Get("Content-Length"); cl != "" {
			var total int64
			if _, err := fmt.Sscanf(cl, "%d", &total); err == nil {
				s.totalBytes, s.totalKnown = total, true
			}
		}
		if result.Body != nil {
			result.Body.Close()
		}
		if s.totalKnown {
			return nil
		}
	}
	result, err := s.fetcher.Fetch(s.ctx, s.url, Interval{})
	if err != nil {
		return err
	}
	defer result.Body.Close()
	s.observeContentRange(result.Headers)
	return nil
}

func (s *RangeStream) observeContentRange(h interface{ Get(string) string }) {
	if s.totalKnown {
		return
	}
	cr := h.Get("Content-Range")
	if cr == "" {
		return
	}
	if parsed, err := ParseContentRange(cr); err == nil {
		s.totalBytes, s.totalKnown = parsed.Total, true
	}
}

// Add resolves end-relative coordinates in [start,stop), validates the
// result, runs the overlap resolver, and makes the resulting entry active.
func (s *RangeStream) Add(raw Interval, opts ...AddOption) error {
	var o addOptions
	for _, opt := range opts {
		opt(&o)
	}

	stop := raw.Stop
	if raw.Start < 0 && stop == 0 {
		// A negative start paired with a zero stop means "through the end
		// of the resource", e.g. Add(NewInterval(-22, 0)) for the final 22
		// bytes; NewInterval has no way to spell "unbounded" otherwise.
		stop = s.totalBytes
	}
	iv, err := ResolveEndRelative(raw.Start, stop, s.totalKnown, s.totalBytes)
	if err != nil {
		return err
	}
	if err := iv.Validate(s.totalKnown, s.totalBytes); err != nil {
		return err
	}

	if s.singleRequest {
		return s.addWindow(iv, o.name)
	}

	resp, key, err := resolve(s.ctx, s.store, s.url, s.fetcher, s.policy, iv, o.name)
	if err != nil {
		s.logger.Errorw("add failed", "url", s.url, "range", iv.String(), "policy", s.policy.String(), "error", err)
		return err
	}
	s.observeContentRange(resp.headers())
	s.activeKey, s.hasActive = key, true
	s.logger.Debugw("add resolved", "url", s.url, "range", iv.String(), "policy", s.policy.String(), "active", key.String())
	return nil
}

// addWindow services an Add call in monostream mode: the stream's single
// body is seeked to iv's start and a read-only window entry is registered
// in windowStore so Read/Seek/Tell can bind to it as usual. The seek uses
// seekWindow rather than Seek, so re-adding a window behind the body's
// current head offset (e.g. re-reading an earlier header after scanning
// past it) replays from the body's retained buffer instead of failing.
func (s *RangeStream) addWindow(iv Interval, name string) error {
	if s.singleBody == nil {
		if !s.totalKnown {
			if err := s.probeLength(); err != nil {
				return err
			}
		}
		full := Interval{Start: 0, Stop: s.totalRangeStop()}
		result, err := s.fetcher.Fetch(s.ctx, s.url, full)
		if err != nil {
			return err
		}
		s.observeContentRange(result.Headers)
		s.singleBody = newRangeResponse(full, result, s.fetcher, "")
	}
	if err := s.singleBody.seekWindow(iv.Start); err != nil {
		return err
	}
	s.windowStore.Remove(iv)
	s.windowStore.insertUnchecked(iv, s.singleBody)
	s.activeKey, s.hasActive = iv, true
	return nil
}

func (s *RangeStream) totalRangeStop() int64 {
	if s.totalKnown {
		return s.totalBytes
	}
	return 0
}

func (s *RangeStream) activeResponse() (*RangeResponse, error) {
	if !s.hasActive {
		return nil, ErrNoActiveRange
	}
	store := s.store
	if s.singleRequest {
		store = s.windowStore
	}
	e, ok := store.FindContaining(s.activeKey.Start)
	if !ok {
		return nil, ErrNoActiveRange
	}
	return e.resp, nil
}

// Read forwards to the active RangeResponse.
func (s *RangeStream) Read(p []byte) (int, error) {
	resp, err := s.activeResponse()
	if err != nil {
		return 0, err
	}
	return resp.Read(p)
}

// Seek forwards to the active RangeResponse.
func (s *RangeStream) Seek(offset int64, whence int) (int64, error) {
	resp, err := s.activeResponse()
	if err != nil {
		return 0, err
	}
	return resp.Seek(offset, whence)
}

// Tell forwards to the active RangeResponse.
func (s *RangeStream) Tell() (int64, error) {
	resp, err := s.activeResponse()
	if err != nil {
		return 0, err
	}
	return resp.Tell(), nil
}

// ReadAt serves a single random-access read of len(p) bytes starting at
// off, independent of the stream's current active range: it issues its
// own Add for [off, off+len(p)) and reads it to completion, making that
// range the new active one. Intended for callers that only need
// io.ReaderAt semantics (e.g. codec/isocodec's ISO9660 reader), not
// interleaved with ordinary Read/Seek/Tell use of the same stream.
func (s *RangeStream) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := s.Add(NewInterval(off, off+int64(len(p)))); err != nil {
		return 0, err
	}
	total := 0
	for total < len(p) {
		n, err := s.Read(p[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// TotalBytes returns the resource's total length, once known.
func (s *RangeStream) TotalBytes() (int64, error) {
	if !s.totalKnown {
		return 0, ErrLengthUnknown
	}
	return s.totalBytes, nil
}

// SpanningRange returns [first_key.start, last_key.stop), or the stream's
// initial empty interval if the store holds no entries.
func (s *RangeStream) SpanningRange() Interval {
	first, ok := s.store.FirstKey()
	if !ok {
		return Interval{}
	}
	last, _ := s.store.LastKey()
	// LastKey returns the entry with the greatest Start, not necessarily
	// the greatest Stop; scan to find the true maximum Stop.
	stop := last.Stop
	s.store.Ascend(func(e *storeEntry) bool {
		if e.key.Stop > stop {
			stop = e.key.Stop
		}
		return true
	})
	return Interval{Start: first.Start, Stop: stop}
}

// TotalRange returns [0, total_bytes).
func (s *RangeStream) TotalRange() (Interval, error) {
	total, err := s.TotalBytes()
	if err != nil {
		return Interval{}, err
	}
	return Interval{Start: 0, Stop: total}, nil
}

// ListRanges returns the store's external intervals in ascending order.
func (s *RangeStream) ListRanges() []Interval {
	entries := s.store.Entries()
	out := make([]Interval, len(entries))
	for i, e := range entries {
		out[i] = e.key
	}
	return out
}

// Close closes every live RangeResponse held by the stream.
func (s *RangeStream) Close() error {
	var first error
	s.store.Ascend(func(e *storeEntry) bool {
		if err := e.resp.Close(); err != nil && first == nil {
			first = err
		}
		return true
	})
	if s.singleBody != nil {
		if err := s.singleBody.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// IsClosed reports whether every RangeResponse held by the stream has been
// closed (vacuously true for an empty store).
func (s *RangeStream) IsClosed() bool {
	allClosed := true
	s.store.Ascend(func(e *storeEntry) bool {
		if !e.resp.Closed() {
			allClosed = false
			return false
		}
		return true
	})
	if s.singleBody != nil && !s.singleBody.Closed() {
		allClosed = false
	}
	return allClosed
}
