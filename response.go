package rangestreams

import (
	"fmt"
	"io"
	"net/http"
)

// RangeResponse is a per-request streaming buffer over the bytes of a
// single Range GET. It tracks a head offset (bytes logically consumed from
// the head, monotonic) and a tail mark (bytes virtually truncated from the
// tail, monotonic), and exposes read/seek/tell over the portion of the
// request interval still "owned" — its external interval.
type RangeResponse struct {
	request     Interval
	body        io.ReadCloser
	fetcher     Fetcher
	name        string
	respHeaders http.Header

	buf        []byte // bytes drained from body so far; buf[i] == byte at request.Start+i
	eof        bool
	headOffset int64
	tailMark   int64
	closed     bool
}

func newRangeResponse(request Interval, result *FetchResult, fetcher Fetcher, name string) *RangeResponse {
	return &RangeResponse{
		request:     request,
		body:        result.Body,
		fetcher:     fetcher,
		name:        name,
		respHeaders: result.Headers,
	}
}

// headers returns the response headers returned by the Fetcher for this
// range, or an empty header set if none were recorded.
func (r *RangeResponse) headers() http.Header {
	if r.respHeaders == nil {
		return http.Header{}
	}
	return r.respHeaders
}

func (r *RangeResponse) String() string {
	nameSuffix := ""
	if r.name != "" {
		nameSuffix = fmt.Sprintf(" %q", r.name)
	}
	return fmt.Sprintf("RangeResponse%s %s", nameSuffix, r.request)
}

// drainLimit is the number of bytes of the request interval that may ever
// be drained from body: length minus the tail mark. Bytes past this are
// never read from the network.
func (r *RangeResponse) drainLimit() int64 {
	return r.request.Length() - r.tailMark
}

// drainUntil ensures at least min(goal, drainLimit()) bytes are buffered.
func (r *RangeResponse) drainUntil(goal int64) error {
	limit := r.drainLimit()
	if goal > limit {
		goal = limit
	}
	chunk := make([]byte, 32*1024)
	for int64(len(r.buf)) < goal {
		if r.eof {
			break
		}
		want := goal - int64(len(r.buf))
		if want > int64(len(chunk)) {
			want = int64(len(chunk))
		}
		n, err := r.body.Read(chunk[:want])
		if n > 0 {
			r.buf = append(r.buf, chunk[:n]...)
		}
		if err != nil {
			if err == io.EOF {
				r.eof = true
				break
			}
			return fmt.Errorf("%w: %v", ErrNetwork, err)
		}
	}
	return nil
}

// ExternalInterval is the currently visible portion of the response:
// [request.Start+headOffset, request.Stop-tailMark).
func (r *RangeResponse) ExternalInterval() Interval {
	return Interval{
		Start: r.request.Start + r.headOffset,
		Stop:  r.request.Stop - r.tailMark,
	}
}

// RequestInterval is the interval originally sent on the wire; it is never
// mutated after creation.
func (r *RangeResponse) RequestInterval() Interval {
	return r.request
}

// Read returns bytes from the external interval, advancing the head offset.
// It returns io.EOF once the external interval is exhausted.
func (r *RangeResponse) Read(p []byte) (int, error) {
	limit := r.drainLimit()
	if r.headOffset >= limit {
		return 0, io.EOF
	}
	goal := r.headOffset + int64(len(p))
	if err := r.drainUntil(goal); err != nil {
		return 0, err
	}
	end := int64(len(r.buf))
	if end > limit {
		end = limit
	}
	avail := end - r.headOffset
	if avail <= 0 {
		return 0, io.EOF
	}
	n := int64(len(p))
	if avail < n {
		n = avail
	}
	copy(p, r.buf[r.headOffset:r.headOffset+n])
	r.headOffset += n
	return int(n), nil
}

// Seek adjusts the read cursor within the external interval. Forward seeks
// that cross the current head offset advance it by discarding bytes;
// backward seeks fail with ErrSeekBehindConsumed, since head offset is
// monotonically non-decreasing.
func (r *RangeResponse) Seek(offset int64, whence int) (int64, error) {
	limit := r.drainLimit()
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = r.headOffset + offset
	case io.SeekEnd:
		if err := r.drainUntil(limit); err != nil {
			return r.Tell(), err
		}
		target = limit + offset
	default:
		return r.Tell(), fmt.Errorf("rangestreams: invalid seek whence %d", whence)
	}
	if target > limit {
		target = limit
	}
	if target < r.headOffset {
		return r.Tell(), ErrSeekBehindConsumed
	}
	if err := r.drainUntil(target); err != nil {
		return r.Tell(), err
	}
	r.headOffset = target
	return r.Tell(), nil
}

// Tell returns the absolute position of the read cursor:
// request.Start + headOffset.
func (r *RangeResponse) Tell() int64 {
	return r.request.Start + r.headOffset
}

// IsConsumed reports whether the entire external interval has been read.
func (r *RangeResponse) IsConsumed() bool {
	return r.headOffset+r.tailMark == r.request.Length()
}

// MarkTail increases the tail mark by n, virtually truncating the external
// interval's tail. It fails with ErrTailOverrun if doing so would cross the
// current head offset.
func (r *RangeResponse) MarkTail(n int64) error {
	newTail := r.tailMark + n
	if r.headOffset+newTail > r.request.Length() {
		return ErrTailOverrun
	}
	r.tailMark = newTail
	return nil
}

// advanceHead drains and discards n bytes from the head of the response,
// returning whatever of those bytes were (or became) available in the
// buffer. Used by the overlap resolver's HEAD case to reassign E's
// overlapping prefix to the new range N: the returned slice is spliced
// into N's buffer in lieu of a redundant network fetch when the full span
// was already available. A drain failure is returned to the caller rather
// than swallowed, leaving headOffset unmoved.
func (r *RangeResponse) advanceHead(n int64) ([]byte, error) {
	old := r.headOffset
	goal := old + n
	if err := r.drainUntil(goal); err != nil {
		return nil, err
	}
	end := int64(len(r.buf))
	if end > goal {
		end = goal
	}
	var spliced []byte
	if end > old {
		spliced = append([]byte(nil), r.buf[old:end]...)
	}
	r.headOffset = goal
	return spliced, nil
}

// seekWindow moves the read cursor to target, buffering forward first if
// needed. Unlike Seek, target may be behind the current head offset: it is
// used only by monostream mode, where buf accumulates for the whole
// resource and is never discarded, so an earlier window's bytes remain
// available for replay without violating monotonic consumption of any
// single caller-visible range.
func (r *RangeResponse) seekWindow(target int64) error {
	limit := r.drainLimit()
	if target > limit {
		target = limit
	}
	if target < 0 {
		target = 0
	}
	if err := r.drainUntil(target); err != nil {
		return err
	}
	r.headOffset = target
	return nil
}

// Close releases the underlying body. Safe to call more than once.
func (r *RangeResponse) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.body.Close()
}

// Closed reports whether Close has already been called.
func (r *RangeResponse) Closed() bool {
	return r.closed
}
