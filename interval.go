package rangestreams

import "fmt"

// ErrEmptyInterval is returned by Termini when called on an empty interval.
var ErrEmptyInterval = fmt.Errorf("rangestreams: empty interval has no termini")

// Interval is a half-open [Start, Stop) span of non-negative byte positions.
// Internally the store always holds resolved, absolute intervals; negative
// (end-relative) coordinates are only ever accepted at RangeStream.Add time
// (see ResolveEndRelative) and never persisted.
type Interval struct {
	Start, Stop int64
}

// NewInterval builds a half-open [start, stop) interval without validating
// it; use Validate to check start<=stop and optional bounds.
func NewInterval(start, stop int64) Interval {
	return Interval{Start: start, Stop: stop}
}

// Length returns Stop-Start.
func (iv Interval) Length() int64 {
	return iv.Stop - iv.Start
}

// IsEmpty reports whether the interval has zero length.
func (iv Interval) IsEmpty() bool {
	return iv.Length() == 0
}

// Termini returns the inclusive (start, end) positions [start, end] covered
// by iv. It fails with ErrEmptyInterval if iv is empty.
func (iv Interval) Termini() (start, end int64, err error) {
	if iv.IsEmpty() {
		return 0, 0, ErrEmptyInterval
	}
	return iv.Start, iv.Stop - 1, nil
}

// Contains reports whether pos lies within the half-open interval.
func (iv Interval) Contains(pos int64) bool {
	return pos >= iv.Start && pos < iv.Stop
}

// Intersects reports whether iv and other share any positions.
func (iv Interval) Intersects(other Interval) bool {
	return iv.Start < other.Stop && other.Start < iv.Stop
}

// Validate checks that Start<=Stop, and — when totalKnown is true — that
// neither endpoint exceeds total.
func (iv Interval) Validate(totalKnown bool, total int64) error {
	if iv.Start > iv.Stop {
		return fmt.Errorf("%w: start %d > stop %d", ErrInvalidInterval, iv.Start, iv.Stop)
	}
	if iv.Start < 0 || iv.Stop < 0 {
		return fmt.Errorf("%w: negative endpoint", ErrInvalidInterval)
	}
	if totalKnown && (iv.Start > total || iv.Stop > total) {
		return fmt.Errorf("%w: [%d,%d) exceeds total length %d", ErrOutOfRange, iv.Start, iv.Stop, total)
	}
	return nil
}

// String renders iv using the conventional half-open notation.
func (iv Interval) String() string {
	return fmt.Sprintf("[%d, %d)", iv.Start, iv.Stop)
}

// Span returns the smallest interval containing both iv and other.
func (iv Interval) Span(other Interval) Interval {
	start := iv.Start
	if other.Start < start {
		start = other.Start
	}
	stop := iv.Stop
	if other.Stop > stop {
		stop = other.Stop
	}
	return Interval{Start: start, Stop: stop}
}

// SpanAll returns the smallest interval containing every interval in ivs.
// ivs must be non-empty.
func SpanAll(ivs []Interval) Interval {
	span := ivs[0]
	for _, iv := range ivs[1:] {
		span = span.Span(iv)
	}
	return span
}

// ResolveEndRelative interprets a possibly end-relative (a,b) pair (either
// endpoint may be negative, meaning "total+x") into an absolute Interval.
// It fails with ErrLengthUnknown if either endpoint is negative and
// totalKnown is false.
func ResolveEndRelative(start, stop int64, totalKnown bool, total int64) (Interval, error) {
	if (start < 0 || stop < 0) && !totalKnown {
		return Interval{}, fmt.Errorf("%w: cannot resolve negative endpoint before first fetch", ErrLengthUnknown)
	}
	if start < 0 {
		start = total + start
	}
	if stop < 0 {
		stop = total + stop
	}
	return Interval{Start: start, Stop: stop}, nil
}
