package rangestreams

import "errors"

// Error kinds surfaced by the public operations of RangeStream and its
// collaborators. Callers should use errors.Is against these sentinels
// rather than matching on message text.
var (
	ErrLengthUnknown      = errors.New("rangestreams: total length not yet known")
	ErrInvalidInterval    = errors.New("rangestreams: invalid interval")
	ErrOutOfRange         = errors.New("rangestreams: interval endpoint exceeds total length")
	ErrOverlapDisallowed  = errors.New("rangestreams: overlap disallowed under strict pruning policy")
	ErrNoActiveRange      = errors.New("rangestreams: no active range")
	ErrSeekBehindConsumed = errors.New("rangestreams: seek target lies behind consumed head")
	ErrTailOverrun        = errors.New("rangestreams: tail mark would cross head offset")
	ErrNetwork            = errors.New("rangestreams: network error")
	ErrNonPartial         = errors.New("rangestreams: response was not a partial-content response")
	ErrUnsupportedRanges  = errors.New("rangestreams: server does not advertise Accept-Ranges: bytes")
)
