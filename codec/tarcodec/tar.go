// Package tarcodec walks a tar archive's sequence of ustar header blocks
// over a RangeStream, yielding each member's name, size and content
// location without ever downloading a member's payload.
package tarcodec

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	rangestreams "github.com/lmmx/range-streams"
)

const (
	blockSize = 512

	nameOffset, nameSize = 0, 100
	sizeOffset, sizeSize = 124, 12
	typeflagOffset       = 156
)

// Header is the subset of a ustar header block needed to locate and
// identify a tar member without reading its payload.
type Header struct {
	StartPos   int64
	Name       string
	Size       int64
	Typeflag   byte
	DataOffset int64
}

// ContentRange returns the half-open byte interval of this member's
// payload within the archive.
func (h Header) ContentRange() rangestreams.Interval {
	return rangestreams.NewInterval(h.DataOffset, h.DataOffset+h.Size)
}

func isZeroBlock(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

func nullTerminated(b []byte) string {
	if idx := bytes.IndexByte(b, 0); idx >= 0 {
		b = b[:idx]
	}
	return string(b)
}

func parseOctal(b []byte) (int64, error) {
	s := strings.TrimRight(strings.TrimSpace(string(b)), "\x00")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 8, 64)
}

func parseHeader(pos int64, b []byte) (Header, error) {
	if len(b) < blockSize {
		return Header{}, fmt.Errorf("tarcodec: header block truncated: got %d bytes", len(b))
	}
	size, err := parseOctal(b[sizeOffset : sizeOffset+sizeSize])
	if err != nil {
		return Header{}, fmt.Errorf("tarcodec: bad size field: %w", err)
	}
	return Header{
		StartPos:   pos,
		Name:       nullTerminated(b[nameOffset : nameOffset+nameSize]),
		Size:       size,
		Typeflag:   b[typeflagOffset],
		DataOffset: pos + blockSize,
	}, nil
}

// Codec wraps a RangeStream to walk a tar archive's member headers.
type Codec struct {
	stream  *rangestreams.RangeStream
	headers []Header
	walked  bool
}

// New wraps an already-constructed RangeStream. Monostream mode
// (rangestreams.WithSingleRequest) suits this codec well, since tar
// headers and members are visited strictly left to right.
func New(stream *rangestreams.RangeStream) *Codec {
	return &Codec{stream: stream}
}

// Walk reads sequential header blocks from the start of the archive,
// skipping each member's payload by computing the next header's offset
// from the current one's size, stopping at the two-zero-block end
// marker. The result is cached; subsequent calls return it directly.
func (c *Codec) Walk() ([]Header, error) {
	if c.walked {
		return c.headers, nil
	}
	pos := int64(0)
	zeroStreak := 0
	for {
		b, err := readAt(c.stream, pos, pos+blockSize)
		if err != nil {
			return nil, err
		}
		if isZeroBlock(b) {
			zeroStreak++
			if zeroStreak >= 2 {
				break
			}
			pos += blockSize
			continue
		}
		zeroStreak = 0
		h, err := parseHeader(pos, b)
		if err != nil {
			return nil, err
		}
		c.headers = append(c.headers, h)
		dataBlocks := (h.Size + blockSize - 1) / blockSize
		pos = h.DataOffset + dataBlocks*blockSize
	}
	c.walked = true
	return c.headers, nil
}

func readAt(stream *rangestreams.RangeStream, start, stop int64) ([]byte, error) {
	if err := stream.Add(rangestreams.NewInterval(start, stop)); err != nil {
		return nil, err
	}
	buf := make([]byte, stop-start)
	total := 0
	for total < len(buf) {
		n, err := stream.Read(buf[total:])
		total += n
		if err != nil {
			return buf[:total], err
		}
	}
	return buf, nil
}
