// Package pngcodec reads a PNG's IHDR chunk and walks its chunk table
// over a RangeStream, requesting only each chunk's 8-byte length+type
// preamble and skipping over its data and CRC without downloading either.
package pngcodec

import (
	"encoding/binary"
	"fmt"

	rangestreams "github.com/lmmx/range-streams"
)

const (
	signatureSize     = 8 // PNG files start with an 8-byte signature
	ihdrStart         = 16
	ihdrEnd           = 29
	chunkPreambleSize = 8  // 4-byte length + 4-byte type
	chunkMetaSize     = 12 // length + type + CRC
)

// IHDR is the PNG header chunk's fixed fields.
type IHDR struct {
	Width        uint32
	Height       uint32
	BitDepth     byte
	ColourType   byte
	Compression  byte
	FilterMethod byte
	Interlacing  byte
}

// ChannelCount derives the number of colour channels from ColourType,
// following the PNG specification's colour-type bit flags.
func (h IHDR) ChannelCount() int {
	hasColourmap := h.ColourType&1 != 0
	isGrayscale := h.ColourType&2 == 0
	hasAlpha := h.ColourType&4 != 0
	colourChannels := 3
	if isGrayscale || hasColourmap {
		colourChannels = 1
	}
	if hasAlpha {
		return colourChannels + 1
	}
	return colourChannels
}

func parseIHDR(b []byte) (IHDR, error) {
	if len(b) < ihdrEnd-ihdrStart {
		return IHDR{}, fmt.Errorf("pngcodec: IHDR chunk truncated: got %d bytes", len(b))
	}
	return IHDR{
		Width:        binary.BigEndian.Uint32(b[0:4]),
		Height:       binary.BigEndian.Uint32(b[4:8]),
		BitDepth:     b[8],
		ColourType:   b[9],
		Compression:  b[10],
		FilterMethod: b[11],
		Interlacing:  b[12],
	}, nil
}

// ChunkInfo locates one chunk's length and type preamble within the
// stream, without reading its data or CRC.
type ChunkInfo struct {
	Start  int64
	Type   string
	Length uint32
}

// End returns this chunk's exclusive end position, i.e. the start of the
// next chunk.
func (c ChunkInfo) End() int64 {
	return c.Start + int64(c.Length) + chunkMetaSize
}

// DataRange returns the half-open byte interval of this chunk's data,
// excluding its length+type preamble and trailing CRC.
func (c ChunkInfo) DataRange() rangestreams.Interval {
	dataStart := c.Start + chunkPreambleSize
	dataEnd := c.End() - 4
	return rangestreams.NewInterval(dataStart, dataEnd)
}

// Codec wraps a RangeStream to read a PNG's header and chunk table.
type Codec struct {
	stream *rangestreams.RangeStream
	ihdr   *IHDR
	chunks map[string][]ChunkInfo
}

// New wraps an already-constructed RangeStream.
func New(stream *rangestreams.RangeStream) *Codec {
	return &Codec{stream: stream}
}

// ScanIHDR requests the IHDR chunk's fixed 13-byte body and parses it.
// The result is cached; subsequent calls return it directly.
func (c *Codec) ScanIHDR() (IHDR, error) {
	if c.ihdr != nil {
		return *c.ihdr, nil
	}
	b, err := readAt(c.stream, ihdrStart, ihdrEnd)
	if err != nil {
		return IHDR{}, err
	}
	ihdr, err := parseIHDR(b)
	if err != nil {
		return IHDR{}, err
	}
	c.ihdr = &ihdr
	return ihdr, nil
}

// EnumerateChunks walks the chunk table from just after the file
// signature, reading only each chunk's 8-byte preamble and skipping
// directly to the next chunk's start, stopping once IEND is seen. The
// result is cached; subsequent calls return it directly.
func (c *Codec) EnumerateChunks() (map[string][]ChunkInfo, error) {
	if c.chunks != nil {
		return c.chunks, nil
	}
	chunks := map[string][]ChunkInfo{}
	chunkStart := int64(signatureSize)
	for {
		b, err := readAt(c.stream, chunkStart, chunkStart+chunkPreambleSize)
		if err != nil {
			return nil, err
		}
		length := binary.BigEndian.Uint32(b[0:4])
		chunkType := string(b[4:8])
		info := ChunkInfo{Start: chunkStart, Type: chunkType, Length: length}
		chunks[chunkType] = append(chunks[chunkType], info)
		if chunkType == "IEND" {
			break
		}
		chunkStart = info.End()
	}
	c.chunks = chunks
	return chunks, nil
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
