// Package zipcodec walks a ZIP archive's trailing records over a
// RangeStream: the end-of-central-directory record, the central directory
// entries it describes, and each entry's local file header, all located by
// end-relative range requests without ever downloading a compressed
// payload.
package zipcodec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	rangestreams "github.com/lmmx/range-streams"
)

var (
	localFileHeaderSig      = []byte("PK\x03\x04")
	centralDirectorySig     = []byte("PK\x01\x02")
	zip64EndOfCentralDirSig = []byte("PK\x06\x06")
	endOfCentralDirSig      = []byte("PK\x05\x06")
)

// ErrSignatureNotFound is returned when a walk runs out of search budget
// before locating the record it was looking for.
var ErrSignatureNotFound = errors.New("zipcodec: signature not found within search limit")

// EndOfCentralDirectory is the parsed fixed-size portion of a ZIP's EOCD
// record (structEndArchive in CPython's zipfile module).
type EndOfCentralDirectory struct {
	StartPos       int64
	DiskNumber     uint16
	DiskStart      uint16
	EntriesOnDisk  uint16
	EntriesTotal   uint16
	CentralDirSize uint32
	CentralDirOff  uint32
	CommentLength  uint16
}

const eocdFixedSize = 22

func parseEOCD(pos int64, b []byte) (EndOfCentralDirectory, error) {
	if len(b) < eocdFixedSize {
		return EndOfCentralDirectory{}, fmt.Errorf("zipcodec: EOCD record truncated: got %d bytes", len(b))
	}
	return EndOfCentralDirectory{
		StartPos:       pos,
		DiskNumber:     binary.LittleEndian.Uint16(b[4:6]),
		DiskStart:      binary.LittleEndian.Uint16(b[6:8]),
		EntriesOnDisk:  binary.LittleEndian.Uint16(b[8:10]),
		EntriesTotal:   binary.LittleEndian.Uint16(b[10:12]),
		CentralDirSize: binary.LittleEndian.Uint32(b[12:16]),
		CentralDirOff:  binary.LittleEndian.Uint32(b[16:20]),
		CommentLength:  binary.LittleEndian.Uint16(b[20:22]),
	}, nil
}

// CentralDirectoryEntry is the parsed fixed-size portion of one central
// directory record (structCentralDir), plus the variable-length filename
// that follows it.
type CentralDirectoryEntry struct {
	StartPos         int64
	Filename         string
	CompressMethod   uint16
	CRC32            uint32
	CompressedSize   uint32
	UncompressedSize uint32
	LocalHeaderOff   uint32
}

const centralDirFixedSize = 46

func parseCentralDirectoryEntry(pos int64, b []byte) (CentralDirectoryEntry, int, error) {
	if len(b) < centralDirFixedSize {
		return CentralDirectoryEntry{}, 0, fmt.Errorf("zipcodec: central directory record truncated: got %d bytes", len(b))
	}
	filenameLen := int(binary.LittleEndian.Uint16(b[28:30]))
	extraLen := int(binary.LittleEndian.Uint16(b[30:32]))
	commentLen := int(binary.LittleEndian.Uint16(b[32:34]))
	total := centralDirFixedSize + filenameLen + extraLen + commentLen
	if len(b) < total {
		return CentralDirectoryEntry{}, 0, fmt.Errorf("zipcodec: central directory record needs %d bytes, got %d", total, len(b))
	}
	return CentralDirectoryEntry{
		StartPos:         pos,
		CompressMethod:   binary.LittleEndian.Uint16(b[10:12]),
		CRC32:            binary.LittleEndian.Uint32(b[16:20]),
		CompressedSize:   binary.LittleEndian.Uint32(b[20:24]),
		UncompressedSize: binary.LittleEndian.Uint32(b[24:28]),
		LocalHeaderOff:   binary.LittleEndian.Uint32(b[42:46]),
		Filename:         string(b[centralDirFixedSize : centralDirFixedSize+filenameLen]),
	}, total, nil
}

// LocalFileHeader is the parsed fixed-size portion of a local file header
// (structFileHeader) preceding each entry's compressed data.
type LocalFileHeader struct {
	StartPos       int64
	CompressMethod uint16
	CompressedSize uint32
	DataOffset     int64 // absolute position where the compressed payload begins
}

const localFileHeaderFixedSize = 30

func parseLocalFileHeader(pos int64, b []byte) (LocalFileHeader, error) {
	if len(b) < localFileHeaderFixedSize {
		return LocalFileHeader{}, fmt.Errorf("zipcodec: local file header truncated: got %d bytes", len(b))
	}
	filenameLen := int(binary.LittleEndian.Uint16(b[26:28]))
	extraLen := int(binary.LittleEndian.Uint16(b[28:30]))
	return LocalFileHeader{
		StartPos:       pos,
		CompressMethod: binary.LittleEndian.Uint16(b[8:10]),
		CompressedSize: binary.LittleEndian.Uint32(b[18:22]),
		DataOffset:     pos + localFileHeaderFixedSize + int64(filenameLen) + int64(extraLen),
	}, nil
}

// Codec wraps a RangeStream to walk a ZIP archive's container structure.
type Codec struct {
	stream *rangestreams.RangeStream
	eocd   *EndOfCentralDirectory
}

// New wraps an already-constructed RangeStream. The stream's pruning
// policy and fetcher are left to the caller; this codec only calls Add,
// Read and TotalBytes on it.
func New(stream *rangestreams.RangeStream) *Codec {
	return &Codec{stream: stream}
}

// CheckHeadBytes verifies the resource begins with a local file header
// signature, the cheapest possible validity check for "is this a ZIP".
func (c *Codec) CheckHeadBytes() error {
	if err := c.stream.Add(rangestreams.NewInterval(0, int64(len(localFileHeaderSig)))); err != nil {
		return err
	}
	got := make([]byte, len(localFileHeaderSig))
	if _, err := readFull(c.stream, got); err != nil {
		return err
	}
	if !bytes.Equal(got, localFileHeaderSig) {
		return fmt.Errorf("zipcodec: invalid local file header signature %q", got)
	}
	return nil
}

// AnnotateEndOfCentralDir walks backward from the tail of the resource in
// step-sized windows looking for the EOCD signature, caching the previous
// window's tail bytes so the signature is found even if it straddles a
// window boundary.
func (c *Codec) AnnotateEndOfCentralDir(step, limit int64) (EndOfCentralDirectory, error) {
	total, err := c.stream.TotalBytes()
	if err != nil {
		return EndOfCentralDirectory{}, err
	}

	cacheMiss := len(endOfCentralDirSig) - 1
	var cache []byte
	windowStop := total
	windowStart := total - step
	if windowStart < 0 {
		windowStart = 0
	}

	for {
		if err := c.stream.Add(rangestreams.NewInterval(windowStart, windowStop)); err != nil {
			return EndOfCentralDirectory{}, err
		}
		chunk, err := readActive(c.stream, windowStop-windowStart)
		if err != nil {
			return EndOfCentralDirectory{}, err
		}

		combined := append(append([]byte{}, chunk...), trimToFirst(cache, cacheMiss)...)
		if idx := bytes.Index(combined, endOfCentralDirSig); idx >= 0 {
			pos := windowStart + int64(idx)
			end, err := readAt(c.stream, pos, pos+eocdFixedSize)
			if err != nil {
				return EndOfCentralDirectory{}, err
			}
			eocd, err := parseEOCD(pos, end)
			if err != nil {
				return EndOfCentralDirectory{}, err
			}
			c.eocd = &eocd
			return eocd, nil
		}

		if windowStart == 0 || total-windowStart >= limit {
			break
		}
		cache = chunk
		windowStop = windowStart
		windowStart -= step
		if windowStart < 0 {
			windowStart = 0
		}
	}
	return EndOfCentralDirectory{}, ErrSignatureNotFound
}

// CentralDirectoryBytes returns the raw bytes of the central directory,
// located (if not already known) via AnnotateEndOfCentralDir, by walking
// backward from just before the EOCD record until the signature of the
// directory's first record, at or before the offset the EOCD records, is
// found.
func (c *Codec) CentralDirectoryBytes(step int64) ([]byte, error) {
	if c.eocd == nil {
		if _, err := c.AnnotateEndOfCentralDir(step, 400); err != nil {
			return nil, err
		}
	}
	preEOCD := c.eocd.StartPos
	cacheMiss := len(centralDirectorySig) - 1

	var cache []byte
	var accumulated []byte
	windowStop := preEOCD
	windowStart := preEOCD - step
	if windowStart < 0 {
		windowStart = 0
	}

	for {
		if err := c.stream.Add(rangestreams.NewInterval(windowStart, windowStop)); err != nil {
			return nil, err
		}
		chunk, err := readActive(c.stream, windowStop-windowStart)
		if err != nil {
			return nil, err
		}
		accumulated = append(chunk, accumulated...)

		combined := append(append([]byte{}, chunk...), trimToFirst(cache, cacheMiss)...)
		if idx := bytes.Index(combined, centralDirectorySig); idx >= 0 && windowStart+int64(idx) <= int64(c.eocd.CentralDirOff) {
			return accumulated[idx:], nil
		}

		if windowStart == 0 {
			break
		}
		cache = chunk
		windowStop = windowStart
		windowStart -= step
		if windowStart < 0 {
			windowStart = 0
		}
	}
	return nil, fmt.Errorf("zipcodec: %w: central directory start", ErrSignatureNotFound)
}

// FileList parses CentralDirectoryBytes into individual entries.
func (c *Codec) FileList(step int64) ([]CentralDirectoryEntry, error) {
	raw, err := c.CentralDirectoryBytes(step)
	if err != nil {
		return nil, err
	}
	var entries []CentralDirectoryEntry
	pos := c.eocd.CentralDirOff
	for len(raw) >= 4 && bytes.Equal(raw[:4], centralDirectorySig) {
		entry, consumed, err := parseCentralDirectoryEntry(int64(pos), raw)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
		raw = raw[consumed:]
		pos += uint32(consumed)
	}
	return entries, nil
}

// LocalHeaderFor fetches and parses the local file header preceding the
// entry's compressed payload.
func (c *Codec) LocalHeaderFor(entry CentralDirectoryEntry) (LocalFileHeader, error) {
	pos := int64(entry.LocalHeaderOff)
	stop := pos + localFileHeaderFixedSize + 512
	if total, err := c.stream.TotalBytes(); err == nil && stop > total {
		stop = total
	}
	b, err := readAt(c.stream, pos, stop)
	if err != nil {
		return LocalFileHeader{}, err
	}
	return parseLocalFileHeader(pos, b)
}

// trimToFirst returns b's leading n bytes: the cached window sits
// immediately to the right of the chunk just read, so only its head is
// close enough to the chunk/cache boundary for a signature to straddle.
func trimToFirst(b []byte, n int) []byte {
	if n <= 0 || len(b) == 0 {
		return nil
	}
	if len(b) <= n {
		return b
	}
	return b[:n]
}

func readFull(stream *rangestreams.RangeStream, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := stream.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func readActive(stream *rangestreams.RangeStream, n int64) ([]byte, error) {
	buf := make([]byte, n)
	got, err := readFull(stream, buf)
	return buf[:got], err
}

func readAt(stream *rangestreams.RangeStream, start, stop int64) ([]byte, error) {
	if err := stream.Add(rangestreams.NewInterval(start, stop)); err != nil {
		return nil, err
	}
	return readActive(stream, stop-start)
}
