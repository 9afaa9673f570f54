// Package condacodec validates a .conda archive's outer ZIP layout (one
// info-*.tar.zst, one pkg-*.tar.zst and one metadata.json member) and
// reads the zstd frame header of either tarball member over a
// RangeStream, without decompressing any payload bytes.
package condacodec

import (
	"fmt"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	rangestreams "github.com/lmmx/range-streams"
	"github.com/lmmx/range-streams/codec/zipcodec"
)

// zstdHeaderMaxSize bounds a zstd frame header: 4-byte magic, 1-byte
// frame header descriptor, up to 1-byte window descriptor, up to 4-byte
// dictionary ID, up to 8-byte frame content size.
const zstdHeaderMaxSize = 18

// Codec wraps a RangeStream to validate and inspect a .conda archive.
type Codec struct {
	stream *rangestreams.RangeStream
	zip    *zipcodec.Codec

	validated bool
	infoEntry zipcodec.CentralDirectoryEntry
	pkgEntry  zipcodec.CentralDirectoryEntry
	metaEntry zipcodec.CentralDirectoryEntry
}

// New wraps an already-constructed RangeStream.
func New(stream *rangestreams.RangeStream) *Codec {
	return &Codec{stream: stream, zip: zipcodec.New(stream)}
}

// ValidateLayout reads the outer ZIP's central directory and checks it
// holds exactly the three members a .conda archive is defined to have,
// identified by sorting their filenames: an info-*.tar.zst, a
// metadata.json, and a pkg-*.tar.zst, in that alphabetical order.
func (c *Codec) ValidateLayout() error {
	entries, err := c.zip.FileList(64)
	if err != nil {
		return err
	}
	if len(entries) != 3 {
		return fmt.Errorf("condacodec: invalid .conda archive: expected 3 members, got %d", len(entries))
	}
	sorted := append([]zipcodec.CentralDirectoryEntry{}, entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Filename < sorted[j].Filename })
	infoEntry, metaEntry, pkgEntry := sorted[0], sorted[1], sorted[2]

	if !(strings.HasPrefix(infoEntry.Filename, "info-") && strings.HasSuffix(infoEntry.Filename, ".tar.zst")) {
		return fmt.Errorf("condacodec: invalid .conda archive: %q is not an info tarball", infoEntry.Filename)
	}
	if !(strings.HasPrefix(pkgEntry.Filename, "pkg-") && strings.HasSuffix(pkgEntry.Filename, ".tar.zst")) {
		return fmt.Errorf("condacodec: invalid .conda archive: %q is not a pkg tarball", pkgEntry.Filename)
	}
	if metaEntry.Filename != "metadata.json" {
		return fmt.Errorf("condacodec: invalid .conda archive: %q is not metadata.json", metaEntry.Filename)
	}

	c.infoEntry, c.metaEntry, c.pkgEntry = infoEntry, metaEntry, pkgEntry
	c.validated = true
	return nil
}

// InfoEntry returns the validated info-*.tar.zst member's central
// directory entry.
func (c *Codec) InfoEntry() (zipcodec.CentralDirectoryEntry, error) {
	if !c.validated {
		return zipcodec.CentralDirectoryEntry{}, fmt.Errorf("condacodec: ValidateLayout must run first")
	}
	return c.infoEntry, nil
}

// PkgEntry returns the validated pkg-*.tar.zst member's central
// directory entry.
func (c *Codec) PkgEntry() (zipcodec.CentralDirectoryEntry, error) {
	if !c.validated {
		return zipcodec.CentralDirectoryEntry{}, fmt.Errorf("condacodec: ValidateLayout must run first")
	}
	return c.pkgEntry, nil
}

// MetaEntry returns the validated metadata.json member's central
// directory entry.
func (c *Codec) MetaEntry() (zipcodec.CentralDirectoryEntry, error) {
	if !c.validated {
		return zipcodec.CentralDirectoryEntry{}, fmt.Errorf("condacodec: ValidateLayout must run first")
	}
	return c.metaEntry, nil
}

// ZstdFrameHeader locates entry's local file header, reads just enough
// bytes to cover a zstd frame header, and decodes it, reporting the
// frame's content size (if present) without decompressing any data.
func (c *Codec) ZstdFrameHeader(entry zipcodec.CentralDirectoryEntry) (zstd.Header, error) {
	lfh, err := c.zip.LocalHeaderFor(entry)
	if err != nil {
		return zstd.Header{}, err
	}
	buf, err := readAt(c.stream, lfh.DataOffset, lfh.DataOffset+zstdHeaderMaxSize)
	if err != nil {
		return zstd.Header{}, err
	}
	var hdr zstd.Header
	if err := hdr.Decode(buf); err != nil {
		return zstd.Header{}, fmt.Errorf("condacodec: %w", err)
	}
	return hdr, nil
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
