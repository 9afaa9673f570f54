// Package isocodec bridges a RangeStream to github.com/hooklift/iso9660,
// which expects random access via io.ReaderAt, so an ISO9660 image's
// directory tree can be walked from a remote resource without
// downloading it in full.
package isocodec

import (
	"errors"
	"fmt"
	"io"

	"github.com/hooklift/iso9660"

	rangestreams "github.com/lmmx/range-streams"
)

// Entry describes one file or directory record from an ISO9660 image's
// directory tree.
type Entry struct {
	Name  string
	Size  int64
	IsDir bool
}

// Codec wraps a RangeStream, which must support ReadAt, to walk an
// ISO9660 image's directory tree.
type Codec struct {
	stream *rangestreams.RangeStream
}

// New wraps an already-constructed RangeStream.
func New(stream *rangestreams.RangeStream) *Codec {
	return &Codec{stream: stream}
}

// FileList walks every entry in the ISO9660 directory tree, in the
// order github.com/hooklift/iso9660 enumerates them.
func (c *Codec) FileList() ([]Entry, error) {
	r, err := iso9660.NewReader(c.stream)
	if err != nil {
		return nil, fmt.Errorf("isocodec: %w", err)
	}
	var entries []Entry
	for {
		n, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("isocodec: %w", err)
		}
		entries = append(entries, Entry{Name: n.Name(), Size: n.Size(), IsDir: n.IsDir()})
	}
	return entries, nil
}
