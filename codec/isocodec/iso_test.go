package isocodec

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	rangestreams "github.com/lmmx/range-streams"
)

func newGarbageServer(t *testing.T, data []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Accept-Ranges", "bytes")
		rng := r.Header.Get("Range")
		if rng == "" {
			w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
			w.WriteHeader(http.StatusOK)
			if r.Method != http.MethodHead {
				w.Write(data)
			}
			return
		}
		var start, end int64
		fmt.Sscanf(rng, "bytes=%d-%d", &start, &end)
		if start == 0 && end == 0 {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes 0-0/%d", len(data)))
			w.WriteHeader(http.StatusPartialContent)
			return
		}
		if end >= int64(len(data)) {
			end = int64(len(data)) - 1
		}
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(data)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(data[start : end+1])
	}))
}

// TestCodecFileListRejectsInvalidImage exercises the wiring between
// RangeStream.ReadAt and github.com/hooklift/iso9660 against a resource
// that plainly isn't an ISO9660 image. Fetching a real multi-hundred-MB
// ISO fixture isn't practical here, so this only pins the error path: a
// non-ISO resource must not be reported as readable.
func TestCodecFileListRejectsInvalidImage(t *testing.T) {
	data := []byte("this is not an iso9660 image")
	server := newGarbageServer(t, data)
	defer server.Close()

	s, err := rangestreams.New(context.Background(), server.URL, rangestreams.Interval{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()

	c := New(s)
	if _, err := c.FileList(); err == nil {
		t.Error("expected FileList to reject a non-ISO9660 resource")
	}
}
