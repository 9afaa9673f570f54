package zipcodec

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	rangestreams "github.com/lmmx/range-streams"
)

func buildTestZip(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range []string{"a.txt", "b/c.txt"} {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("Create(%s) failed: %v", name, err)
		}
		if _, err := f.Write([]byte("contents of " + name)); err != nil {
			t.Fatalf("Write(%s) failed: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zip.Writer.Close failed: %v", err)
	}
	return buf.Bytes()
}

func newZipServer(t *testing.T, data []byte) *httptest.Server {
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

func TestCodecCheckHeadBytes(t *testing.T) {
	data := buildTestZip(t)
	server := newZipServer(t, data)
	defer server.Close()

	s, err := rangestreams.New(context.Background(), server.URL, rangestreams.Interval{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()

	c := New(s)
	if err := c.CheckHeadBytes(); err != nil {
		t.Fatalf("CheckHeadBytes failed: %v", err)
	}
}

func TestCodecAnnotateEndOfCentralDir(t *testing.T) {
	data := buildTestZip(t)
	server := newZipServer(t, data)
	defer server.Close()

	s, err := rangestreams.New(context.Background(), server.URL, rangestreams.Interval{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()

	c := New(s)
	eocd, err := c.AnnotateEndOfCentralDir(20, 400)
	if err != nil {
		t.Fatalf("AnnotateEndOfCentralDir failed: %v", err)
	}
	if eocd.EntriesTotal != 2 {
		t.Errorf("EntriesTotal = %d, want 2", eocd.EntriesTotal)
	}
}

func TestCodecFileList(t *testing.T) {
	data := buildTestZip(t)
	server := newZipServer(t, data)
	defer server.Close()

	s, err := rangestreams.New(context.Background(), server.URL, rangestreams.Interval{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()

	c := New(s)
	entries, err := c.FileList(20)
	if err != nil {
		t.Fatalf("FileList failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("FileList returned %d entries, want 2", len(entries))
	}
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Filename] = true
	}
	if !names["a.txt"] || !names["b/c.txt"] {
		t.Errorf("unexpected filenames: %v", names)
	}
}
