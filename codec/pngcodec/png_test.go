package pngcodec

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	rangestreams "github.com/lmmx/range-streams"
)

func buildTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			// Not fully opaque: png.Encode writes an opaque RGBA image as
			// RGB (colour type 2), dropping the alpha channel.
			img.Set(x, y, color.RGBA{R: byte(x), G: byte(y), B: 0, A: 200})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode failed: %v", err)
	}
	return buf.Bytes()
}

func newPNGServer(t *testing.T, data []byte) *httptest.Server {
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

func TestCodecScanIHDR(t *testing.T) {
	data := buildTestPNG(t, 16, 9)
	server := newPNGServer(t, data)
	defer server.Close()

	s, err := rangestreams.New(context.Background(), server.URL, rangestreams.Interval{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()

	c := New(s)
	ihdr, err := c.ScanIHDR()
	if err != nil {
		t.Fatalf("ScanIHDR failed: %v", err)
	}
	if ihdr.Width != 16 || ihdr.Height != 9 {
		t.Errorf("IHDR dims = %dx%d, want 16x9", ihdr.Width, ihdr.Height)
	}
	if ihdr.ChannelCount() != 4 {
		t.Errorf("ChannelCount() = %d, want 4 (RGBA)", ihdr.ChannelCount())
	}
}

func TestCodecEnumerateChunks(t *testing.T) {
	data := buildTestPNG(t, 4, 4)
	server := newPNGServer(t, data)
	defer server.Close()

	s, err := rangestreams.New(context.Background(), server.URL, rangestreams.Interval{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()

	c := New(s)
	chunks, err := c.EnumerateChunks()
	if err != nil {
		t.Fatalf("EnumerateChunks failed: %v", err)
	}
	if _, ok := chunks["IHDR"]; !ok {
		t.Error("expected an IHDR chunk")
	}
	if _, ok := chunks["IEND"]; !ok {
		t.Error("expected an IEND chunk")
	}
	if len(chunks["IHDR"]) != 1 {
		t.Errorf("IHDR chunk count = %d, want 1", len(chunks["IHDR"]))
	}
}
