package rangestreams

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// FetchResult is what a Fetcher returns for a single Range GET (or HEAD
// probe): the response status, its headers, and a lazy byte source for the
// body. Body must yield exactly Length(interval) bytes for a successful
// Range GET, and the caller is responsible for closing it.
type FetchResult struct {
	Status  int
	Headers http.Header
	Body    io.ReadCloser
}

// Fetcher is the capability the core calls into to turn a URL and an
// interval into response headers plus a lazy byte stream. The core calls
// Fetch synchronously from Add and makes no assumption about ordering with
// any other Fetcher call.
type Fetcher interface {
	Fetch(ctx context.Context, url string, iv Interval) (*FetchResult, error)
}

// HeadFetcher is an optional capability: a Fetcher that can also answer a
// plain HEAD request to learn total length without spending a wasted
// zero-length Range GET.
type HeadFetcher interface {
	Head(ctx context.Context, url string) (*FetchResult, error)
}

// ContentRange is the parsed form of a "Content-Range: bytes first-last/total"
// response header.
type ContentRange struct {
	First, Last, Total int64
}

// ParseContentRange parses a Content-Range header value of the form
// "bytes first-last/total". The core uses Total to learn the resource's
// total length the first time it sees one.
func ParseContentRange(header string) (ContentRange, error) {
	const prefix = "bytes "
	if !strings.HasPrefix(header, prefix) {
		return ContentRange{}, fmt.Errorf("rangestreams: malformed Content-Range %q", header)
	}
	rest := header[len(prefix):]
	rangePart, totalPart, ok := strings.Cut(rest, "/")
	if !ok {
		return ContentRange{}, fmt.Errorf("rangestreams: malformed Content-Range %q", header)
	}
	firstStr, lastStr, ok := strings.Cut(rangePart, "-")
	if !ok {
		return ContentRange{}, fmt.Errorf("rangestreams: malformed Content-Range %q", header)
	}
	first, err := strconv.ParseInt(firstStr, 10, 64)
	if err != nil {
		return ContentRange{}, fmt.Errorf("rangestreams: malformed Content-Range %q: %w", header, err)
	}
	last, err := strconv.ParseInt(lastStr, 10, 64)
	if err != nil {
		return ContentRange{}, fmt.Errorf("rangestreams: malformed Content-Range %q: %w", header, err)
	}
	total, err := strconv.ParseInt(totalPart, 10, 64)
	if err != nil {
		return ContentRange{}, fmt.Errorf("rangestreams: malformed Content-Range %q: %w", header, err)
	}
	return ContentRange{First: first, Last: last, Total: total}, nil
}

// rangeHeaderValue renders the "Range: bytes=a-(b-1)" header value for iv,
// using "0-0" for an empty-interval probe.
func rangeHeaderValue(iv Interval) string {
	if iv.IsEmpty() {
		return "bytes=0-0"
	}
	start, end, _ := iv.Termini()
	return fmt.Sprintf("bytes=%d-%d", start, end)
}

// HTTPFetcher is the default Fetcher, backed by go-retryablehttp so that
// transient Range-GET failures are retried with backoff. Retry and backoff
// policy is entirely the Fetcher's concern; the core never retries a fetch
// itself.
type HTTPFetcher struct {
	Client *retryablehttp.Client

	// RequireAcceptRanges, when true, rejects a 200 response that does not
	// advertise Accept-Ranges: bytes with ErrUnsupportedRanges. A 206
	// response is accepted whatever its Accept-Ranges header says.
	RequireAcceptRanges bool
}

// NewHTTPFetcher builds an HTTPFetcher with sensible retry defaults: up to
// 4 retries with exponential backoff, and retryablehttp's own logging
// disabled (the core logs through zap instead, see log.go).
func NewHTTPFetcher() *HTTPFetcher {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = 4
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	return &HTTPFetcher{Client: client, RequireAcceptRanges: true}
}

// Fetch issues a Range GET for iv and returns the response headers and body
// unread. Status 206 (Partial Content) is required for a non-empty
// interval; a full 200 response is tolerated only for the empty-interval
// probe.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, iv Interval) (*FetchResult, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set("Range", rangeHeaderValue(iv))

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	if f.RequireAcceptRanges && resp.StatusCode == http.StatusOK && resp.Header.Get("Accept-Ranges") != "bytes" {
		resp.Body.Close()
		return nil, ErrUnsupportedRanges
	}
	if resp.StatusCode != http.StatusPartialContent && !(iv.IsEmpty() && resp.StatusCode == http.StatusOK) {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %s", ErrNonPartial, resp.Status)
	}

	return &FetchResult{Status: resp.StatusCode, Headers: resp.Header, Body: resp.Body}, nil
}

// Head issues a plain HEAD request to learn total length without spending a
// Range GET.
func (f *HTTPFetcher) Head(ctx context.Context, url string) (*FetchResult, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: HEAD status %s", ErrNonPartial, resp.Status)
	}
	return &FetchResult{Status: resp.StatusCode, Headers: resp.Header, Body: resp.Body}, nil
}
