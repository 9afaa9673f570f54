// Package rangestreams presents a remote byte-addressable HTTP resource —
// one that advertises Accept-Ranges: bytes — as a single logical, file-like
// object whose contents are fetched on demand via Range GETs.
//
// A RangeStream registers the byte intervals a caller intends to read,
// issues the corresponding Fetcher calls, and arbitrates overlaps so that
// every byte position in the resource is owned by at most one live response
// stream at a time. Format-aware codecs (see the codec subpackages) build on
// top of this to walk container headers (ZIP, TAR, PNG, .conda) using
// end-relative ranges without downloading payload bytes.
package rangestreams
