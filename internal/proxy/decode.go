package proxy

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// DecodeBody wraps body so that reads yield the payload with every
// Content-Encoding layer removed. Encodings are undone in reverse order of
// application; "identity" and empty values are skipped.
func DecodeBody(body io.Reader, contentEncoding string) (io.ReadCloser, error) {
	var layers []string
	for _, enc := range strings.Split(contentEncoding, ",") {
		enc = strings.ToLower(strings.TrimSpace(enc))
		if enc != "" && enc != "identity" {
			layers = append(layers, enc)
		}
	}

	r := io.NopCloser(body)
	closers := []io.Closer{}
	for i := len(layers) - 1; i >= 0; i-- {
		next, err := decodeLayer(r, layers[i])
		if err != nil {
			closeAll(closers)
			return nil, err
		}
		closers = append(closers, next)
		r = next
	}
	if len(closers) == 0 {
		return r, nil
	}
	return &multiCloser{Reader: r, closers: closers}, nil
}

func decodeLayer(r io.Reader, encoding string) (io.ReadCloser, error) {
	switch encoding {
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return gz, nil
	case "deflate":
		return newDeflateReader(r)
	case "br":
		return io.NopCloser(brotli.NewReader(r)), nil
	case "zstd":
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return zr.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("unsupported content-encoding %q", encoding)
	}
}

// newDeflateReader accepts both zlib-wrapped streams (RFC 9110 "deflate")
// and the raw DEFLATE streams some servers send instead.
func newDeflateReader(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	header, err := br.Peek(2)
	if err == nil && isZlibHeader(header) {
		zr, err := zlib.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("deflate: %w", err)
		}
		return zr, nil
	}
	return flate.NewReader(br), nil
}

func isZlibHeader(h []byte) bool {
	// CM must be 8 (deflate) and the 16-bit header a multiple of 31.
	return h[0]&0x0f == 8 && (uint16(h[0])<<8|uint16(h[1]))%31 == 0
}

type multiCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiCloser) Close() error {
	return closeAll(m.closers)
}

func closeAll(closers []io.Closer) error {
	var first error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
