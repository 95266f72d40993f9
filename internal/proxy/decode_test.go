package proxy

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

const sampleHTML = "<html><head><title>Test</title></head><body>Hello World</body></html>"

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("failed to compress: %v", err)
	}
	w.Close()
	return buf.Bytes()
}

func brotliBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("failed to compress: %v", err)
	}
	w.Close()
	return buf.Bytes()
}

func rawDeflateBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		t.Fatalf("failed to create deflate writer: %v", err)
	}
	w.Write(data)
	w.Close()
	return buf.Bytes()
}

func zlibBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	w.Write(data)
	w.Close()
	return buf.Bytes()
}

func zstdBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("failed to create zstd encoder: %v", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil)
}

func TestDecodeBody(t *testing.T) {
	plain := []byte(sampleHTML)

	tests := []struct {
		name     string
		encoding string
		body     []byte
	}{
		{"identity", "", plain},
		{"explicit identity", "identity", plain},
		{"gzip", "gzip", gzipBytes(t, plain)},
		{"gzip upper case", "GZIP", gzipBytes(t, plain)},
		{"deflate zlib wrapped", "deflate", zlibBytes(t, plain)},
		{"deflate raw", "deflate", rawDeflateBytes(t, plain)},
		{"brotli", "br", brotliBytes(t, plain)},
		{"zstd", "zstd", zstdBytes(t, plain)},
		{"stacked gzip then br", "gzip, br", brotliBytes(t, gzipBytes(t, plain))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc, err := DecodeBody(bytes.NewReader(tt.body), tt.encoding)
			if err != nil {
				t.Fatalf("DecodeBody: %v", err)
			}
			defer rc.Close()

			got, err := io.ReadAll(rc)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if string(got) != sampleHTML {
				t.Errorf("decoded body = %q, want %q", got, sampleHTML)
			}
		})
	}
}

func TestDecodeBody_Errors(t *testing.T) {
	if _, err := DecodeBody(strings.NewReader("x"), "compress"); err == nil {
		t.Error("expected error for unsupported encoding")
	}
	if _, err := DecodeBody(strings.NewReader("not gzip at all"), "gzip"); err == nil {
		t.Error("expected error for corrupt gzip header")
	}
}
