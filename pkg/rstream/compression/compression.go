// Package compression implements the sub-entry batch codecs a chunk's
// compressed entries are framed with: a registry keyed by the low 7 bits
// of an entry's type byte, preloaded with "none" and "gzip" and open to
// registering further codecs.
package compression

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// Type identifies a sub-entry batch's compression algorithm.
type Type byte

const (
	None Type = 0
	Gzip Type = 1
)

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case Gzip:
		return "gzip"
	default:
		return fmt.Sprintf("reserved(%d)", byte(t))
	}
}

// Compressor compresses a concatenated batch of framed sub-entry records
// for the wire, and decompresses it back on the read side.
// uncompressedSize is the size() hint recorded in the sub-entry header,
// used to preallocate the decompression buffer.
type Compressor interface {
	Type() Type
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte, uncompressedSize int) ([]byte, error)
}

type noneCompressor struct{}

func (noneCompressor) Type() Type                                   { return None }
func (noneCompressor) Compress(data []byte) ([]byte, error)          { return data, nil }
func (noneCompressor) Decompress(data []byte, _ int) ([]byte, error) { return data, nil }

// gzipCompressor uses klauspost/compress's drop-in, faster gzip codec; it
// still writes and reads the standard gzip container format.
type gzipCompressor struct{}

func (gzipCompressor) Type() Type { return Gzip }

func (gzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("gzip compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip compress: %w", err)
	}
	return buf.Bytes(), nil
}

func (gzipCompressor) Decompress(data []byte, uncompressedSize int) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip decompress: %w", err)
	}
	defer r.Close()

	out := bytes.NewBuffer(make([]byte, 0, uncompressedSize))
	if _, err := io.Copy(out, r); err != nil {
		return nil, fmt.Errorf("gzip decompress: %w", err)
	}
	return out.Bytes(), nil
}

// Registry resolves a Type to a Compressor.
type Registry struct {
	mu          sync.RWMutex
	compressors map[Type]Compressor
}

// NewRegistry returns a Registry preloaded with None and Gzip.
func NewRegistry() *Registry {
	r := &Registry{compressors: make(map[Type]Compressor, 4)}
	r.Register(noneCompressor{})
	r.Register(gzipCompressor{})
	return r
}

func (r *Registry) Register(c Compressor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.compressors[c.Type()] = c
}

func (r *Registry) Get(t Type) (Compressor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.compressors[t]
	return c, ok
}
