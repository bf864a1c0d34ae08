package tests

import (
	"testing"

	"github.com/chris-alexander-pop/system-design-library/pkg/rstream/compression"
)

func TestRegistryPreloadsNoneAndGzip(t *testing.T) {
	r := compression.NewRegistry()

	if _, ok := r.Get(compression.None); !ok {
		t.Fatal("expected none compressor to be registered")
	}
	if _, ok := r.Get(compression.Gzip); !ok {
		t.Fatal("expected gzip compressor to be registered")
	}
	if _, ok := r.Get(compression.Type(99)); ok {
		t.Fatal("expected unregistered type to be absent")
	}
}

func TestNoneRoundTrip(t *testing.T) {
	r := compression.NewRegistry()
	c, ok := r.Get(compression.None)
	if !ok {
		t.Fatal("none compressor missing")
	}

	payload := []byte("a standard entry payload")
	compressed, err := c.Compress(payload)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	decompressed, err := c.Decompress(compressed, len(payload))
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if string(decompressed) != string(payload) {
		t.Fatalf("round trip mismatch: got %q want %q", decompressed, payload)
	}
}

func TestGzipRoundTrip(t *testing.T) {
	r := compression.NewRegistry()
	c, ok := r.Get(compression.Gzip)
	if !ok {
		t.Fatal("gzip compressor missing")
	}

	payload := []byte("a sub-entry batch of several concatenated standard-framed records, repeated, repeated, repeated")
	compressed, err := c.Compress(payload)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if len(compressed) == 0 {
		t.Fatal("expected non-empty compressed output")
	}
	decompressed, err := c.Decompress(compressed, len(payload))
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if string(decompressed) != string(payload) {
		t.Fatalf("round trip mismatch: got %q want %q", decompressed, payload)
	}
}

func TestRegisterOverridesExisting(t *testing.T) {
	r := compression.NewRegistry()
	r.Register(fakeCompressor{})

	c, ok := r.Get(compression.Gzip)
	if !ok {
		t.Fatal("expected overridden type to still resolve")
	}
	if c.Type() != compression.Gzip {
		t.Fatalf("got type %v, want %v", c.Type(), compression.Gzip)
	}

	out, err := c.Compress([]byte("x"))
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if string(out) != "fake:x" {
		t.Fatalf("got %q, want override compressor to run", out)
	}
}

type fakeCompressor struct{}

func (fakeCompressor) Type() compression.Type { return compression.Gzip }
func (fakeCompressor) Compress(data []byte) ([]byte, error) {
	return append([]byte("fake:"), data...), nil
}
func (fakeCompressor) Decompress(data []byte, _ int) ([]byte, error) {
	return data, nil
}

func TestTypeString(t *testing.T) {
	cases := map[compression.Type]string{
		compression.None:      "none",
		compression.Gzip:      "gzip",
		compression.Type(200): "reserved(200)",
	}
	for typ, want := range cases {
		if got := typ.String(); got != want {
			t.Errorf("Type(%d).String() = %q, want %q", typ, got, want)
		}
	}
}
