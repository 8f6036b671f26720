// Package loader reads configuration documents from disk under a size bound.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultMaxSize bounds the size of a configuration document. Documents must
// be strictly smaller than the bound.
const DefaultMaxSize int64 = 51200

var (
	ErrNotFound = errors.New("cannot open configuration file")
	ErrTooLarge = errors.New("configuration file too large")
	ErrRead     = errors.New("cannot read configuration file")
)

// LoadError describes a failed Load. Kind is one of the sentinel errors above.
type LoadError struct {
	Path  string
	Size  int64
	Limit int64
	Kind  error
	Err   error
}

func (e *LoadError) Error() string {
	switch {
	case e.Kind == ErrTooLarge:
		return fmt.Sprintf("%s: %v (%d bytes, limit %d)", e.Path, e.Kind, e.Size, e.Limit)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v: %v", e.Path, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Path, e.Kind)
	}
}

func (e *LoadError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Load reads the whole file at path. A maxSize <= 0 selects DefaultMaxSize.
// The returned slice holds exactly the bytes read.
func Load(path string, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Kind: ErrNotFound, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, &LoadError{Path: path, Kind: ErrRead, Err: err}
	}
	if info.IsDir() {
		return nil, &LoadError{Path: path, Kind: ErrRead, Err: errors.New("is a directory")}
	}
	size := info.Size()
	if size >= maxSize {
		return nil, &LoadError{Path: path, Size: size, Limit: maxSize, Kind: ErrTooLarge}
	}

	return readExact(path, f, size)
}

// readExact reads exactly size bytes from r. A file that shrank after Stat
// fails with ErrRead wrapping io.ErrUnexpectedEOF.
func readExact(path string, r io.Reader, size int64) ([]byte, error) {
	buf := make([]byte, size)
	n, err := io.ReadFull(r, buf)
	if err != nil {
		return nil, &LoadError{Path: path, Size: size, Kind: ErrRead, Err: fmt.Errorf("read %d of %d bytes: %w", n, size, err)}
	}
	return buf[:n], nil
}

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF16LE = []byte{0xFF, 0xFE}
)

// Decode normalizes a raw document to UTF-8. UTF-16 input with a byte order
// mark is transcoded, a UTF-8 mark is dropped, anything else is returned as is.
func Decode(raw []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(raw, bomUTF8):
		return raw[len(bomUTF8):], nil
	case bytes.HasPrefix(raw, bomUTF16BE), bytes.HasPrefix(raw, bomUTF16LE):
		dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
		out, _, err := transform.Bytes(dec, raw)
		if err != nil {
			return nil, fmt.Errorf("decode utf-16: %w", err)
		}
		return out, nil
	}
	return raw, nil
}
