package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding names reported in Result.Encoding.
const (
	EncodingUTF8         = "utf-8"
	EncodingUTF8Fallback = "utf-8-replace"
)

// source is an opened CSV file with the decoder already chosen.
type source struct {
	f        *os.File
	r        io.Reader
	encoding string
}

func (s *source) Close() error { return s.f.Close() }

// openSource opens path and decides the decoding. A strict UTF-8 pass runs
// first; on invalid input the file is reopened once with a BOM tolerant
// decoder that replaces bad bytes with U+FFFD. A leading BOM is always dropped.
func openSource(path string) (*source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &InputError{Source: path, Err: err}
	}

	valid, err := strictUTF8(f)
	if err != nil {
		_ = f.Close()
		return nil, &InputError{Source: path, Err: fmt.Errorf("read: %w", err)}
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, &InputError{Source: path, Err: fmt.Errorf("rewind: %w", err)}
	}

	if valid {
		return &source{f: f, r: transform.NewReader(f, unicode.UTF8BOM.NewDecoder()), encoding: EncodingUTF8}, nil
	}
	// The BOM decoder passes bytes through; the UTF-8 decoder does the replacing.
	dec := transform.Chain(unicode.UTF8BOM.NewDecoder(), unicode.UTF8.NewDecoder())
	return &source{f: f, r: transform.NewReader(f, dec), encoding: EncodingUTF8Fallback}, nil
}

// strictUTF8 reports whether r is entirely valid UTF-8.
func strictUTF8(r io.Reader) (bool, error) {
	_, err := io.Copy(io.Discard, transform.NewReader(r, encoding.UTF8Validator))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, encoding.ErrInvalidUTF8):
		return false, nil
	default:
		return false, err
	}
}
