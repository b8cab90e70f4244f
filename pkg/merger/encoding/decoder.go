// Package encoding normalizes record-file bytes to UTF-8 before parsing.
// Input files are UTF-8 by contract, but upstream producers occasionally emit
// byte-order marks or legacy single-byte encodings; transcoding here keeps the
// loader's JSON decoding strict.
package encoding

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decoder converts raw file content to UTF-8.
type Decoder interface {
	// DecodeToUTF8 returns the UTF-8 bytes and the name of the encoding the
	// content was decoded from ("utf-8" for the pass-through case).
	DecodeToUTF8(content []byte) ([]byte, string, error)
}

// charsetDecoder implements Decoder using golang.org/x/net/html/charset
// detection with an optional configured fallback encoding.
type charsetDecoder struct {
	defaultEncoding string
}

// NewCharsetDecoder creates a Decoder. defaultEncoding, when non-empty, names
// the IANA encoding assumed for content that is not valid UTF-8 (e.g.
// "windows-1252"); when empty, detection decides.
func NewCharsetDecoder(defaultEncoding string) Decoder {
	return &charsetDecoder{defaultEncoding: defaultEncoding}
}

func (d *charsetDecoder) DecodeToUTF8(content []byte) ([]byte, string, error) {
	if bytes.HasPrefix(content, utf8BOM) {
		return content[len(utf8BOM):], "utf-8", nil
	}
	if utf8.Valid(content) {
		return content, "utf-8", nil
	}

	name := d.defaultEncoding
	enc, _ := charset.Lookup(name)
	if enc == nil {
		var detected string
		enc, detected, _ = charset.DetermineEncoding(content, "application/json")
		name = detected
	}
	if enc == nil {
		return nil, "", fmt.Errorf("cannot determine encoding for non-UTF-8 content")
	}

	decoded, _, err := transform.Bytes(enc.NewDecoder(), content)
	if err != nil {
		return nil, name, fmt.Errorf("transcoding from %s failed: %w", name, err)
	}
	return decoded, name, nil
}
