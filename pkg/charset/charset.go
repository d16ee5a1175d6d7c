// Package charset resolves IANA character-set names and converts between
// Go strings and the byte representation of a file encoding.
package charset

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	apperrors "github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// Default is the charset used when none is configured.
const Default = "UTF-8"

// Lookup returns the encoding registered under the IANA name.
func Lookup(name string) (encoding.Encoding, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: empty charset name", apperrors.ErrUnknownCharset)
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrUnknownCharset, name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("%w: %s is not supported", apperrors.ErrUnknownCharset, name)
	}
	return enc, nil
}

// Name returns the canonical IANA name of enc, or "unknown".
func Name(enc encoding.Encoding) string {
	name, err := ianaindex.IANA.Name(enc)
	if err != nil {
		return "unknown"
	}
	return name
}

// Encode converts s into enc. Characters enc cannot represent are an error.
func Encode(enc encoding.Encoding, s string) ([]byte, error) {
	if isUTF8(enc) {
		return []byte(s), nil
	}
	out, err := enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("encoding to %s: %w", Name(enc), err)
	}
	return out, nil
}

// EncodeFragment encodes s for matching inside a larger text: any byte-order
// mark the encoder would emit at the start of a stream is dropped.
func EncodeFragment(enc encoding.Encoding, s string) ([]byte, error) {
	out, err := Encode(enc, s)
	if err != nil {
		return nil, err
	}
	if n := bomLen(enc); n > 0 && len(out) >= n {
		out = out[n:]
	}
	return out, nil
}

// Newline returns the encoded form of "\n" without any byte-order mark.
func Newline(enc encoding.Encoding) []byte {
	nl, err := EncodeFragment(enc, "\n")
	if err != nil || len(nl) == 0 {
		return []byte{'\n'}
	}
	return nl
}

// Decode converts b from enc into a Go string.
func Decode(enc encoding.Encoding, b []byte) (string, error) {
	if isUTF8(enc) {
		if !utf8.Valid(b) {
			return "", fmt.Errorf("decoding from UTF-8: %w", encoding.ErrInvalidUTF8)
		}
		return string(b), nil
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decoding from %s: %w", Name(enc), err)
	}
	return string(out), nil
}

// DecodeLenient converts b from enc, replacing malformed sequences with
// U+FFFD instead of failing.
func DecodeLenient(enc encoding.Encoding, b []byte) (string, error) {
	if isUTF8(enc) {
		return strings.ToValidUTF8(string(b), string(utf8.RuneError)), nil
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decoding from %s: %w", Name(enc), err)
	}
	return string(out), nil
}

// Valid reports whether b decodes cleanly under enc. Decoders that substitute
// U+FFFD for malformed input are treated as failing.
func Valid(enc encoding.Encoding, b []byte) bool {
	if isUTF8(enc) {
		return utf8.Valid(b)
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return false
	}
	return !bytes.ContainsRune(out, utf8.RuneError)
}

// TrimIncomplete drops a trailing partial UTF-8 sequence from a sample that
// was cut at an arbitrary byte boundary. Other encodings are returned as is.
func TrimIncomplete(enc encoding.Encoding, b []byte) []byte {
	if !isUTF8(enc) {
		return b
	}
	for i := 1; i < utf8.UTFMax && i <= len(b); i++ {
		c := b[len(b)-i]
		if c < utf8.RuneSelf {
			return b
		}
		if utf8.RuneStart(c) {
			if !utf8.FullRune(b[len(b)-i:]) {
				return b[:len(b)-i]
			}
			return b
		}
	}
	return b
}

func isUTF8(enc encoding.Encoding) bool {
	if enc == unicode.UTF8 {
		return true
	}
	return Name(enc) == "UTF-8"
}

// bomLen reports how many leading bytes the encoder adds to every stream.
func bomLen(enc encoding.Encoding) int {
	one, err1 := Encode(enc, "\n")
	two, err2 := Encode(enc, "\n\n")
	if err1 != nil || err2 != nil {
		return 0
	}
	unit := len(two) - len(one)
	if unit <= 0 || len(one) <= unit {
		return 0
	}
	return len(one) - unit
}
