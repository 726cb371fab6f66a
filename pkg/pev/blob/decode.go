package blob

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

var (
	// ErrMalformedBlob is matched by every decode failure.
	ErrMalformedBlob = errors.New("malformed blob")
	// ErrMarkerNotFound means the page does not contain the marker.
	ErrMarkerNotFound = errors.New("blob marker not found")
	// ErrUnbalanced means the literal after the marker never closes.
	ErrUnbalanced = errors.New("blob literal is unbalanced")
)

// MalformedBlobError reports cleaned text that still is not JSON.
type MalformedBlobError struct {
	Snippet string
	Err     error
}

func (e *MalformedBlobError) Error() string {
	return fmt.Sprintf("malformed blob near %q: %v", e.Snippet, e.Err)
}

func (e *MalformedBlobError) Unwrap() error { return e.Err }

func (e *MalformedBlobError) Is(target error) bool { return target == ErrMalformedBlob }

// Extract returns the object or array literal that follows marker in page.
// String literals are skipped while matching brackets, so braces inside
// quoted text do not end the literal early.
func Extract(page, marker string) (string, error) {
	at := strings.Index(page, marker)
	if at < 0 {
		return "", fmt.Errorf("%w: %q", ErrMarkerNotFound, marker)
	}
	rest := page[at+len(marker):]
	start := strings.IndexAny(rest, "{[")
	if start < 0 {
		return "", fmt.Errorf("%w: no literal after %q", ErrUnbalanced, marker)
	}

	depth := 0
	for i := start; i < len(rest); i++ {
		switch c := rest[i]; c {
		case '"', '\'', '`':
			j, closed := scanString(rest, i, c)
			if !closed {
				return "", ErrUnbalanced
			}
			i = j - 1
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return rest[start : i+1], nil
			}
		}
	}
	return "", ErrUnbalanced
}

// Decoder cleans and decodes blobs. A strict decoder only accepts what
// Clean turns into valid JSON. A lenient one additionally runs json-repair
// and then Hjson over the cleaned text before reporting failure.
type Decoder struct {
	Lenient bool
}

// Decode cleans raw and decodes it into maps, slices, float64, string,
// bool and nil values.
func (d Decoder) Decode(raw string) (any, error) {
	cleaned := Clean(raw)

	var v any
	err := json.Unmarshal([]byte(cleaned), &v)
	if err == nil {
		return v, nil
	}
	if d.Lenient {
		if lv, lerr := decodeLenient(cleaned); lerr == nil {
			return lv, nil
		}
	}
	return nil, &MalformedBlobError{Snippet: snippet(cleaned, err), Err: err}
}

// DecodePage extracts the literal after marker and decodes it.
func (d Decoder) DecodePage(page, marker string) (any, error) {
	lit, err := Extract(page, marker)
	if err != nil {
		return nil, err
	}
	return d.Decode(lit)
}

func decodeLenient(cleaned string) (any, error) {
	var v any
	if repaired, err := jsonrepair.RepairJSON(cleaned); err == nil {
		if err := json.Unmarshal([]byte(repaired), &v); err == nil {
			return v, nil
		}
	}

	var h any
	if err := hjson.Unmarshal([]byte(cleaned), &h); err != nil {
		return nil, err
	}
	// round-trip so callers see encoding/json types only
	b, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func snippet(s string, err error) string {
	const width = 40
	at := 0
	var se *json.SyntaxError
	if errors.As(err, &se) {
		at = int(se.Offset)
	}
	from := max(0, at-width/2)
	to := min(len(s), from+width)
	return s[from:to]
}
