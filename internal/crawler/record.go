package crawler

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode"
)

// Record is a normalized listing entry. It can only be built through
// NewRecord, so every Record holds a non-empty name, a non-negative price and
// an absolute URL.
type Record struct {
	name  string
	price int
	url   string
}

// NewRecord normalizes the raw fields of one listing entry.
func NewRecord(rawName, rawPrice, href string, origin *url.URL) (Record, error) {
	name := strings.TrimSpace(rawName)
	if name == "" {
		return Record{}, &RecordConstructionError{Field: "name", Value: rawName, Err: ErrEmptyName}
	}
	price, err := ParsePrice(rawPrice)
	if err != nil {
		return Record{}, &RecordConstructionError{Field: "price", Value: rawPrice, Err: err}
	}
	abs, err := ResolveURL(origin, href)
	if err != nil {
		return Record{}, &RecordConstructionError{Field: "url", Value: href, Err: err}
	}
	return Record{name: name, price: price, url: abs}, nil
}

// Name returns the trimmed display name.
func (r Record) Name() string { return r.name }

// Price returns the integer price.
func (r Record) Price() int { return r.price }

// URL returns the absolute listing URL.
func (r Record) URL() string { return r.url }

// Line renders the record in the space-separated output format.
func (r Record) Line() string {
	return r.name + " " + strconv.Itoa(r.price) + " " + r.url + "\n"
}

// String implements fmt.Stringer.
func (r Record) String() string {
	return strings.TrimSuffix(r.Line(), "\n")
}

type recordJSON struct {
	Name  string `json:"name"`
	Price int    `json:"price"`
	URL   string `json:"url"`
}

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{Name: r.name, Price: r.price, URL: r.url})
}

// ParsePrice converts a localized price label such as "1 234 ₴" into an
// integer. White space is removed and any trailing currency or unit glyphs are
// dropped before parsing. A ',' or '\'' is accepted only as a thousands
// separator, so "1 234,50 ₴" is rejected rather than read as 123450.
func ParsePrice(raw string) (int, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	label := []rune(strings.TrimRightFunc(b.String(), func(r rune) bool {
		return !unicode.IsDigit(r)
	}))
	if len(label) == 0 {
		return 0, fmt.Errorf("%w: no digits in %q", ErrInvalidPrice, raw)
	}
	digits := make([]rune, 0, len(label))
	for i, r := range label {
		switch {
		case r >= '0' && r <= '9':
			digits = append(digits, r)
		case isThousandsSeparator(r) && i > 0 && groupFollows(label[i+1:]):
		default:
			return 0, fmt.Errorf("%w: unexpected %q in %q", ErrInvalidPrice, r, raw)
		}
	}
	price, err := strconv.Atoi(string(digits))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPrice, err)
	}
	return price, nil
}

func isThousandsSeparator(r rune) bool { return r == ',' || r == '\'' }

// groupFollows reports whether rest starts with exactly three ASCII digits
// that end the label or are followed by another separator.
func groupFollows(rest []rune) bool {
	if len(rest) < 3 {
		return false
	}
	for _, r := range rest[:3] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(rest) == 3 || isThousandsSeparator(rest[3])
}

// ResolveURL resolves a page-relative href against the site origin.
func ResolveURL(origin *url.URL, href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", ErrMissingLink
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse href: %w", err)
	}
	if origin == nil {
		if !ref.IsAbs() {
			return "", fmt.Errorf("relative href %q without origin", href)
		}
		return ref.String(), nil
	}
	return origin.ResolveReference(ref).String(), nil
}
