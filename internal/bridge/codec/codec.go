// Package codec encodes and decodes the fixed-width badge record format
// used by the turnstile hardware.
//
// A record line is exactly 61 characters wide, no delimiters:
//
//	chars 1-16   badge number, left-zero-padded digits
//	chars 17-56  person name, left-aligned, space-padded
//	chars 57-61  fixed literal tag identifying the line as a badge record
package codec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gateline/bridge/internal/bridge/types"
)

const (
	badgeWidth = 16
	nameWidth  = 40
	tagWidth   = 5
	lineWidth  = badgeWidth + nameWidth + tagWidth

	// DefaultTag is the record tag emitted by the turnstile firmware.
	DefaultTag = "00110"
)

var (
	// ErrMalformedRecord marks a line that is the right shape to be a badge
	// record but fails validation.  Callers log and skip it; it is never
	// fatal to a batch.
	ErrMalformedRecord = errors.New("malformed badge record")

	// ErrBlankRecord marks a filler line (blank badge, blank name, short or
	// empty line).  These are expected in real logs and are dropped silently.
	ErrBlankRecord = errors.New("blank badge record")
)

// Codec decodes and encodes badge record lines for a given tag literal.
type Codec struct {
	Tag string
}

// New returns a Codec for the given tag, falling back to DefaultTag when
// tag is empty.
func New(tag string) Codec {
	if tag == "" {
		tag = DefaultTag
	}
	return Codec{Tag: tag}
}

// Decode parses one raw line into an AccessRecord.  offset is the byte
// position of the line start in its source file; the caller fills Path and
// Timestamp.
//
// Returns ErrBlankRecord for filler lines and ErrMalformedRecord for lines
// that fail field validation.
func (c Codec) Decode(line string, offset int64) (types.AccessRecord, error) {
	var rec types.AccessRecord

	// The hardware terminates lines with CRLF; tolerate any trailing
	// whitespace past the tag.
	line = strings.TrimRight(line, " \t\r\n")
	if line == "" {
		return rec, ErrBlankRecord
	}

	runes := []rune(line)
	if len(runes) < lineWidth {
		// Short lines are noise, not errors.
		return rec, ErrBlankRecord
	}

	badge, err := canonicalBadge(string(runes[:badgeWidth]))
	if err != nil {
		return rec, err
	}
	if badge == "" {
		// All-zero or all-space badge field: a placeholder line.
		return rec, ErrBlankRecord
	}

	name := strings.TrimSpace(string(runes[badgeWidth : badgeWidth+nameWidth]))
	if name == "" {
		// Non-person placeholder line.
		return rec, ErrBlankRecord
	}

	tag := string(runes[badgeWidth+nameWidth:])
	if tag != c.tag() {
		return rec, fmt.Errorf("tag %q (want %q): %w", tag, c.tag(), ErrMalformedRecord)
	}

	rec.Badge = badge
	rec.Name = name
	rec.Offset = offset
	return rec, nil
}

// Encode is the symmetric inverse of Decode: it produces one fixed-width
// line (without newline) for the given badge number and name.
func (c Codec) Encode(badge, name string) (string, error) {
	badge = strings.TrimSpace(badge)
	badge = strings.TrimLeft(badge, "0")
	if badge == "" {
		return "", fmt.Errorf("empty badge number: %w", ErrMalformedRecord)
	}
	if len(badge) > badgeWidth {
		return "", fmt.Errorf("badge %q longer than %d digits: %w", badge, badgeWidth, ErrMalformedRecord)
	}
	for _, r := range badge {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("badge %q has non-digit %q: %w", badge, r, ErrMalformedRecord)
		}
	}

	name = strings.TrimSpace(name)
	nameRunes := []rune(name)
	if len(nameRunes) > nameWidth {
		nameRunes = nameRunes[:nameWidth]
	}

	var b strings.Builder
	b.WriteString(strings.Repeat("0", badgeWidth-len(badge)))
	b.WriteString(badge)
	b.WriteString(string(nameRunes))
	b.WriteString(strings.Repeat(" ", nameWidth-len(nameRunes)))
	b.WriteString(c.tag())
	return b.String(), nil
}

func (c Codec) tag() string {
	if c.Tag == "" {
		return DefaultTag
	}
	return c.Tag
}

// canonicalBadge strips leading zeros and surrounding whitespace from the
// 16-character badge field.  The field may contain only digits and spaces;
// anything else is a malformed record.
func canonicalBadge(field string) (string, error) {
	for _, r := range field {
		if (r < '0' || r > '9') && r != ' ' {
			return "", fmt.Errorf("badge field %q has non-digit %q: %w", field, r, ErrMalformedRecord)
		}
	}
	badge := strings.TrimSpace(field)
	badge = strings.TrimLeft(badge, "0")
	return badge, nil
}
