package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBadChapter is returned for chapter strings that are not a
// non-negative decimal number.
var ErrBadChapter = errors.New("malformed chapter number")

// chapterScale is the number of fractional digits a chapter may carry.
// Sources ship half-chapters ("10.5") and the occasional "10.75"
// omake; three digits covers everything observed in the wild.
const chapterScale = 3

// Chapter is a release number. It is stored as integer thousandths so
// that comparison is exact ("10.50" == "10.5") and ordering is
// deterministic across sweeps.
type Chapter struct {
	millis int64
}

// ParseChapter parses a decimal chapter string such as "12" or "10.5".
// Negative values, empty strings and anything with more than three
// fractional digits are rejected.
func ParseChapter(s string) (Chapter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Chapter{}, fmt.Errorf("%w: empty", ErrBadChapter)
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" || len(frac) > chapterScale {
		return Chapter{}, fmt.Errorf("%w: %q", ErrBadChapter, s)
	}

	var millis int64
	for _, r := range whole {
		if r < '0' || r > '9' {
			return Chapter{}, fmt.Errorf("%w: %q", ErrBadChapter, s)
		}
		millis = millis*10 + int64(r-'0')
		if millis > 1<<52 {
			return Chapter{}, fmt.Errorf("%w: %q out of range", ErrBadChapter, s)
		}
	}
	millis *= 1000

	scale := int64(100)
	for _, r := range frac {
		if r < '0' || r > '9' {
			return Chapter{}, fmt.Errorf("%w: %q", ErrBadChapter, s)
		}
		millis += int64(r-'0') * scale
		scale /= 10
	}

	return Chapter{millis: millis}, nil
}

// ChapterFromMillis rebuilds a Chapter from its stored representation.
func ChapterFromMillis(m int64) Chapter {
	if m < 0 {
		m = 0
	}
	return Chapter{millis: m}
}

// Millis returns the storage representation (thousandths).
func (c Chapter) Millis() int64 { return c.millis }

// IsZero reports whether the chapter is the zero value (a fresh
// subscription that has never been told about any release).
func (c Chapter) IsZero() bool { return c.millis == 0 }

// Less reports whether c is strictly before other.
func (c Chapter) Less(other Chapter) bool { return c.millis < other.millis }

// Equal reports numeric equality.
func (c Chapter) Equal(other Chapter) bool { return c.millis == other.millis }

// String renders the chapter the way a reader would say it: no
// trailing fractional zeroes, "0" for the zero value.
func (c Chapter) String() string {
	whole := c.millis / 1000
	frac := c.millis % 1000
	if frac == 0 {
		return fmt.Sprintf("%d", whole)
	}
	s := fmt.Sprintf("%d.%03d", whole, frac)
	return strings.TrimRight(s, "0")
}
