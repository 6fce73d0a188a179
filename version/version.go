// Package version parses and orders arbitrary upstream version strings.
//
// Parsing is tolerant: it never fails. Text that cannot be interpreted as a
// version yields an Identifier whose Valid method reports false. Invalid
// identifiers are incomparable with everything and never fall inside a Range.
//
//	a := version.Parse("17.0.10_7")
//	b := version.Parse("17.0.10")
//	a.Compare(b) // version.Greater
//
//	r := version.ParseRange(">=1.2.0")
//	r.Contains(version.Parse("1.2")) // true
package version

import (
	"strings"
	"unicode"
)

// Ordering is the result of comparing two identifiers.
type Ordering int

const (
	Less Ordering = iota - 1
	Equal
	Greater
	Incomparable
)

func (o Ordering) String() string {
	switch o {
	case Less:
		return "less"
	case Equal:
		return "equal"
	case Greater:
		return "greater"
	default:
		return "incomparable"
	}
}

// Segment is one numeric or textual component of an identifier.
type Segment struct {
	Text    string
	Numeric bool
}

// Identifier is a parsed version string. The zero value is invalid.
type Identifier struct {
	raw      string
	segments []Segment
	valid    bool
}

// qualifierAliases maps short or alternative qualifier spellings to the
// canonical name used for comparison.
var qualifierAliases = map[string]string{
	"a":         "alpha",
	"b":         "beta",
	"m":         "milestone",
	"cr":        "rc",
	"preview":   "pre",
	"snap":      "snapshot",
	"candidate": "rc",
}

// releaseMarkers are qualifiers that mean "this is the release" and are
// dropped during parsing, so 1.0.Final equals 1.0.
var releaseMarkers = map[string]bool{
	"ga":      true,
	"final":   true,
	"release": true,
}

// rangeSyntax holds characters that belong to range notation. An identifier
// containing one of them, or inner whitespace, is invalid.
const rangeSyntax = "<>=!,*[]()"

// Parse parses text into an Identifier. It never fails; see Identifier.Valid.
func Parse(text string) Identifier {
	raw := strings.TrimSpace(text)
	id := Identifier{raw: raw}
	if raw == "" {
		return id
	}

	hasDigit := false
	for _, r := range raw {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) || unicode.IsSpace(r) {
			return id
		}
		if strings.ContainsRune(rangeSyntax, r) {
			return id
		}
		if r >= '0' && r <= '9' {
			hasDigit = true
		}
	}
	if !hasDigit {
		return id
	}

	id.segments = split(strings.ToLower(raw))
	id.valid = len(id.segments) > 0
	return id
}

// MustParse is like Parse but panics on invalid input. Intended for tests
// and static tables.
func MustParse(text string) Identifier {
	id := Parse(text)
	if !id.Valid() {
		panic("version: invalid identifier " + text)
	}
	return id
}

func split(s string) []Segment {
	var segments []Segment
	var cur strings.Builder
	curNumeric := false

	flush := func() {
		if cur.Len() == 0 {
			return
		}
		text := cur.String()
		cur.Reset()
		if curNumeric {
			text = strings.TrimLeft(text, "0")
			if text == "" {
				text = "0"
			}
			segments = append(segments, Segment{Text: text, Numeric: true})
			return
		}
		if releaseMarkers[text] {
			return
		}
		if alias, ok := qualifierAliases[text]; ok {
			text = alias
		}
		segments = append(segments, Segment{Text: text})
	}

	for _, r := range s {
		isDigit := r >= '0' && r <= '9'
		isLetter := r >= 'a' && r <= 'z'
		switch {
		case !isDigit && !isLetter:
			flush()
		case cur.Len() > 0 && isDigit != curNumeric:
			flush()
			cur.WriteRune(r)
			curNumeric = isDigit
		default:
			if cur.Len() == 0 {
				curNumeric = isDigit
			}
			cur.WriteRune(r)
		}
	}
	flush()
	return segments
}

// Valid reports whether the identifier was parsed successfully.
func (id Identifier) Valid() bool {
	return id.valid
}

// String returns the trimmed original text.
func (id Identifier) String() string {
	return id.raw
}

// Segments returns a copy of the parsed segments.
func (id Identifier) Segments() []Segment {
	out := make([]Segment, len(id.segments))
	copy(out, id.segments)
	return out
}

// Normalized returns the canonical dotted form of the segments, e.g.
// "1.2.0-beta.1" becomes "1.2.0.beta.1". Empty for invalid identifiers.
func (id Identifier) Normalized() string {
	parts := make([]string, len(id.segments))
	for i, s := range id.segments {
		parts[i] = s.Text
	}
	return strings.Join(parts, ".")
}

// Numbers returns the leading run of numeric segments.
func (id Identifier) Numbers() []string {
	var nums []string
	for _, s := range id.segments {
		if !s.Numeric {
			break
		}
		nums = append(nums, s.Text)
	}
	return nums
}

// Component returns the i-th leading numeric segment or "" if absent.
func (id Identifier) Component(i int) string {
	nums := id.Numbers()
	if i < 0 || i >= len(nums) {
		return ""
	}
	return nums[i]
}

// Major returns the first numeric segment, or "" when there is none.
func (id Identifier) Major() string {
	return id.Component(0)
}

// prereleaseQualifiers are the canonical qualifiers that mark a build as not
// yet released.
var prereleaseQualifiers = map[string]bool{
	"alpha":     true,
	"beta":      true,
	"dev":       true,
	"milestone": true,
	"pre":       true,
	"rc":        true,
	"snapshot":  true,
	"nightly":   true,
}

// IsPrerelease reports whether the identifier carries a pre-release
// qualifier such as beta or rc. Other words, e.g. "jre", do not count.
func (id Identifier) IsPrerelease() bool {
	for _, s := range id.segments {
		if !s.Numeric && prereleaseQualifiers[s.Text] {
			return true
		}
	}
	return false
}

// MarshalText implements encoding.TextMarshaler.
func (id Identifier) MarshalText() ([]byte, error) {
	return []byte(id.raw), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *Identifier) UnmarshalText(text []byte) error {
	*id = Parse(string(text))
	return nil
}
