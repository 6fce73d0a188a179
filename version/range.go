package version

import (
	"strings"
)

// BoundKind describes one side of a Range.
type BoundKind int

const (
	Unbounded BoundKind = iota
	Inclusive
	Exclusive
)

// Bound is one end of a Range.
type Bound struct {
	Kind    BoundKind
	Version Identifier
}

// Range is a set of versions between two bounds. The zero value matches
// nothing; use Any for the unbounded range.
type Range struct {
	Min    Bound
	Max    Bound
	prefix []Segment
	raw    string
	valid  bool
}

// Any returns the range matching every valid identifier.
func Any() Range {
	return Range{raw: "*", valid: true}
}

// Exact returns the range containing only v.
func Exact(v Identifier) Range {
	if !v.Valid() {
		return Range{raw: v.String()}
	}
	return Range{
		Min:   Bound{Kind: Inclusive, Version: v},
		Max:   Bound{Kind: Inclusive, Version: v},
		raw:   v.String(),
		valid: true,
	}
}

// AtLeast returns the range [v, ∞).
func AtLeast(v Identifier) Range {
	return newRange(Bound{Kind: Inclusive, Version: v}, Bound{}, ">="+v.String())
}

// Between builds a range from explicit bounds. An unsatisfiable combination
// yields a range that matches nothing.
func Between(min, max Bound) Range {
	r := newRange(min, max, "")
	r.raw = r.String()
	return r
}

func newRange(min, max Bound, raw string) Range {
	r := Range{Min: min, Max: max, raw: raw}
	r.valid = r.check()
	return r
}

func (r Range) check() bool {
	if r.Min.Kind != Unbounded && !r.Min.Version.Valid() {
		return false
	}
	if r.Max.Kind != Unbounded && !r.Max.Version.Valid() {
		return false
	}
	if r.Min.Kind == Unbounded || r.Max.Kind == Unbounded {
		return true
	}
	switch r.Min.Version.Compare(r.Max.Version) {
	case Less:
		return true
	case Equal:
		return r.Min.Kind == Inclusive && r.Max.Kind == Inclusive
	}
	return false
}

// ParseRange parses a textual range. It never fails: text that cannot be
// interpreted yields a range that matches nothing (Valid reports false).
//
// Accepted forms:
//
//	*                  every version
//	1.2.0              exactly 1.2.0 (and equivalents such as 1.2)
//	1.2.* or 1.2.x     every version whose leading numbers are 1.2
//	>=1.2.0, >1, <2, <=2, =1.0
//	>=1.2,<2.0         conjunction of comparators
//	[1.0,2.0)  (,2.0]  [1.0,)
//	1.0>2.0            inclusive on both ends
func ParseRange(text string) Range {
	raw := strings.TrimSpace(text)
	invalid := Range{raw: raw}

	switch {
	case raw == "":
		return invalid
	case raw == "*" || raw == "latest":
		r := Any()
		r.raw = raw
		return r
	case strings.HasPrefix(raw, "[") || strings.HasPrefix(raw, "("):
		return parseBrackets(raw)
	case strings.ContainsAny(raw[:1], "<>=!"):
		return parseComparators(raw)
	case strings.HasSuffix(raw, ".*") || strings.HasSuffix(raw, ".x") || strings.HasSuffix(raw, "*"):
		return parsePrefix(raw)
	case strings.Contains(raw, ">"):
		parts := strings.SplitN(raw, ">", 2)
		lo, hi := Parse(parts[0]), Parse(parts[1])
		var min, max Bound
		if strings.TrimSpace(parts[0]) != "" {
			min = Bound{Kind: Inclusive, Version: lo}
		}
		if strings.TrimSpace(parts[1]) != "" {
			max = Bound{Kind: Inclusive, Version: hi}
		}
		return newRange(min, max, raw)
	}

	v := Parse(raw)
	if !v.Valid() {
		return invalid
	}
	return Exact(v)
}

func parseBrackets(raw string) Range {
	invalid := Range{raw: raw}
	last := raw[len(raw)-1]
	if last != ']' && last != ')' {
		return invalid
	}
	body := raw[1 : len(raw)-1]
	parts := strings.Split(body, ",")
	if len(parts) == 1 {
		// [1.0] is an exact match in Maven notation.
		if raw[0] == '[' && last == ']' {
			v := Parse(parts[0])
			if !v.Valid() {
				return invalid
			}
			r := Exact(v)
			r.raw = raw
			return r
		}
		return invalid
	}
	if len(parts) != 2 {
		return invalid
	}

	var min, max Bound
	if lo := strings.TrimSpace(parts[0]); lo != "" {
		min = Bound{Kind: Exclusive, Version: Parse(lo)}
		if raw[0] == '[' {
			min.Kind = Inclusive
		}
	}
	if hi := strings.TrimSpace(parts[1]); hi != "" {
		max = Bound{Kind: Exclusive, Version: Parse(hi)}
		if last == ']' {
			max.Kind = Inclusive
		}
	}
	return newRange(min, max, raw)
}

func parseComparators(raw string) Range {
	invalid := Range{raw: raw}
	var min, max Bound

	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		op, rest := splitOperator(token)
		v := Parse(rest)
		if !v.Valid() {
			return invalid
		}
		switch op {
		case ">=":
			min = tighterMin(min, Bound{Kind: Inclusive, Version: v})
		case ">":
			min = tighterMin(min, Bound{Kind: Exclusive, Version: v})
		case "<=":
			max = tighterMax(max, Bound{Kind: Inclusive, Version: v})
		case "<":
			max = tighterMax(max, Bound{Kind: Exclusive, Version: v})
		case "=", "==", "":
			min = tighterMin(min, Bound{Kind: Inclusive, Version: v})
			max = tighterMax(max, Bound{Kind: Inclusive, Version: v})
		default:
			return invalid
		}
	}
	if min.Kind == Unbounded && max.Kind == Unbounded {
		return invalid
	}
	return newRange(min, max, raw)
}

func splitOperator(token string) (string, string) {
	i := 0
	for i < len(token) && strings.ContainsRune("<>=!", rune(token[i])) {
		i++
	}
	return token[:i], strings.TrimSpace(token[i:])
}

func tighterMin(cur, next Bound) Bound {
	if cur.Kind == Unbounded {
		return next
	}
	switch next.Version.Compare(cur.Version) {
	case Greater:
		return next
	case Equal:
		if next.Kind == Exclusive {
			return next
		}
	}
	return cur
}

func tighterMax(cur, next Bound) Bound {
	if cur.Kind == Unbounded {
		return next
	}
	switch next.Version.Compare(cur.Version) {
	case Less:
		return next
	case Equal:
		if next.Kind == Exclusive {
			return next
		}
	}
	return cur
}

func parsePrefix(raw string) Range {
	invalid := Range{raw: raw}
	stem := strings.TrimSuffix(raw, "*")
	stem = strings.TrimSuffix(stem, "x")
	stem = strings.TrimRight(stem, ".-_")
	if stem == "" {
		r := Any()
		r.raw = raw
		return r
	}
	v := Parse(stem)
	if !v.Valid() || v.IsPrerelease() {
		return invalid
	}
	return Range{
		Min:    Bound{Kind: Inclusive, Version: v},
		prefix: v.segments,
		raw:    raw,
		valid:  true,
	}
}

// Valid reports whether the range was parsed successfully and is
// satisfiable.
func (r Range) Valid() bool {
	return r.valid
}

// Unbounded reports whether the range accepts every valid identifier.
func (r Range) Unbounded() bool {
	return r.valid && r.prefix == nil && r.Min.Kind == Unbounded && r.Max.Kind == Unbounded
}

// Contains reports whether v lies inside the range. It is false for invalid
// identifiers and for invalid ranges.
func (r Range) Contains(v Identifier) bool {
	if !r.valid || !v.Valid() {
		return false
	}
	if r.prefix != nil {
		return hasPrefix(v.segments, r.prefix)
	}
	switch r.Min.Kind {
	case Inclusive:
		if v.Compare(r.Min.Version) == Less {
			return false
		}
	case Exclusive:
		if v.Compare(r.Min.Version) != Greater {
			return false
		}
	}
	switch r.Max.Kind {
	case Inclusive:
		if v.Compare(r.Max.Version) == Greater {
			return false
		}
	case Exclusive:
		if v.Compare(r.Max.Version) != Less {
			return false
		}
	}
	return true
}

// ContainsString parses s and reports whether it lies inside the range.
func (r Range) ContainsString(s string) bool {
	return r.Contains(Parse(s))
}

func hasPrefix(segments, prefix []Segment) bool {
	for i, p := range prefix {
		s, ok := segmentAt(segments, i)
		if !ok {
			if p.Text != "0" {
				return false
			}
			continue
		}
		if !s.Numeric || s.Text != p.Text {
			return false
		}
	}
	return true
}

// Raw returns the text the range was parsed from.
func (r Range) Raw() string {
	return r.raw
}

// String returns a canonical rendering of the range.
func (r Range) String() string {
	if !r.valid {
		return r.raw
	}
	if r.prefix != nil {
		return r.Min.Version.Normalized() + ".*"
	}
	if r.Min.Kind == Unbounded && r.Max.Kind == Unbounded {
		return "*"
	}
	if r.Min.Kind == Inclusive && r.Max.Kind == Inclusive && r.Min.Version.Equal(r.Max.Version) {
		return r.Min.Version.String()
	}

	var b strings.Builder
	if r.Min.Kind == Inclusive {
		b.WriteByte('[')
	} else {
		b.WriteByte('(')
	}
	if r.Min.Kind != Unbounded {
		b.WriteString(r.Min.Version.String())
	}
	b.WriteByte(',')
	if r.Max.Kind != Unbounded {
		b.WriteString(r.Max.Version.String())
	}
	if r.Max.Kind == Inclusive {
		b.WriteByte(']')
	} else {
		b.WriteByte(')')
	}
	return b.String()
}

// MarshalText implements encoding.TextMarshaler using the original text.
func (r Range) MarshalText() ([]byte, error) {
	return []byte(r.raw), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It never fails.
func (r *Range) UnmarshalText(text []byte) error {
	*r = ParseRange(string(text))
	return nil
}
