package version

import "sort"

// Compare orders id relative to other. Incomparable is returned only when
// either side is invalid.
//
// Segments are walked left to right. Two numeric segments compare as
// integers of any length. Two textual segments compare lexically after
// alias canonicalisation. A numeric segment is greater than a textual one.
// When one side runs out, it behaves as an endless run of zeros: 1.2 equals
// 1.2.0 and is greater than 1.2-beta.
func (id Identifier) Compare(other Identifier) Ordering {
	if !id.valid || !other.valid {
		return Incomparable
	}

	n := len(id.segments)
	if len(other.segments) > n {
		n = len(other.segments)
	}
	for i := 0; i < n; i++ {
		a, aok := segmentAt(id.segments, i)
		b, bok := segmentAt(other.segments, i)
		if !aok && !bok {
			return Equal
		}
		if c := compareSegments(a, b); c != Equal {
			return c
		}
	}
	return Equal
}

var zero = Segment{Text: "0", Numeric: true}

func segmentAt(segments []Segment, i int) (Segment, bool) {
	if i < len(segments) {
		return segments[i], true
	}
	return zero, false
}

func compareSegments(a, b Segment) Ordering {
	switch {
	case a.Numeric && b.Numeric:
		return compareNumeric(a.Text, b.Text)
	case a.Numeric:
		return Greater
	case b.Numeric:
		return Less
	}
	switch {
	case a.Text < b.Text:
		return Less
	case a.Text > b.Text:
		return Greater
	}
	return Equal
}

// compareNumeric compares decimal digit strings without leading zeros.
func compareNumeric(a, b string) Ordering {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return Less
		}
		return Greater
	}
	switch {
	case a < b:
		return Less
	case a > b:
		return Greater
	}
	return Equal
}

// Compare is a convenience wrapper around Parse and Identifier.Compare.
func Compare(a, b string) Ordering {
	return Parse(a).Compare(Parse(b))
}

// Equal reports whether id and other compare equal.
func (id Identifier) Equal(other Identifier) bool {
	return id.Compare(other) == Equal
}

// Less reports whether id orders strictly before other.
func (id Identifier) Less(other Identifier) bool {
	return id.Compare(other) == Less
}

// Greater reports whether id orders strictly after other.
func (id Identifier) Greater(other Identifier) bool {
	return id.Compare(other) == Greater
}

// Sort sorts ids ascending. Invalid identifiers are moved to the front in
// their original relative order.
func Sort(ids []Identifier) {
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := ids[i], ids[j]
		if !a.valid || !b.valid {
			return !a.valid && b.valid
		}
		return a.Compare(b) == Less
	})
}

// Max returns the greatest valid identifier, or the zero Identifier if none
// of ids is valid.
func Max(ids ...Identifier) Identifier {
	var best Identifier
	for _, id := range ids {
		if !id.valid {
			continue
		}
		if !best.valid || id.Compare(best) == Greater {
			best = id
		}
	}
	return best
}
