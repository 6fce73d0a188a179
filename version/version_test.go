package version

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input      string
		valid      bool
		normalized string
	}{
		{"1.2.3", true, "1.2.3"},
		{"  1.2.3  ", true, "1.2.3"},
		{"17.0.10_7", true, "17.0.10.7"},
		{"2024-09", true, "2024.9"},
		{"1.2.3-rc1", true, "1.2.3.rc.1"},
		{"1.2.3RC1", true, "1.2.3.rc.1"},
		{"3.9.0-M1", true, "3.9.0.milestone.1"},
		{"1.0.Final", true, "1.0"},
		{"5.4.0.GA", true, "5.4.0"},
		{"1.0b2", true, "1.0.beta.2"},
		{"007.010", true, "7.10"},
		{"", false, ""},
		{"   ", false, ""},
		{"latest", false, ""},
		{"v1.2\x00", false, ""},
		{"1.2.ü", false, ""},
		{"1.2 <2", false, ""},
		{"1.2 3", false, ""},
		{"foo<bar>1", false, ""},
		{"1.0,2", false, ""},
		{"[1.0]", false, ""},
		{"1.*", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			id := Parse(tt.input)
			assert.Equal(t, tt.valid, id.Valid())
			if tt.valid {
				assert.Equal(t, tt.normalized, id.Normalized())
			}
		})
	}
}

func TestParseKeepsRawText(t *testing.T) {
	id := Parse(" 17.0.10_7 ")
	assert.Equal(t, "17.0.10_7", id.String())
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want Ordering
	}{
		{"1.2.0", "1.2", Equal},
		{"1.2.0-beta", "1.2.0", Less},
		{"1.2-beta", "1.2", Less},
		{"1.2", "1.2.1", Less},
		{"1.10", "1.9", Greater},
		{"1.2.1", "1.2-beta", Greater},
		{"1.0-alpha", "1.0-beta", Less},
		{"1.0-beta", "1.0-rc1", Less},
		{"1.0-rc1", "1.0-rc2", Less},
		{"1.0-rc2", "1.0", Less},
		{"1.0-rc1", "1.0-cr1", Equal},
		{"1.0.Final", "1.0", Equal},
		{"1.0-snapshot", "1.0-rc", Greater},
		{"1.0-foo", "1.0-bar", Greater},
		{"1.0-foo", "1.0", Less},
		{"1.0-dev", "1.0-alpha", Greater},
		{"1.0-dev", "1.0-milestone", Less},
		{"1.0-preview1", "1.0-pre1", Equal},
		{"1.0-pre", "1.0-rc", Less},
		{"1.0-zzz", "1.0-snapshot", Greater},
		{"1.0-zzz", "1.0", Less},
		{"17.0.10_7", "17.0.10", Greater},
		{"17.0.10_7", "17.0.10+7", Equal},
		{"2024-09", "2024.10", Less},
		{"1.2.3.4.5.6.7.8.9.99999999999999999999999999", "1.2.3.4.5.6.7.8.9.100000000000000000000000000", Less},
		{"99999999999999999999999999999", "99999999999999999999999999998", Greater},
		{"V1.2", "v1.2", Equal},
		{"1.2", "garbage", Incomparable},
		{"", "1.0", Incomparable},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.a, tt.b))
			assert.Equal(t, invert(tt.want), Compare(tt.b, tt.a))
		})
	}
}

func invert(o Ordering) Ordering {
	switch o {
	case Less:
		return Greater
	case Greater:
		return Less
	}
	return o
}

func TestCompareTransitive(t *testing.T) {
	inputs := []string{
		"1", "1.0", "1.0.0", "1.0-alpha", "1.0-alpha1", "1.0-beta", "1.0-rc1",
		"1.0-snapshot", "1.0.1", "1.0.1-beta", "1.1", "1.1-m2", "1.10", "2",
		"2.0.0-rc", "0.9", "1.0.0.0.1", "1.0-zzz", "1.0-aaa", "1.0.Final",
		"17.0.10_7", "17.0.10", "2024-09", "2024.10.1",
	}
	ids := make([]Identifier, len(inputs))
	for i, in := range inputs {
		ids[i] = MustParse(in)
	}

	for _, a := range ids {
		assert.Equal(t, Equal, a.Compare(a), a.String())
		for _, b := range ids {
			for _, c := range ids {
				if a.Compare(b) == Less && b.Compare(c) == Less {
					assert.Equal(t, Less, a.Compare(c), "%s < %s < %s", a, b, c)
				}
				if a.Compare(b) == Equal && b.Compare(c) == Equal {
					assert.Equal(t, Equal, a.Compare(c), "%s = %s = %s", a, b, c)
				}
			}
		}
	}
}

func TestSortAndMax(t *testing.T) {
	ids := []Identifier{
		Parse("1.10"), Parse("bogus"), Parse("1.2"), Parse("1.2-beta"), Parse("1.9.9"),
	}
	Sort(ids)

	got := make([]string, len(ids))
	for i, id := range ids {
		got[i] = id.String()
	}
	assert.Equal(t, []string{"bogus", "1.2-beta", "1.2", "1.9.9", "1.10"}, got)
	assert.Equal(t, "1.10", Max(ids...).String())
	assert.False(t, Max(Parse("nope")).Valid())
}

func TestComponents(t *testing.T) {
	id := Parse("3.4.1-rc2")
	assert.Equal(t, []string{"3", "4", "1"}, id.Numbers())
	assert.Equal(t, "3", id.Component(0))
	assert.Equal(t, "1", id.Component(2))
	assert.Equal(t, "", id.Component(3))
	assert.True(t, id.IsPrerelease())
	assert.False(t, Parse("3.4.1").IsPrerelease())
	assert.False(t, Parse("33.0.0-jre").IsPrerelease())
	assert.True(t, Parse("2.0.0.M1").IsPrerelease())
	assert.Equal(t, "3", id.Major())
}

func TestIdentifierJSON(t *testing.T) {
	var payload struct {
		V Identifier `json:"v"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"v":"2.0.1"}`), &payload))
	assert.True(t, payload.V.Valid())
	assert.Equal(t, Equal, payload.V.Compare(MustParse("2.0.1")))

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":"2.0.1"}`, string(out))
}

func TestMustParsePanics(t *testing.T) {
	assert.Panics(t, func() { MustParse("nothing") })
}
