package match

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestMatch_ScalarEquals(t *testing.T) {
	assert.True(t, Match(float64(1), Equals, 1).Passed)
	assert.True(t, Match("a", Equals, "a").Passed)
	assert.True(t, Match(nil, Equals, nil).Passed)

	r := Match("a", Equals, "b")
	assert.False(t, r.Passed)
	assert.Contains(t, r.Message, `expected "b"`)
}

func TestMatch_ObjectEquals(t *testing.T) {
	actual := map[string]any{"name": "widget", "count": float64(2)}

	assert.True(t, Match(actual, Equals, map[string]any{
		"name":  "widget",
		"count": float64(2),
	}).Passed)

	// extra actual key fails strict equality
	r := Match(actual, Equals, map[string]any{"name": "widget"})
	assert.False(t, r.Passed)
	assert.Contains(t, r.Message, "$.count")

	// missing key reports its path
	r = Match(map[string]any{}, Equals, map[string]any{"name": "widget"})
	assert.False(t, r.Passed)
	assert.Contains(t, r.Message, "$.name")
}

func TestMatch_NestedPathInMessage(t *testing.T) {
	actual := map[string]any{
		"user": map[string]any{"roles": []any{"admin", "dev"}},
	}
	expected := map[string]any{
		"user": map[string]any{"roles": []any{"admin", "ops"}},
	}
	r := Match(actual, Equals, expected)
	assert.False(t, r.Passed)
	assert.Contains(t, r.Message, "$.user.roles[1]")
}

func TestMatch_ArrayEquals(t *testing.T) {
	assert.True(t, Match(
		[]any{float64(1), float64(2)},
		Equals,
		[]any{float64(1), float64(2)},
	).Passed)

	r := Match([]any{float64(1)}, Equals, []any{float64(1), float64(2)})
	assert.False(t, r.Passed)
	assert.Contains(t, r.Message, "array length 1, expected 2")
}

func TestMatch_Markers(t *testing.T) {
	actual := map[string]any{
		"id":     uuid.NewString(),
		"name":   "widget",
		"count":  float64(3),
		"active": true,
		"tags":   []any{"a"},
		"meta":   map[string]any{},
		"extra":  "anything",
		"gone":   nil,
	}
	expected := map[string]any{
		"id":     "#uuid",
		"name":   "#string",
		"count":  "#number",
		"active": "#boolean",
		"tags":   "#array",
		"meta":   "#object",
		"extra":  "#ignore",
		"gone":   "#null",
	}
	r := Match(actual, Equals, expected)
	assert.True(t, r.Passed, r.Message)
}

func TestMatch_MarkerFailures(t *testing.T) {
	cases := []struct {
		actual any
		marker string
	}{
		{float64(1), "#string"},
		{"x", "#number"},
		{"x", "#boolean"},
		{"not-a-uuid", "#uuid"},
		{"x", "#null"},
		{nil, "#notnull"},
		{"x", "#array"},
		{"x", "#object"},
	}
	for _, tc := range cases {
		r := Match(tc.actual, Equals, tc.marker)
		assert.False(t, r.Passed, "marker %s against %v", tc.marker, tc.actual)
	}
}

func TestMatch_Regex(t *testing.T) {
	assert.True(t, Match("abc-123", Equals, "#regex [a-z]+-\\d+").Passed)

	r := Match("nope", Equals, "#regex ^\\d+$")
	assert.False(t, r.Passed)
	assert.Contains(t, r.Message, "did not match")
}

func TestMatch_NotPresent(t *testing.T) {
	actual := map[string]any{"name": "widget"}

	assert.True(t, Match(actual, Equals, map[string]any{
		"name":  "widget",
		"debug": "#notpresent",
	}).Passed)

	r := Match(map[string]any{"name": "w", "debug": true}, Equals, map[string]any{
		"name":  "w",
		"debug": "#notpresent",
	})
	assert.False(t, r.Passed)
	assert.Contains(t, r.Message, "expected key to be absent")
}

func TestMatch_ContainsObject(t *testing.T) {
	actual := map[string]any{"name": "widget", "count": float64(2), "extra": "x"}

	assert.True(t, Match(actual, Contains, map[string]any{"name": "widget"}).Passed)

	r := Match(actual, Contains, map[string]any{"missing": "y"})
	assert.False(t, r.Passed)
}

func TestMatch_ContainsArray(t *testing.T) {
	actual := []any{
		map[string]any{"sku": "a1"},
		map[string]any{"sku": "b2"},
	}

	assert.True(t, Match(actual, Contains, []any{
		map[string]any{"sku": "b2"},
	}).Passed)

	r := Match(actual, Contains, []any{map[string]any{"sku": "zz"}})
	assert.False(t, r.Passed)
	assert.Contains(t, r.Message, "no element matching")
}

func TestMatch_ContainsString(t *testing.T) {
	assert.True(t, Match("hello world", Contains, "world").Passed)
	assert.False(t, Match("hello world", Contains, "mars").Passed)
}

func TestMatch_NotContains(t *testing.T) {
	assert.True(t, Match([]any{"a", "b"}, NotContains, []any{"c"}).Passed)

	r := Match([]any{"a", "b"}, NotContains, []any{"a"})
	assert.False(t, r.Passed)
	assert.Contains(t, r.Message, "to not contain")
}

func TestMatch_NotEquals(t *testing.T) {
	assert.True(t, Match("a", NotEquals, "b").Passed)
	assert.False(t, Match("a", NotEquals, "a").Passed)
}

func TestOp_String(t *testing.T) {
	assert.Equal(t, "==", Equals.String())
	assert.Equal(t, "!=", NotEquals.String())
	assert.Equal(t, "contains", Contains.String())
	assert.Equal(t, "!contains", NotContains.String())
}
