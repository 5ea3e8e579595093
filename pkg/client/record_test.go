package client

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_PreservesOrder(t *testing.T) {
	var rec Record
	err := json.Unmarshal([]byte(`{"zeta": 1, "alpha": "a", "mid": [1, 2], "nested": {"b": 1, "a": 2}}`), &rec)
	require.NoError(t, err)

	assert.Equal(t, []string{"zeta", "alpha", "mid", "nested"}, rec.Keys())
	assert.Equal(t, 4, rec.Len())

	out, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":1,"alpha":"a","mid":[1,2],"nested":{"b":1,"a":2}}`, string(out))
}

func TestRecord_RejectsNonObject(t *testing.T) {
	for _, input := range []string{`[1,2]`, `"text"`, `42`, `null`} {
		t.Run(input, func(t *testing.T) {
			var rec Record
			assert.Error(t, json.Unmarshal([]byte(input), &rec))
		})
	}
}

func TestRecord_DuplicateKeyReplaces(t *testing.T) {
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(`{"a": 1, "b": 2, "a": 3}`), &rec))

	assert.Equal(t, []string{"a", "b"}, rec.Keys())
	assert.Equal(t, "3", rec.Cell("a"))
}

func TestRecord_Cell(t *testing.T) {
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(
		`{"s": "軟體工程師", "n": 30000, "f": 1.5, "b": true, "z": null, "list": [ "a", "b" ], "obj": {"k": "v"}}`,
	), &rec))

	tests := map[string]string{
		"s":       "軟體工程師",
		"n":       "30000",
		"f":       "1.5",
		"b":       "true",
		"z":       "",
		"list":    `["a","b"]`,
		"obj":     `{"k":"v"}`,
		"missing": "",
	}
	for key, want := range tests {
		assert.Equal(t, want, rec.Cell(key), "cell %q", key)
	}
}

func TestRecord_Scalar(t *testing.T) {
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(`{"s": "2007001004", "n": 2007001004, "b": false, "o": {}}`), &rec))

	v, ok := rec.Scalar("s")
	assert.True(t, ok)
	assert.Equal(t, "2007001004", v)

	v, ok = rec.Scalar("n")
	assert.True(t, ok)
	assert.Equal(t, "2007001004", v)

	_, ok = rec.Scalar("b")
	assert.False(t, ok)
	_, ok = rec.Scalar("o")
	assert.False(t, ok)
	_, ok = rec.Scalar("missing")
	assert.False(t, ok)
}

func TestRecord_SetAndClone(t *testing.T) {
	rec := NewRecord(
		Field{Key: "a", Value: json.RawMessage(`1`)},
		Field{Key: "b", Value: json.RawMessage(`2`)},
	)

	clone := rec.Clone()
	clone.Set("a", json.RawMessage(`10`))
	clone.Set("c", json.RawMessage(`3`))

	assert.Equal(t, []string{"a", "b"}, rec.Keys())
	assert.Equal(t, "1", rec.Cell("a"))
	assert.Equal(t, []string{"a", "b", "c"}, clone.Keys())
	assert.Equal(t, "10", clone.Cell("a"))
}

func TestRecord_ZeroValueMarshals(t *testing.T) {
	var rec Record
	out, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(out))
}
