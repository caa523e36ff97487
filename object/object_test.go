package object

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONRoundTripPrimitives(t *testing.T) {
	cases := []struct {
		name string
		obj  Object
		wire string
	}{
		{"none", None(), `"NoneType"`},
		{"bool", Bool(true), `{"bool":true}`},
		{"int", Int(42), `{"int":42}`},
		{"float", Float(1.5), `{"float":1.5}`},
		{"str", Str("hi"), `{"str":"hi"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.obj)
			require.NoError(t, err)
			assert.JSONEq(t, tc.wire, string(data))

			var decoded Object
			require.NoError(t, json.Unmarshal(data, &decoded))
			assert.Equal(t, tc.obj, decoded)
		})
	}
}

func TestJSONRoundTripContainers(t *testing.T) {
	list := List([]Object{Int(1), Str("two"), Bool(false)})
	data, err := json.Marshal(list)
	require.NoError(t, err)

	var decoded Object
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, list, decoded)

	dict := Dict([]DictEntry{{Key: Str("a"), Value: Int(1)}})
	data, err = json.Marshal(dict)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, dict, decoded)
}

func TestJSONRejectsUnrecognizedBareLiteral(t *testing.T) {
	var decoded Object
	err := json.Unmarshal([]byte(`"something else"`), &decoded)
	assert.Error(t, err)
}

func TestJSONRejectsEmptyEnvelope(t *testing.T) {
	var decoded Object
	err := json.Unmarshal([]byte(`{}`), &decoded)
	assert.Error(t, err)
}

func TestExceptionRoundTrip(t *testing.T) {
	exc := Raised(&Exception{
		Type:    "ValueError",
		Message: "bad value",
		Traceback: []TracebackEntry{
			{FunctionName: "<module>", Line: 3},
		},
	})
	data, err := json.Marshal(exc)
	require.NoError(t, err)

	var decoded Object
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, exc, decoded)
}
