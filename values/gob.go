package values

import (
	"bytes"
	"encoding/gob"
)

// wireValue mirrors Value's three fields, all exported so gob's default
// struct encoding can see them; Value itself keeps kind/i/f unexported so
// every other package is forced through the constructors/accessors above.
type wireValue struct {
	Kind Kind
	I    int64
	F    float64
}

// GobEncode/GobDecode let Value cross encoding/gob (used by session save/
// load) without exposing its fields to the rest of the program. gob
// consults these methods instead of reflecting over Value's
// (unexported, otherwise invisible) fields whenever a Value appears inside
// a larger gob-encoded structure such as a heap.Dict or a session's globals
// map.
func (v Value) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(wireValue{Kind: v.kind, I: v.i, F: v.f}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v *Value) GobDecode(data []byte) error {
	var w wireValue
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return err
	}
	v.kind, v.i, v.f = w.Kind, w.I, w.F
	return nil
}
