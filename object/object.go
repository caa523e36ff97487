// Package object implements the host-facing Object mirror: a serializable
// value tree with no heap references, the only currency exchanged across
// the sandbox boundary. Conversions between a heap.Heap's Value graph and
// an Object tree always deep-copy, so a caller never gets a live reference
// into VM-owned state.
//
// Object's JSON encoding uses Python-style primitive/container aliases
// ({"int":N}, {"str":S}, {"list":[...]}, ...), built on the standard
// library's encoding/json.
package object

import (
	"encoding/json"
	"fmt"
)

// Kind tags an Object's variant, mirroring the subset of values.Kind /
// heap.Data that can cross the host boundary.
type Kind byte

const (
	KindNone Kind = iota
	KindBool
	KindInt
	KindFloat
	KindStr
	KindBytes
	KindList
	KindTuple
	KindDict
	KindSet
	KindException
)

// DictEntry preserves insertion order across the boundary; the wire format
// represents a dict as an ordered list of [key, value] pairs rather than a
// JSON object, since Object keys are not restricted to strings.
type DictEntry struct {
	Key   Object
	Value Object
}

// Exception carries a raised Python exception's shape across the boundary:
// type, message, and traceback.
type Exception struct {
	Type      string
	Message   string
	Traceback []TracebackEntry
}

type TracebackEntry struct {
	FunctionName string
	Line         int32
}

// Object is the serializable tree exchanged across the sandbox boundary:
// primitives, list/tuple/dict/set of Object, plus Exception for thrown
// results. Exactly one of the typed fields is meaningful, selected by Kind.
type Object struct {
	Kind Kind

	Bool  bool
	Int   int64
	Float float64
	Str   string
	Bytes []byte

	Items   []Object    // List, Tuple, Set
	Entries []DictEntry // Dict

	Exc *Exception
}

func None() Object               { return Object{Kind: KindNone} }
func Bool(b bool) Object         { return Object{Kind: KindBool, Bool: b} }
func Int(n int64) Object         { return Object{Kind: KindInt, Int: n} }
func Float(f float64) Object     { return Object{Kind: KindFloat, Float: f} }
func Str(s string) Object        { return Object{Kind: KindStr, Str: s} }
func BytesVal(b []byte) Object   { return Object{Kind: KindBytes, Bytes: b} }
func List(items []Object) Object { return Object{Kind: KindList, Items: items} }
func Tuple(items []Object) Object {
	return Object{Kind: KindTuple, Items: items}
}
func Set(items []Object) Object { return Object{Kind: KindSet, Items: items} }
func Dict(entries []DictEntry) Object {
	return Object{Kind: KindDict, Entries: entries}
}
func Raised(exc *Exception) Object { return Object{Kind: KindException, Exc: exc} }

// wireEnvelope is the on-the-wire shape for one alias key, used for both
// marshalling and unmarshalling. Only one field is populated per direction.
type wireEnvelope struct {
	Int   *int64           `json:"int,omitempty"`
	Str   *string          `json:"str,omitempty"`
	Bool  *bool            `json:"bool,omitempty"`
	Float *float64         `json:"float,omitempty"`
	Bytes *string          `json:"bytes,omitempty"` // the raw bytes as a JSON string, not base64
	List  *[]Object        `json:"list,omitempty"`
	Tuple *[]Object        `json:"tuple,omitempty"`
	Dict  *[][2]Object     `json:"dict,omitempty"`
	Set   *[]Object        `json:"set,omitempty"`
	Exc   *wireException   `json:"exception,omitempty"`
}

type wireException struct {
	Type      string           `json:"type"`
	Message   string           `json:"message"`
	Traceback []TracebackEntry `json:"traceback,omitempty"`
}

// MarshalJSON renders the NoneType literal "NoneType" bare and every other
// kind as a single-key alias object.
func (o Object) MarshalJSON() ([]byte, error) {
	if o.Kind == KindNone {
		return json.Marshal("NoneType")
	}
	var w wireEnvelope
	switch o.Kind {
	case KindBool:
		w.Bool = &o.Bool
	case KindInt:
		w.Int = &o.Int
	case KindFloat:
		w.Float = &o.Float
	case KindStr:
		w.Str = &o.Str
	case KindBytes:
		s := string(o.Bytes)
		w.Bytes = &s
	case KindList:
		items := o.Items
		w.List = &items
	case KindTuple:
		items := o.Items
		w.Tuple = &items
	case KindSet:
		items := o.Items
		w.Set = &items
	case KindDict:
		pairs := make([][2]Object, len(o.Entries))
		for i, e := range o.Entries {
			pairs[i] = [2]Object{e.Key, e.Value}
		}
		w.Dict = &pairs
	case KindException:
		w.Exc = &wireException{Type: o.Exc.Type, Message: o.Exc.Message, Traceback: o.Exc.Traceback}
	default:
		return nil, fmt.Errorf("object: unknown kind %d", o.Kind)
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts the bare "NoneType" literal or exactly one alias
// key; any other shape is rejected rather than guessed at.
func (o *Object) UnmarshalJSON(data []byte) error {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		if bare != "NoneType" {
			return fmt.Errorf("object: unrecognized bare literal %q", bare)
		}
		*o = None()
		return nil
	}

	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	keys := 0
	for _, set := range []bool{w.Bool != nil, w.Int != nil, w.Float != nil, w.Str != nil, w.Bytes != nil, w.List != nil, w.Tuple != nil, w.Set != nil, w.Dict != nil, w.Exc != nil} {
		if set {
			keys++
		}
	}
	if keys > 1 {
		return fmt.Errorf("object: wire value has %d alias keys, want exactly one", keys)
	}
	switch {
	case w.Bool != nil:
		*o = Bool(*w.Bool)
	case w.Int != nil:
		*o = Int(*w.Int)
	case w.Float != nil:
		*o = Float(*w.Float)
	case w.Str != nil:
		*o = Str(*w.Str)
	case w.Bytes != nil:
		*o = BytesVal([]byte(*w.Bytes))
	case w.List != nil:
		*o = List(*w.List)
	case w.Tuple != nil:
		*o = Tuple(*w.Tuple)
	case w.Set != nil:
		*o = Set(*w.Set)
	case w.Dict != nil:
		entries := make([]DictEntry, len(*w.Dict))
		for i, pair := range *w.Dict {
			entries[i] = DictEntry{Key: pair[0], Value: pair[1]}
		}
		*o = Dict(entries)
	case w.Exc != nil:
		*o = Raised(&Exception{Type: w.Exc.Type, Message: w.Exc.Message, Traceback: w.Exc.Traceback})
	default:
		return fmt.Errorf("object: wire value has no recognized alias key")
	}
	return nil
}
