package session

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"

	"github.com/parcadei/ouros-go/heap"
	"github.com/parcadei/ouros-go/intern"
	"github.com/parcadei/ouros-go/registry"
	"github.com/parcadei/ouros-go/resource"
	"github.com/parcadei/ouros-go/runtime"
	"github.com/parcadei/ouros-go/values"
	"github.com/parcadei/ouros-go/vm"
)

// persistMagic and persistVersion self-describe the on-disk format: magic
// bytes followed by a version number, so Load rejects a mismatched or
// unrecognized file outright rather than guessing at its layout.
var persistMagic = [5]byte{'O', 'U', 'R', 'O', 'S'}

const persistVersion = uint32(1)

// payload is the gob-encoded body of a saved session, following the magic
// and version header. Exception classes and builtins are never persisted;
// they are process-wide and reinstalled fresh by runtime.Bootstrap on Load,
// matching registry.Clone's own "builtins are shared by reference" policy.
type payload struct {
	Heap      heap.Snapshot
	Interns   intern.TableSnapshot
	Functions map[string]*registry.CodeObject
	Globals   map[string]values.Value
	Limits    resource.Limits
}

// Save serializes the full session (heap, intern table, function registry,
// namespace, resource limits) to an opaque versioned file at path. Undo
// history is intentionally not persisted: a loaded session starts with an
// empty undo stack, the same way a process restart would.
func (s *Session) Save(path string) error {
	p := payload{
		Heap:      s.h.Snapshot(),
		Interns:   s.interns.Snapshot(),
		Functions: make(map[string]*registry.CodeObject),
		Globals:   cloneGlobals(s.vm.Globals()),
		Limits:    s.limits,
	}
	for _, name := range s.reg.Names() {
		code, ok := s.reg.GetFunction(name)
		if ok {
			p.Functions[name] = code
		}
	}

	var buf bytes.Buffer
	buf.Write(persistMagic[:])
	var versionBytes [4]byte
	binary.BigEndian.PutUint32(versionBytes[:], persistVersion)
	buf.Write(versionBytes[:])
	if err := gob.NewEncoder(&buf).Encode(p); err != nil {
		return fmt.Errorf("session: encoding snapshot: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Load deserializes a session previously written by Save. A mismatched
// magic or a newer-than-known version is rejected rather than guessed
// at.
func Load(path string) (*Session, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(raw) < len(persistMagic)+4 {
		return nil, fmt.Errorf("session: %s is too short to be a session file", path)
	}
	var magic [5]byte
	copy(magic[:], raw[:5])
	if magic != persistMagic {
		return nil, fmt.Errorf("session: %s is not a recognized session file", path)
	}
	version := binary.BigEndian.Uint32(raw[5:9])
	if version != persistVersion {
		return nil, fmt.Errorf("session: %s has unsupported version %d (want %d)", path, version, persistVersion)
	}

	var p payload
	if err := gob.NewDecoder(bytes.NewReader(raw[9:])).Decode(&p); err != nil {
		return nil, fmt.Errorf("session: decoding snapshot: %w", err)
	}

	tracker := resource.NewTracker(p.Limits)
	h := heap.FromSnapshot(p.Heap, tracker)

	reg := registry.New()
	if err := runtime.Bootstrap(h, reg); err != nil {
		return nil, err
	}
	for _, code := range p.Functions {
		if err := reg.RegisterFunction(code); err != nil {
			return nil, err
		}
	}

	interns := intern.New()
	for _, str := range p.Interns.Strings {
		interns.Intern(str)
	}
	for _, sig := range p.Interns.Functions {
		code, _ := reg.GetFunction(sig.QualifiedName)
		interns.InternFunction(sig, code)
	}

	s := &Session{
		h:       h,
		interns: interns,
		reg:     reg,
		tracker: tracker,
		limits:  p.Limits,
	}
	s.vm = vm.New(h, interns, reg, tracker, nil)
	s.vm.LoadGlobals(p.Globals)
	return s, nil
}
