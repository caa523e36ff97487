// Package sessionmgr implements a named collection of session.Session
// instances with a non-removable "default" session, lifecycle commands, and
// one-file-per-session persistence, behind a single mutex-guarded
// map-of-handles.
package sessionmgr

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/parcadei/ouros-go/resource"
	"github.com/parcadei/ouros-go/session"
)

// DefaultSessionID names the session that is always present and cannot be
// destroyed.
const DefaultSessionID = "default"

// Default resource limits applied to a session created without explicit
// overrides.
const (
	DefaultMaxAllocations = 1_000_000
	DefaultMaxMemoryBytes = 256 * 1024 * 1024
	DefaultMaxHistory     = session.MaxHistory
)

// Manager owns an ordered map of session_id -> session.Session. It is safe
// for concurrent use from multiple host threads, since each individual
// session is only ever driven by one caller at a time.
type Manager struct {
	mu      sync.Mutex
	order   []string
	entries map[string]*session.Session
	root    string // directory persistence files are written under
}

// New constructs a Manager with the non-removable default session already
// present.
func New(root string) (*Manager, error) {
	m := &Manager{
		entries: make(map[string]*session.Session),
		root:    root,
	}
	s, err := session.New(session.Options{Limits: defaultLimits()})
	if err != nil {
		return nil, err
	}
	m.order = append(m.order, DefaultSessionID)
	m.entries[DefaultSessionID] = s
	return m, nil
}

func defaultLimits() resource.Limits {
	return resource.New(
		resource.MaxAllocations(DefaultMaxAllocations),
		resource.MaxMemoryBytes(DefaultMaxMemoryBytes),
	)
}

// Create adds a new named session, auto-generating an id via uuid when id
// is empty. Returns the assigned id.
func (m *Manager) Create(id string, opts session.Options) (string, error) {
	if opts.Limits == (resource.Limits{}) {
		opts.Limits = defaultLimits()
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := m.entries[id]; exists {
		return "", fmt.Errorf("sessionmgr: session %q already exists", id)
	}
	s, err := session.New(opts)
	if err != nil {
		return "", err
	}
	m.order = append(m.order, id)
	m.entries[id] = s
	return id, nil
}

// Destroy removes a session. The default session can never be destroyed.
func (m *Manager) Destroy(id string) error {
	if id == DefaultSessionID {
		return fmt.Errorf("sessionmgr: the default session cannot be destroyed")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[id]; !ok {
		return fmt.Errorf("sessionmgr: unknown session %q", id)
	}
	delete(m.entries, id)
	for i, name := range m.order {
		if name == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// List returns every session id in creation order.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// resolve returns the named session, or the default session when id is
// empty.
func (m *Manager) resolve(id string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == "" {
		id = DefaultSessionID
	}
	s, ok := m.entries[id]
	if !ok {
		return nil, fmt.Errorf("sessionmgr: unknown session %q", id)
	}
	return s, nil
}

// Execute, Eval, Resume, ResumeFutures and Rewind are thin pass-through
// wrappers routing to the named session. SetVariable, DeleteVariable,
// GetVariables, HeapStats and HeapDiff have no Manager wrapper.

func (m *Manager) Execute(id, source string) (session.Result, error) {
	s, err := m.resolve(id)
	if err != nil {
		return session.Result{}, err
	}
	return s.Execute(source)
}

func (m *Manager) Eval(id, src string) (session.Result, error) {
	s, err := m.resolve(id)
	if err != nil {
		return session.Result{}, err
	}
	return s.Eval(src)
}

func (m *Manager) Resume(id, callID string, result session.FutureResult) (session.Result, error) {
	s, err := m.resolve(id)
	if err != nil {
		return session.Result{}, err
	}
	return s.Resume(callID, result)
}

func (m *Manager) ResumeFutures(id string, results map[string]session.FutureResult) (session.Result, error) {
	s, err := m.resolve(id)
	if err != nil {
		return session.Result{}, err
	}
	return s.ResumeFutures(results)
}

func (m *Manager) Rewind(id string, steps int) error {
	s, err := m.resolve(id)
	if err != nil {
		return err
	}
	return s.Rewind(steps)
}

// Fork clones the session named src into a new session named dst.
func (m *Manager) Fork(src, dst string) error {
	source, err := m.resolve(src)
	if err != nil {
		return err
	}
	forked, err := source.Fork()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if dst == "" {
		dst = uuid.NewString()
	}
	if _, exists := m.entries[dst]; exists {
		return fmt.Errorf("sessionmgr: session %q already exists", dst)
	}
	m.order = append(m.order, dst)
	m.entries[dst] = forked
	return nil
}

// sessionPath returns the file a session is persisted under, one file per
// session under the manager's configurable root.
func (m *Manager) sessionPath(id string) string {
	return filepath.Join(m.root, id+".ouros-session")
}

// Save persists the named session to its file under the manager's root, then
// updates the root's manifest.yaml so a future process can discover which
// session ids have something on disk without opening every file.
func (m *Manager) Save(id string) error {
	s, err := m.resolve(id)
	if err != nil {
		return err
	}
	if m.root == "" {
		return fmt.Errorf("sessionmgr: no persistence root configured")
	}
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return err
	}
	if err := s.Save(m.sessionPath(id)); err != nil {
		return err
	}
	return m.writeManifest(id)
}

// manifest is the root's manifest.yaml shape: the set of session ids that
// have a persisted file, independent of which ones happen to be loaded in
// this process's entries map.
type manifest struct {
	Sessions []string `yaml:"sessions"`
}

func (m *Manager) manifestPath() string {
	return filepath.Join(m.root, "manifest.yaml")
}

// writeManifest records id as persisted, merging with whatever manifest
// already exists on disk so saves from unrelated Manager instances don't
// clobber each other's entries.
func (m *Manager) writeManifest(id string) error {
	man, err := m.readManifest()
	if err != nil {
		return err
	}
	for _, existing := range man.Sessions {
		if existing == id {
			return m.writeManifestFile(man)
		}
	}
	man.Sessions = append(man.Sessions, id)
	sort.Strings(man.Sessions)
	return m.writeManifestFile(man)
}

func (m *Manager) writeManifestFile(man manifest) error {
	data, err := yaml.Marshal(man)
	if err != nil {
		return err
	}
	return os.WriteFile(m.manifestPath(), data, 0o644)
}

func (m *Manager) readManifest() (manifest, error) {
	data, err := os.ReadFile(m.manifestPath())
	if err != nil {
		if os.IsNotExist(err) {
			return manifest{}, nil
		}
		return manifest{}, err
	}
	var man manifest
	if err := yaml.Unmarshal(data, &man); err != nil {
		return manifest{}, err
	}
	return man, nil
}

// PersistedSessions lists the session ids recorded in the root's
// manifest.yaml, i.e. every session ever Saved under this root, whether or
// not it is currently Loaded into this Manager's entries map.
func (m *Manager) PersistedSessions() ([]string, error) {
	if m.root == "" {
		return nil, fmt.Errorf("sessionmgr: no persistence root configured")
	}
	man, err := m.readManifest()
	if err != nil {
		return nil, err
	}
	return man.Sessions, nil
}

// Load restores a session from its file under the manager's root, replacing
// any session currently registered under id.
func (m *Manager) Load(id string) error {
	if m.root == "" {
		return fmt.Errorf("sessionmgr: no persistence root configured")
	}
	s, err := session.Load(m.sessionPath(id))
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[id]; !exists {
		m.order = append(m.order, id)
	}
	m.entries[id] = s
	return nil
}

// SortedList is List sorted alphabetically, exposed for hosts that present
// sessions to a human rather than relying on creation order.
func (m *Manager) SortedList() []string {
	out := m.List()
	sort.Strings(out)
	return out
}
