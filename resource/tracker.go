// Package resource implements the sandbox's resource accounting: allocation
// counts, memory footprint, recursion depth and wall-clock time. A Tracker is
// consulted by the heap on every allocation and by the VM on every call/loop
// boundary, and is the single point a runaway or hostile program is stopped.
package resource

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Kind identifies which bound a ResourceExceeded error tripped.
type Kind int

const (
	KindAllocations Kind = iota
	KindMemory
	KindDuration
	KindRecursion
)

func (k Kind) String() string {
	switch k {
	case KindAllocations:
		return "allocations"
	case KindMemory:
		return "memory"
	case KindDuration:
		return "duration"
	case KindRecursion:
		return "recursion"
	default:
		return "unknown"
	}
}

// Exceeded reports that charging an allocation, or entering a frame, would
// cross a configured limit. Recursion is the one Kind that is catchable
// inside the sandbox as a Python RecursionError; the others unwind the whole
// execution.
type Exceeded struct {
	Kind    Kind
	Message string
}

func (e *Exceeded) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("resource limit exceeded (%s): %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("resource limit exceeded (%s)", e.Kind)
}

// IsRecursion reports whether err is a recursion-depth Exceeded, the one
// resource error that is catchable as a Python exception.
func IsRecursion(err error) bool {
	var exceeded *Exceeded
	if errors.As(err, &exceeded) {
		return exceeded.Kind == KindRecursion
	}
	return false
}

// Limits configures a Tracker. A zero value in any field except
// MaxRecursionDepth means "unbounded" for that dimension; MaxRecursionDepth
// defaults to DefaultMaxRecursionDepth when zero.
type Limits struct {
	MaxAllocations    int
	MaxMemoryBytes    int
	MaxDuration       time.Duration
	MaxRecursionDepth int
	GCInterval        int
}

// DefaultMaxRecursionDepth mirrors the original implementation's default call
// depth bound (ouros-js/src/limits.rs, DEFAULT_MAX_RECURSION_DEPTH).
const DefaultMaxRecursionDepth = 1000

// Option configures Limits in a functional-options style, matching the
// builder pattern used by the Rust ResourceLimits type this is translated
// from (ouros-js/src/limits.rs).
type Option func(*Limits)

// New builds a Limits value, applying opts in order. Unset dimensions stay
// unbounded except recursion depth, which always gets a default.
func New(opts ...Option) Limits {
	l := Limits{MaxRecursionDepth: DefaultMaxRecursionDepth}
	for _, opt := range opts {
		opt(&l)
	}
	return l
}

func MaxAllocations(n int) Option    { return func(l *Limits) { l.MaxAllocations = n } }
func MaxMemoryBytes(n int) Option    { return func(l *Limits) { l.MaxMemoryBytes = n } }
func MaxDuration(d time.Duration) Option {
	return func(l *Limits) { l.MaxDuration = d }
}
func MaxRecursionDepth(n int) Option { return func(l *Limits) { l.MaxRecursionDepth = n } }
func GCInterval(n int) Option        { return func(l *Limits) { l.GCInterval = n } }

// Tracker observes every heap allocation and VM call/loop boundary and
// enforces Limits. An Unlimited tracker (zero Limits{}, or New() applied with
// no byte/allocation/duration options) never rejects anything beyond the
// default recursion bound.
type Tracker struct {
	limits Limits
	start  time.Time

	allocations  int
	memoryBytes  int
	recursion    int
	allocsSinceGC int

	peakMemoryBytes int
	peakRecursion   int
	totalAllocs     int
	totalFrees      int
}

// NewTracker constructs a Tracker bound to limits. Passing a zero Limits{}
// produces an effectively unlimited tracker except for recursion depth,
// which is clamped to DefaultMaxRecursionDepth when unset.
func NewTracker(limits Limits) *Tracker {
	if limits.MaxRecursionDepth == 0 {
		limits.MaxRecursionDepth = DefaultMaxRecursionDepth
	}
	return &Tracker{limits: limits, start: time.Now()}
}

// Unlimited returns a Tracker with no bound beyond a generous recursion
// ceiling — used by session.Eval-style calls that must not be cut off by a
// caller-visible resource error but still need stack-overflow protection.
func Unlimited() *Tracker {
	return NewTracker(Limits{MaxRecursionDepth: DefaultMaxRecursionDepth * 10})
}

// ChargeAlloc charges bytes against the memory and allocation-count bounds.
// It returns *Exceeded (wrapped for errors.As) when a bound would be
// crossed; the charge is not applied in that case.
func (t *Tracker) ChargeAlloc(bytes int) error {
	if t.limits.MaxAllocations > 0 && t.allocations+1 > t.limits.MaxAllocations {
		return &Exceeded{Kind: KindAllocations, Message: fmt.Sprintf("%d allocations", t.limits.MaxAllocations)}
	}
	if t.limits.MaxMemoryBytes > 0 && t.memoryBytes+bytes > t.limits.MaxMemoryBytes {
		return &Exceeded{Kind: KindMemory, Message: fmt.Sprintf("%s", humanize.Bytes(uint64(t.limits.MaxMemoryBytes)))}
	}
	t.allocations++
	t.totalAllocs++
	t.memoryBytes += bytes
	t.allocsSinceGC++
	if t.memoryBytes > t.peakMemoryBytes {
		t.peakMemoryBytes = t.memoryBytes
	}
	return nil
}

// Release credits bytes back after a deallocation; it never fails.
func (t *Tracker) Release(bytes int) {
	t.memoryBytes -= bytes
	if t.memoryBytes < 0 {
		t.memoryBytes = 0
	}
	t.totalFrees++
	if t.allocations > 0 {
		t.allocations--
	}
}

// EnterFrame increments the recursion counter, rejecting the call with a
// recoverable *Exceeded{Kind: KindRecursion} when the bound is crossed.
func (t *Tracker) EnterFrame() error {
	if t.limits.MaxRecursionDepth > 0 && t.recursion+1 > t.limits.MaxRecursionDepth {
		return &Exceeded{Kind: KindRecursion, Message: fmt.Sprintf("max recursion depth %d exceeded", t.limits.MaxRecursionDepth)}
	}
	t.recursion++
	if t.recursion > t.peakRecursion {
		t.peakRecursion = t.recursion
	}
	return nil
}

// ExitFrame pairs with EnterFrame; never fails.
func (t *Tracker) ExitFrame() {
	if t.recursion > 0 {
		t.recursion--
	}
}

// Tick checks elapsed wall-time against MaxDuration. The VM calls this at
// backward branches and call boundaries, so enforcement granularity is
// bounded by loop-iteration size rather than by a preemptive timer.
func (t *Tracker) Tick() error {
	if t.limits.MaxDuration > 0 && time.Since(t.start) > t.limits.MaxDuration {
		return &Exceeded{Kind: KindDuration, Message: t.limits.MaxDuration.String()}
	}
	return nil
}

// ShouldGC reports whether the configured GCInterval has been reached since
// the last sweep, and resets the counter if so.
func (t *Tracker) ShouldGC() bool {
	if t.limits.GCInterval <= 0 {
		return false
	}
	if t.allocsSinceGC >= t.limits.GCInterval {
		t.allocsSinceGC = 0
		return true
	}
	return false
}

// Reset restarts the wall-clock timer and zeroes transient counters while
// keeping configured Limits, allowing a session to continue with fresh
// limits after a prior execution hit a resource error.
func (t *Tracker) Reset() {
	t.start = time.Now()
	t.allocations = 0
	t.memoryBytes = 0
	t.recursion = 0
	t.allocsSinceGC = 0
}

// Stats is a read-only snapshot of the tracker's running counters, used by
// Heap.Stats/Session.HeapStats reporting.
type Stats struct {
	Allocations     int
	MemoryBytes     int
	RecursionDepth  int
	PeakMemoryBytes int
	PeakRecursion   int
	TotalAllocs     int
	TotalFrees      int
	Elapsed         time.Duration
}

func (t *Tracker) Snapshot() Stats {
	return Stats{
		Allocations:     t.allocations,
		MemoryBytes:     t.memoryBytes,
		RecursionDepth:  t.recursion,
		PeakMemoryBytes: t.peakMemoryBytes,
		PeakRecursion:   t.peakRecursion,
		TotalAllocs:     t.totalAllocs,
		TotalFrees:      t.totalFrees,
		Elapsed:         time.Since(t.start),
	}
}

// Report renders a human-readable one-line summary of the tracker's
// current counters, suitable for logging or a REPL diagnostic command.
func (t *Tracker) Report() string {
	s := t.Snapshot()
	return fmt.Sprintf(
		"allocations=%d (peak bytes=%s) recursion_depth=%d (peak=%d) elapsed=%s total_allocs=%d total_frees=%d",
		s.Allocations, humanize.Bytes(uint64(s.PeakMemoryBytes)), s.RecursionDepth, s.PeakRecursion, s.Elapsed, s.TotalAllocs, s.TotalFrees,
	)
}
