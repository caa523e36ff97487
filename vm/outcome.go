package vm

import "github.com/parcadei/ouros-go/values"

// OutcomeKind distinguishes the three ways a Run/Resume call can return
// control to the session layer.
type OutcomeKind byte

const (
	OutcomeComplete OutcomeKind = iota
	OutcomeSuspended
	OutcomeRaised
)

// PendingCall describes a suspended external or OS function call the host
// must service before the VM can continue. CallID is unique per suspension
// so resumes can be matched to the right frame even when several futures
// are outstanding.
type PendingCall struct {
	CallID string
	Name   string
	Args   []values.Value
	Kwargs map[string]values.Value
	IsOS   bool
}

// Outcome is what one Run/Resume call produces.
type Outcome struct {
	Kind      OutcomeKind
	Value     values.Value
	Exception *PyException
	Pending   *PendingCall
}
