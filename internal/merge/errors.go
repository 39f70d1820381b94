package merge

import (
	"fmt"
	"strings"
)

// State is a step of the merge state machine.
type State string

const (
	StateInitiated           State = "initiated"
	StateConflictsChecked    State = "conflicts-checked"
	StateFieldsApplied       State = "fields-applied"
	StateRelationsReattached State = "relations-reattached"
	StateCommitted           State = "committed"
)

var stateOrder = []State{
	StateInitiated,
	StateConflictsChecked,
	StateFieldsApplied,
	StateRelationsReattached,
	StateCommitted,
}

// machine enforces strictly sequential transitions.
type machine struct {
	state State
	enter func(from, to State)
}

func (m *machine) advance(to State) {
	for i, s := range stateOrder {
		if s == m.state {
			if i+1 >= len(stateOrder) || stateOrder[i+1] != to {
				panic(fmt.Sprintf("merge: invalid transition %s -> %s", m.state, to))
			}
			break
		}
	}
	from := m.state
	m.state = to
	if m.enter != nil {
		m.enter(from, to)
	}
}

// Aborted is implemented by errors that end a merge, reporting the state
// the merge was in when it stopped.
type Aborted interface {
	error
	AbortedFrom() State
}

// UnresolvedConflictError is returned when fields differ and the plan has
// no choice for them. Nothing was written.
type UnresolvedConflictError struct {
	Kind   string
	Base   string
	Other  string
	Fields []string
}

func (e *UnresolvedConflictError) Error() string {
	return fmt.Sprintf("unresolved conflict merging %s %s into %s: %s differ(s) and no choice was given",
		e.Kind, e.Other, e.Base, strings.Join(e.Fields, ", "))
}

// AbortedFrom implements Aborted.
func (e *UnresolvedConflictError) AbortedFrom() State { return StateInitiated }

// ProtectedReference is a row that still points at the record being deleted.
type ProtectedReference struct {
	Table   string `json:"table"`
	Column  string `json:"column"`
	RowUUID string `json:"row_uuid,omitempty"`
	RowID   string `json:"row_id,omitempty"`
}

func (r ProtectedReference) String() string {
	ref := r.RowID
	if ref == "" {
		ref = r.RowUUID
	}
	return fmt.Sprintf("%s %s (via %s)", r.Table, ref, r.Column)
}

// ProtectedReferenceError is returned when other cannot be deleted because
// rows outside the kind's relations still reference it. The whole merge was
// rolled back.
type ProtectedReferenceError struct {
	Kind       string
	UUID       string
	ID         string
	References []ProtectedReference
}

func (e *ProtectedReferenceError) Error() string {
	refs := make([]string, len(e.References))
	for i, r := range e.References {
		refs[i] = r.String()
	}
	if len(refs) == 0 {
		return fmt.Sprintf("cannot delete %s %s: it is still referenced", e.Kind, e.ID)
	}
	return fmt.Sprintf("cannot delete %s %s: still referenced by %s", e.Kind, e.ID, strings.Join(refs, ", "))
}

// AbortedFrom implements Aborted.
func (e *ProtectedReferenceError) AbortedFrom() State { return StateRelationsReattached }

// ConcurrentMergeError is returned when another merge holds a lock on one of
// the records.
type ConcurrentMergeError struct {
	Kind string
	Key  string
	Err  error
}

func (e *ConcurrentMergeError) Error() string {
	return fmt.Sprintf("%s %s is being merged by another request; retry later", e.Kind, strings.TrimPrefix(e.Key, e.Kind+":"))
}

func (e *ConcurrentMergeError) Unwrap() error { return e.Err }

// AbortedFrom implements Aborted.
func (e *ConcurrentMergeError) AbortedFrom() State { return StateInitiated }
