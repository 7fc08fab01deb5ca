package domain

import (
	"fmt"
	"strings"
)

// Kind classifies engine errors. Guards return errors at their
// boundary; algorithms never swallow them.
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindInvalid    Kind = "invalid"
	KindConflict   Kind = "conflict"
	KindCycle      Kind = "cycle"
	KindInfeasible Kind = "infeasible"
	KindTimeout    Kind = "timeout"
	KindInternal   Kind = "internal"
)

// Error is the kinded error every engine operation surfaces. It names
// the offending entity so callers never have to parse the reason text.
type Error struct {
	Kind      Kind
	Entity    string   // "project", "task", "dependency"
	ID        string   // offending identifier, if known
	Reason    string   // human-readable explanation
	CyclePath []string // populated for KindCycle: the detected path
	Err       error    // wrapped cause, if any
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Entity != "" {
		b.WriteString(" " + e.Entity)
	}
	if e.ID != "" {
		b.WriteString(" " + e.ID)
	}
	if e.Reason != "" {
		b.WriteString(": " + e.Reason)
	}
	if len(e.CyclePath) > 0 {
		b.WriteString(" (" + strings.Join(e.CyclePath, " -> ") + ")")
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match on bare kinds via ErrKind sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Entity == "" || t.Entity == e.Entity) && (t.ID == "" || t.ID == e.ID)
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return KindInternal
}

// AsError unwraps err to a *Error if one is in the chain.
func AsError(err error) (*Error, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}

func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, ID: id, Reason: entity + " does not exist"}
}

func Invalid(entity, id, format string, args ...any) *Error {
	return &Error{Kind: KindInvalid, Entity: entity, ID: id, Reason: fmt.Sprintf(format, args...)}
}

func Conflict(entity, id, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Entity: entity, ID: id, Reason: fmt.Sprintf(format, args...)}
}

func CycleError(path []string) *Error {
	return &Error{Kind: KindCycle, Entity: "dependency", Reason: "edge would introduce a cycle", CyclePath: path}
}

func Timeout(op string) *Error {
	return &Error{Kind: KindTimeout, Reason: op + " exceeded its deadline"}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Reason: "internal error", Err: err}
}
