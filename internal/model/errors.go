package model

import (
	"errors"
	"fmt"
)

var (
	// ErrReferentialIntegrity is returned when an object cannot be deleted
	// because something outside its owned subtree still references it.
	ErrReferentialIntegrity = errors.New("referential integrity violation")

	// ErrUnsupported is returned for operations a list manager refuses, such
	// as moving an object inside a transaction.
	ErrUnsupported = errors.New("unsupported operation")

	// ErrNotFound is returned when a name or key does not resolve.
	ErrNotFound = errors.New("not found")
)

// ReferenceError describes a failed delete.
type ReferenceError struct {
	Deleted      Object
	ReferencedBy Object
	Property     *ScalarProperty
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("cannot delete %s: still referenced by %s through %s",
		Describe(e.Deleted), Describe(e.ReferencedBy), e.Property)
}

func (e *ReferenceError) Unwrap() error { return ErrReferentialIntegrity }

// InvariantError reports an internal state that correct usage never reaches.
// It is raised with panic.
type InvariantError struct {
	Op  string
	Msg string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violated in %s: %s", e.Op, e.Msg)
}

// Invariant panics with an InvariantError.
func Invariant(op, format string, args ...any) {
	panic(&InvariantError{Op: op, Msg: fmt.Sprintf(format, args...)})
}

// Describe renders an object for messages and logs.
func Describe(obj Object) string {
	if obj == nil {
		return "<nil>"
	}
	e := obj.Data()
	if e == nil {
		return "<detached>"
	}
	return fmt.Sprintf("%s(%v)", e.set.name, obj.Key())
}
