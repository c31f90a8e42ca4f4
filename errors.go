package keygraph

import (
	"errors"
	"fmt"
)

var (
	// ErrScopeRebuilding is returned for reads against a scope whose
	// clear-and-build critical section is in progress, when the client is
	// configured to reject instead of block.
	ErrScopeRebuilding = errors.New("scope is being rebuilt")

	// ErrNilMapping is returned when Build receives a nil keyword mapping.
	ErrNilMapping = errors.New("keyword mapping is nil")

	errNoEmbedder  = errors.New("no embedding client configured")
	errNoMatcher   = errors.New("no matcher client configured")
	errVectorCount = errors.New("embedding count does not match keyword count")
)

// CollaboratorError wraps a failure from the embedding or matching
// collaborator. Builds and retrievals abort on these; they never degrade to
// an empty success.
type CollaboratorError struct {
	Collaborator string // "embedder" or "matcher"
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s collaborator failed: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// Is matches any CollaboratorError regardless of collaborator name.
func (e *CollaboratorError) Is(target error) bool {
	_, ok := target.(*CollaboratorError)
	return ok
}

// StoreError wraps a graph store failure. A StoreError from a build means the
// scope was rolled back (or the rollback itself is reported in the message);
// the scope is never left half-built and queryable.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("graph store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is matches any StoreError regardless of operation.
func (e *StoreError) Is(target error) bool {
	_, ok := target.(*StoreError)
	return ok
}

func collaboratorErr(name string, err error) error {
	return &CollaboratorError{Collaborator: name, Err: err}
}

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}
