// internal/errors/errors.go
package errors

import "fmt"

// ErrInvalidRepoFormat is returned when a repository string in the config is not in 'owner/name' format.
type ErrInvalidRepoFormat struct {
	Repo string
}

func (e *ErrInvalidRepoFormat) Error() string {
	return fmt.Sprintf("invalid repository format: %q, expected 'owner/name'", e.Repo)
}

// PersistenceError reports a failed write batch. The batch it describes was rolled back.
type PersistenceError struct {
	Repo string
	Op   string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting %s: %s: %v", e.Repo, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
