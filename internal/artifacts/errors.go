package artifacts

import "fmt"

// PersistenceError is a failed store write. Keys written before the failure
// have been deleted unless RollbackErr is set.
type PersistenceError struct {
	Key         string
	Cause       error
	RollbackErr error
}

func (e *PersistenceError) Error() string {
	msg := fmt.Sprintf("failed to persist %s: %v", e.Key, e.Cause)
	if e.RollbackErr != nil {
		msg += fmt.Sprintf(" (rollback incomplete: %v)", e.RollbackErr)
	}
	return msg
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}
