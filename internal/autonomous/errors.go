package autonomous

import (
	"errors"
	"fmt"
)

// ErrRunNotFound is returned by Status for unknown run ids
var ErrRunNotFound = errors.New("run not found")

// TargetError is a failed user or group resolution; it is fatal to a run
type TargetError struct {
	Target Target
	Step   string
	Cause  error
}

func (e *TargetError) Error() string {
	return fmt.Sprintf("failed to resolve %s target (%s): %v", e.Target.Kind(), e.Step, e.Cause)
}

func (e *TargetError) Unwrap() error {
	return e.Cause
}

// ActionError is a failed step of one action
type ActionError struct {
	Action Action
	Step   string
	Cause  error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s action failed at %s: %v", e.Action, e.Step, e.Cause)
}

func (e *ActionError) Unwrap() error {
	return e.Cause
}

// Message is the user-facing description stored in ActionResult.Error
func (e *ActionError) Message() string {
	switch e.Step {
	case stepGenerate:
		var stageErr interface{ Message() string }
		if errors.As(e.Cause, &stageErr) {
			return stageErr.Message()
		}
		return "Content generation failed."
	case stepUpload:
		return "The content could not be uploaded to the platform."
	case stepAssign:
		return "The content was uploaded but could not be assigned."
	}
	return "The action failed."
}
