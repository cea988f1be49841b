package apps

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownAction is returned when an action is not in ActionNames.
	ErrUnknownAction = errors.New("unknown action")
	// ErrInvalidRequest matches every *InvalidRequestError.
	ErrInvalidRequest = errors.New("invalid request")
)

// UnknownAction wraps ErrUnknownAction with the action name.
func UnknownAction(name string) error {
	return fmt.Errorf("%w: %q", ErrUnknownAction, name)
}

// InvalidRequestError reports a malformed action request, for example a
// missing argument.
type InvalidRequestError struct {
	Action string
	Field  string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid %s request: %s", e.Action, e.Reason)
	}
	return fmt.Sprintf("invalid %s request: %s %s", e.Action, e.Field, e.Reason)
}

func (e *InvalidRequestError) Is(target error) bool { return target == ErrInvalidRequest }

// Invalid builds an InvalidRequestError.
func Invalid(action, field, reason string) error {
	return &InvalidRequestError{Action: action, Field: field, Reason: reason}
}
