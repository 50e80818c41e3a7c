package chat

import (
	"errors"
	"fmt"
)

// Field names reported with ErrMissingField.
const (
	FieldMessage   = "message"
	FieldSessionID = "sessionId"
)

// ErrMissingField is returned when the message or the session id is absent.
var ErrMissingField = errors.New("missing required field")

// MissingFieldError names the absent field and matches ErrMissingField.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingField, e.Field)
}

func (e *MissingFieldError) Is(target error) bool { return target == ErrMissingField }

// Stage is a step of the reply pipeline.
type Stage string

const (
	StageReceived       Stage = "received"
	StageValidated      Stage = "validated"
	StageCatalogFetched Stage = "catalog_fetched"
	StageContextBuilt   Stage = "context_built"
	StageProviderCalled Stage = "provider_called"
	StageSessionUpdated Stage = "session_updated"
	StageResponded      Stage = "responded"
)

// StageError records the last stage reached before the failure.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("chat %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FailedStage returns the stage recorded in err, if any.
func FailedStage(err error) (Stage, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage, true
	}
	return "", false
}
