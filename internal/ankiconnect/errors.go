package ankiconnect

import (
	"fmt"

	"github.com/starford/readwise2anki/internal/apperr"
)

// TransportError is returned when AnkiConnect cannot be reached or answers
// with a non-200 status.
type TransportError struct {
	Action string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ankiconnect %s: transport: %v", e.Action, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == apperr.ErrNoteStore }

// ProtocolError is returned when the response envelope is malformed.
type ProtocolError struct {
	Action string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("ankiconnect %s: protocol: %s", e.Action, e.Reason)
}

func (e *ProtocolError) Is(target error) bool { return target == apperr.ErrNoteStore }

// ActionError carries the non-null error field of a response.
type ActionError struct {
	Action  string
	Message string
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("ankiconnect %s: %s", e.Action, e.Message)
}

func (e *ActionError) Is(target error) bool { return target == apperr.ErrNoteStore }
