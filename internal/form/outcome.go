// internal/form/outcome.go
//
// Submission outcomes.
//
// Every submit attempt that reaches the network ends in exactly one Outcome:
// Success with the server’s payload, FieldErrors when the server rejected
// individual fields, or TransportError for everything else (network
// failure, timeout, non-2xx, malformed JSON, or a body that carries neither
// a success nor an error marker).
//
//------------------------------------------------------------------------------

package form

import "fmt"

// ErrorKind names a failure class.  Field validation errors never leave the
// client as an Outcome; the kind exists so logs and metrics share one
// vocabulary.
type ErrorKind string

const (
	KindFieldValidation ErrorKind = "field_validation"
	KindFieldRejection  ErrorKind = "field_rejection"
	KindTransport       ErrorKind = "transport"
	KindUnexpectedShape ErrorKind = "unexpected_shape"
)

// Outcome is one of Success, FieldErrors, or *TransportError.
type Outcome interface {
	outcome()
	// StatusCode is the HTTP status, or 0 when no response arrived.
	StatusCode() int
}

// Success carries the decoded response body.
type Success struct {
	Status  int
	Payload map[string]any
}

// FieldErrors carries a server-side rejection keyed by field.
type FieldErrors struct {
	Status int
	Errors map[string]string
}

// TransportError describes a failed exchange.  Message is safe to show.
type TransportError struct {
	Status  int
	Kind    ErrorKind
	Message string
	Err     error
}

func (Success) outcome()         {}
func (FieldErrors) outcome()     {}
func (*TransportError) outcome() {}

func (s Success) StatusCode() int         { return s.Status }
func (f FieldErrors) StatusCode() int     { return f.Status }
func (e *TransportError) StatusCode() int { return e.Status }

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *TransportError) Unwrap() error { return e.Err }
