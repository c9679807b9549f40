package lifecycle

import "errors"

// Error taxonomy shared by the room and ticket engines. Controllers map these
// to 404, 409, 403 and 400 respectively.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid state")
)

// Rejection is a refused transition with a user-facing reason.
type Rejection struct {
	Kind   error
	Reason string
}

func (r *Rejection) Error() string { return r.Reason }

func (r *Rejection) Unwrap() error { return r.Kind }

func reject(kind error, reason string) error {
	return &Rejection{Kind: kind, Reason: reason}
}

// NotFound builds a not-found rejection for a missing room or ticket.
func NotFound(reason string) error {
	return reject(ErrNotFound, reason)
}

// Forbidden builds a forbidden rejection.
func Forbidden(reason string) error {
	return reject(ErrForbidden, reason)
}

// Conflict builds a conflict rejection for a row that changed under the caller.
func Conflict(reason string) error {
	return reject(ErrConflict, reason)
}
