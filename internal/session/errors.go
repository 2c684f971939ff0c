package session

import "errors"

var (
	// ErrSessionConflict indicates an open session already exists for the
	// (case, pass, section) triple.
	ErrSessionConflict = errors.New("open session already exists for case, pass, and section")

	// ErrSessionNotFound indicates the session ID is unknown.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionClosed indicates an append was attempted on a closed
	// session.
	ErrSessionClosed = errors.New("session is closed")

	// ErrCannotClearCommitted indicates a clear-and-rerun was attempted
	// on a session that has already been committed and closed.
	ErrCannotClearCommitted = errors.New("cannot clear a committed session")
)
