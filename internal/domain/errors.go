package domain

import "errors"

var (
	// ErrInvalidInterval rejects a candidate whose end is not strictly
	// after its start. Checked before any storage access.
	ErrInvalidInterval = errors.New("reservation interval must end after it starts")

	// ErrConflict rejects a candidate that overlaps an existing
	// reservation on the same equipment.
	ErrConflict = errors.New("reservation conflicts with an existing booking")

	// ErrSessionExpired is returned when a session is unknown, idle past
	// the timeout, or logged out. The caller must re-authenticate.
	ErrSessionExpired = errors.New("session expired")

	// ErrUnauthenticated is returned when a request carries no session
	// token at all.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrForbidden is returned when an authenticated member attempts a
	// manager-only action on equipment managed by someone else.
	ErrForbidden = errors.New("not the equipment manager")

	// ErrInvalidCredentials covers both unknown usernames and wrong
	// passwords. Callers must not be able to tell the two apart.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrUsernameTaken is returned on registration with a name already
	// in use.
	ErrUsernameTaken = errors.New("username already taken")

	ErrNotFound = errors.New("not found")

	// ErrStorageUnavailable wraps storage-layer failures at the service
	// boundary. The core does not retry.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
