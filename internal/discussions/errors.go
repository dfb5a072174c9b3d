package discussions

import "errors"

// Sentinel errors returned by the service and expected from Store
// implementations. Handlers map them onto HTTP status codes.
var (
	// ErrNotFound is returned when a discussion, participant or message
	// does not exist (or is soft-deleted and the caller may not see it)
	ErrNotFound = errors.New("not found")

	// ErrNotParticipant is returned when an action requires an active
	// membership the caller does not have
	ErrNotParticipant = errors.New("not a participant in this discussion")

	// ErrForbidden is returned when the caller is not allowed to act on a
	// row owned by someone else (e.g. deleting another user's message)
	ErrForbidden = errors.New("forbidden")

	// ErrValidation is returned for bad input, before any store access
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned by optimistic-concurrency store writes when
	// the row changed since it was read
	ErrConflict = errors.New("conflicting concurrent update")
)
