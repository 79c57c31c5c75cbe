package model

import "errors"

var (
	// ErrUpstreamRequestFailed indicates a non-2xx status or malformed body from the search API.
	ErrUpstreamRequestFailed = errors.New("upstream request failed")

	// ErrCorruptBaseline indicates persisted baseline data that cannot be decoded.
	// Callers treat the baseline as empty.
	ErrCorruptBaseline = errors.New("corrupt baseline")

	// ErrNotificationFailed indicates a chat delivery error.
	ErrNotificationFailed = errors.New("notification failed")

	// ErrMalformedTimestamp indicates an added-at value that is not a valid date-time.
	ErrMalformedTimestamp = errors.New("malformed timestamp")

	// ErrUnsafeKey indicates an email that cannot be used as a literal storage key.
	ErrUnsafeKey = errors.New("unsafe storage key")

	ErrNilRecords = errors.New("nil records")

	// ErrLocked indicates another process holds the baseline lock.
	ErrLocked = errors.New("baseline store locked by another run")
)
