package domain

import "errors"

// Error taxonomy of the messaging core. Callers match with errors.Is;
// the HTTP/WS boundary maps ErrNotParticipant onto the not-found shape
// so thread existence never leaks to unauthorized viewers.
var (
	// ErrValidation malformed input, empty content with no attachments
	ErrValidation = errors.New("validation failed")
	// ErrNotFound thread or message id does not resolve
	ErrNotFound = errors.New("not found")
	// ErrNotParticipant actor is not a party to the thread
	ErrNotParticipant = errors.New("not a thread participant")
	// ErrDatabase persistence layer failure
	ErrDatabase = errors.New("database failure")
	// ErrUpload attachment blob upload failure, send aborted before the pipeline
	ErrUpload = errors.New("attachment upload failed")
)
