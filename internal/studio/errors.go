package studio

import "errors"

var (
	// ErrNotFound is returned by backends when no value is stored for a key,
	// and by the service when a record ID does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotArray is returned when a non-array value is saved to a structured collection.
	ErrNotArray = errors.New("structured collections only accept array values")

	// ErrNotLoaded is returned when a collection is changed before its initial load resolved.
	ErrNotLoaded = errors.New("collection has not finished loading")

	// ErrStaleWrite is returned when a save was superseded by a newer save for the same key.
	ErrStaleWrite = errors.New("write superseded by a newer write")

	// ErrUnknownTable is returned by the structured backend for tables it does not manage.
	ErrUnknownTable = errors.New("unknown table")

	// ErrMissingAPIKey is returned by generators when no credential is configured.
	ErrMissingAPIKey = errors.New("API key is not configured")

	// ErrNoImage is returned by generators when the response carried no image.
	ErrNoImage = errors.New("no image produced")

	// ErrEmptyPrompt is returned when an operation requires prompt text and got none.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrInvalidModel is returned when a model cannot be trained from the given input.
	ErrInvalidModel = errors.New("a model needs a name and at least one image")

	// ErrModelFailed is returned when a change is requested for a model whose training failed.
	ErrModelFailed = errors.New("model training failed")
)
