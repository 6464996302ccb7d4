package core

import "errors"

var (
	// ErrNotFound is returned by Repository lookups that match nothing.
	ErrNotFound = errors.New("record not found")

	// ErrValidation marks a write rejected because of its data.
	ErrValidation = errors.New("validation failed")

	// ErrDocumentOpen is returned by Processor.Process when the run's
	// document cannot be opened. The run is left unprocessed.
	ErrDocumentOpen = errors.New("document could not be opened")

	// ErrRunNotFound is returned for unknown or deleted run identifiers.
	ErrRunNotFound = errors.New("datasheet run not found")

	// ErrRunProcessed is returned when a completed run is processed again.
	ErrRunProcessed = errors.New("datasheet run already processed")

	// ErrRunBusy is returned when a run is already being processed.
	ErrRunBusy = errors.New("datasheet run is already processing")

	// ErrUnsupportedFile is returned for uploads with an unreadable extension.
	ErrUnsupportedFile = errors.New("unsupported file type")

	// ErrFileTooLarge is returned when an upload exceeds the size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrEmptyFile is returned for zero-byte uploads.
	ErrEmptyFile = errors.New("empty file")
)
