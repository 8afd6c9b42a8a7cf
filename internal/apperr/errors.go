// Package apperr holds the sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrNoteStore marks every failure reaching or talking to AnkiConnect.
	ErrNoteStore = errors.New("note store")

	// ErrDataQuality marks remote records that cannot be turned into a note.
	ErrDataQuality = errors.New("data quality")

	// ErrCache marks an unusable local export snapshot.
	ErrCache = errors.New("cache")

	ErrInvalidRecord = errors.New("invalid record")
)
