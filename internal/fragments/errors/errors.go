package errors

// Package errors provides sentinel errors for lesson fragment discovery.

import "errors"

var (
	// ErrSourceUnreadable indicates a lesson source directory (or single-file source) is
	// missing or cannot be read.
	ErrSourceUnreadable = errors.New("lesson source unreadable")

	// ErrFragmentReadFailed indicates reading a discovered fragment's content failed.
	ErrFragmentReadFailed = errors.New("fragment read failed")

	// ErrUnknownLayout indicates an unsupported source layout was requested.
	ErrUnknownLayout = errors.New("unknown source layout")
)
