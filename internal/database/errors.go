package database

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrFolderExists is returned when a user already has a folder with the
	// same title, compared case-insensitively
	ErrFolderExists = errors.New("folder already exists")
	// ErrUsernameTaken is returned when a username is already registered
	ErrUsernameTaken = errors.New("username already taken")
	// ErrForbidden is returned when a user acts on a record they do not own
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidInput is returned for empty titles, texts and similar
	ErrInvalidInput = errors.New("invalid input")
)
