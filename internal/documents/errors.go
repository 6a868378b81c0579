package documents

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrStatusConflict  = errors.New("status conflict")
	ErrTooLarge        = errors.New("file exceeds 10MB limit")
	ErrUnsupportedType = errors.New("unsupported file type")
)
