package generation

import "errors"

var (
	// ErrEmptyInput is returned when a required text input is blank after trimming.
	ErrEmptyInput = errors.New("input text is empty")
	// ErrUnsupportedDocument is returned for uploads that are not plain text.
	ErrUnsupportedDocument = errors.New("unsupported document format")
)
