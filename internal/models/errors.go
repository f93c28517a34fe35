package models

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the pipeline. Callers match them with errors.Is.
var (
	ErrDocumentParse        = errors.New("document could not be parsed")
	ErrEmbeddingUnavailable = errors.New("embedding model unavailable")
	ErrIndexBuild           = errors.New("index build failed")
	ErrInvalidParameter     = errors.New("invalid parameter")
	ErrGenerationService    = errors.New("generation service error")
)

// DocumentParseError reports a document whose bytes could not be segmented.
type DocumentParseError struct {
	SourceID string `json:"source_id"`
	Name     string `json:"name"`
	Err      error  `json:"-"`
}

func (e *DocumentParseError) Error() string {
	name := e.Name
	if name == "" {
		name = e.SourceID
	}
	if e.Err == nil {
		return fmt.Sprintf("parse %s: %v", name, ErrDocumentParse)
	}
	return fmt.Sprintf("parse %s: %v", name, e.Err)
}

func (e *DocumentParseError) Unwrap() error { return e.Err }

// Is reports true for ErrDocumentParse so callers need not know the concrete type.
func (e *DocumentParseError) Is(target error) bool { return target == ErrDocumentParse }

// InvalidParameter wraps a formatted message with ErrInvalidParameter.
func InvalidParameter(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}
