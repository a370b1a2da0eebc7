package imaging

import (
	"errors"
	"fmt"
)

// ErrSuperseded is returned by a render attempt that finished after a newer
// attempt was started on the same compositor. Its result is discarded.
var ErrSuperseded = errors.New("render superseded by a newer request")

// ErrUnsupportedMediaType is wrapped by validation errors about the uploaded
// file's type rather than its content.
var ErrUnsupportedMediaType = errors.New("unsupported media type")

// ValidationError reports an unsupported input file or an out-of-range parameter.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// DecodeError reports raster bytes that could not be decoded as an image.
type DecodeError struct {
	Name string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode image %q: %v", e.Name, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ParseError reports vector markup that could not be parsed.
type ParseError struct {
	Name string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse vector document %q: %v", e.Name, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SurfaceError reports that a drawing surface could not be acquired.
type SurfaceError struct {
	Width  int
	Height int
	Err    error
}

func (e *SurfaceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("drawing surface %dx%d unavailable: %v", e.Width, e.Height, e.Err)
	}
	return fmt.Sprintf("drawing surface %dx%d unavailable", e.Width, e.Height)
}

func (e *SurfaceError) Unwrap() error { return e.Err }

func validationErrorf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func mediaTypeErrorf(format string, args ...any) error {
	return &ValidationError{Field: "file", Reason: fmt.Sprintf(format, args...), Err: ErrUnsupportedMediaType}
}
