package swiftcsv

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedQuoting is the parent of every quoting error that is not an unterminated field.
	ErrMalformedQuoting = errors.New("swiftcsv: malformed quoting")
	// ErrBareQuote is returned when an unexpected quote is found in an unquoted field.
	ErrBareQuote = fmt.Errorf("%w: bare quote in non-quoted field", ErrMalformedQuoting)
	// ErrDataAfterQuote is returned when a closing quote is followed by something other than a delimiter or terminator.
	ErrDataAfterQuote = fmt.Errorf("%w: extraneous data after closing quote", ErrMalformedQuoting)
	// ErrUnterminatedQuote is returned when a quoted field is not closed before EOF.
	ErrUnterminatedQuote = errors.New("swiftcsv: unterminated quoted field")
	// ErrAmbiguousCR is returned for a lone '\r' when the reader runs with CRStrict.
	ErrAmbiguousCR = errors.New("swiftcsv: lone carriage return")
	// ErrFieldCount is returned when a record contains an unexpected number of fields.
	ErrFieldCount = errors.New("swiftcsv: wrong number of fields")
	// ErrInvalidUTF8 is returned when a field read through a text view is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("swiftcsv: invalid UTF-8 in field")
	// ErrEndOfRecord is returned by NextField after the last field of a record.
	// io.EOF is reserved for the end of the stream.
	ErrEndOfRecord = errors.New("swiftcsv: end of record")
	// ErrStaleRecord is the panic value raised when a record view is read after the reader advanced.
	ErrStaleRecord = errors.New("swiftcsv: record view used after the reader advanced")

	// ErrHeadersRequired is returned when a named target is decoded without captured headers.
	ErrHeadersRequired = errors.New("swiftcsv: headers required for named decoding")
	// ErrUnknownField is returned when a named target refers to a column missing from the headers.
	ErrUnknownField = errors.New("swiftcsv: unknown field")
	// ErrInvalidTarget is returned when Decode receives something other than a non-nil pointer
	// to a supported shape.
	ErrInvalidTarget = errors.New("swiftcsv: invalid decode target")
)

// ParseError contains location information for CSV parsing errors.
type ParseError struct {
	Record int // 1-based data record ordinal, 0 for the header record
	Line   int
	Column int
	Err    error
}

// Error formats the parse error message with the stored line, column, and Err values.
func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("swiftcsv: parse error on line %d, column %d: %v", e.Line, e.Column, e.Err)
}

// Unwrap returns the underlying Err so ParseError participates in errors.Unwrap.
func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// RecordError reports a problem with a record that was parsed successfully:
// a field count mismatch or a field that is not valid text.
// These errors do not stop the reader.
type RecordError struct {
	Record int
	Line   int
	// Field is the 0-based field index, or -1 when the error concerns the whole record.
	Field int
	Err   error
}

func (e *RecordError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field < 0 {
		return fmt.Sprintf("swiftcsv: record %d (line %d): %v", e.Record, e.Line, e.Err)
	}
	return fmt.Sprintf("swiftcsv: record %d (line %d), field %d: %v", e.Record, e.Line, e.Field, e.Err)
}

func (e *RecordError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// SourceError wraps a failure returned by the underlying io.Reader.
type SourceError struct {
	Err error
}

func (e *SourceError) Error() string {
	if e == nil {
		return ""
	}
	return "swiftcsv: reading source: " + e.Err.Error()
}

func (e *SourceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// DecodeError reports which record and field could not be decoded into the target.
type DecodeError struct {
	Record int
	// Field is the 0-based column index, or -1 when no column was involved.
	Field int
	// Name is the header name for named targets, empty for positional ones.
	Name string
	Err  error
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Name != "":
		return fmt.Sprintf("swiftcsv: record %d: field %q (index %d): %v", e.Record, e.Name, e.Field, e.Err)
	case e.Field >= 0:
		return fmt.Sprintf("swiftcsv: record %d: field %d: %v", e.Record, e.Field, e.Err)
	default:
		return fmt.Sprintf("swiftcsv: record %d: %v", e.Record, e.Err)
	}
}

func (e *DecodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValueError reports a field whose text could not be coerced into the target kind.
type ValueError struct {
	Raw  string
	Kind string
	Err  error
}

func (e *ValueError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("cannot parse %q as %s: %v", e.Raw, e.Kind, e.Err)
}

func (e *ValueError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
