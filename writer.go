package swiftcsv

import (
	"bufio"
	"errors"
	"io"
)

var (
	errNilWriter      = errors.New("swiftcsv: writer is nil")
	errWriterNoTarget = errors.New("swiftcsv: writer destination cannot be nil")
)

// Writer provides high-throughput CSV emission with configurable delimiters and quoting rules.
type Writer struct {
	dst *bufio.Writer

	// Comma is the field delimiter. Default is ','.
	Comma byte
	// Quote is the quote character. Default is '"'.
	Quote byte
	// UseCRLF writes records terminated with \r\n when set.
	UseCRLF bool
	// AlwaysQuote forces quoting for all fields when enabled.
	AlwaysQuote bool
	// Escape selects how quotes inside quoted fields are written. Default is EscapeDoubled.
	Escape Escape

	line []byte
	err  error
}

// NewWriter creates a new Writer with internal buffering tuned for bulk writes.
func NewWriter(w io.Writer) *Writer {
	if w == nil {
		panic(errWriterNoTarget.Error())
	}
	return &Writer{
		dst:   bufio.NewWriterSize(w, defaultBufferSize),
		Comma: ',',
		Quote: '"',
	}
}

// Reset updates the underlying writer while preserving the configuration flags.
func (w *Writer) Reset(dst io.Writer) {
	if w == nil {
		panic(errNilWriter.Error())
	}
	if dst == nil {
		panic(errWriterNoTarget.Error())
	}
	if w.dst == nil {
		w.dst = bufio.NewWriterSize(dst, defaultBufferSize)
	} else {
		w.dst.Reset(dst)
	}
	w.err = nil
}

// Write emits a single CSV record. The record is terminated with the configured newline sequence.
func (w *Writer) Write(record []string) error {
	if w == nil {
		return errNilWriter
	}
	if w.dst == nil {
		return errWriterNoTarget
	}
	if w.err != nil {
		return w.err
	}

	q := w.quoting()
	line := w.line[:0]
	if len(record) == 1 && record[0] == "" {
		// A lone empty field is quoted so the line is not read back as an empty line.
		line = append(line, q.quote, q.quote)
	} else {
		for i, field := range record {
			if i > 0 {
				line = append(line, q.comma)
			}
			line = q.appendField(line, field)
		}
	}
	if w.UseCRLF {
		line = append(line, '\r', '\n')
	} else {
		line = append(line, '\n')
	}
	w.line = line

	if _, err := w.dst.Write(line); err != nil {
		w.err = err
		return err
	}
	return nil
}

// WriteAll writes multiple records, stopping at the first error.
func (w *Writer) WriteAll(records [][]string) error {
	if w == nil {
		return errNilWriter
	}
	for _, record := range records {
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes pending buffered data to the underlying writer.
func (w *Writer) Flush() error {
	if w == nil {
		return errNilWriter
	}
	if w.dst == nil {
		return errWriterNoTarget
	}
	if w.err != nil {
		return w.err
	}
	if err := w.dst.Flush(); err != nil {
		w.err = err
		return err
	}
	return nil
}

// Error reports the first error encountered by the writer.
func (w *Writer) Error() error {
	if w == nil {
		return errNilWriter
	}
	return w.err
}

// quoting is the field quoting policy derived from a Writer's settings.
type quoting struct {
	comma, quote byte
	// esc is written before every escaped byte inside a quoted field.
	esc    byte
	always bool
	// special marks bytes that force quoting; escaped marks bytes prefixed with esc.
	special, escaped [256]bool
}

func (w *Writer) quoting() quoting {
	q := quoting{comma: w.Comma, quote: w.Quote, always: w.AlwaysQuote}
	if q.comma == 0 {
		q.comma = ','
	}
	if q.quote == 0 {
		q.quote = '"'
	}
	q.esc = q.quote
	q.escaped[q.quote] = true
	if w.Escape == EscapeBackslash {
		q.esc = '\\'
		q.escaped['\\'] = true
	}
	q.special = q.escaped
	q.special[q.comma] = true
	q.special['\n'] = true
	q.special['\r'] = true
	return q
}

func (q *quoting) needsQuote(field string) bool {
	if q.always {
		return true
	}
	for i := 0; i < len(field); i++ {
		if q.special[field[i]] {
			return true
		}
	}
	return false
}

// appendField appends field to dst, quoted and escaped when the policy requires it.
func (q *quoting) appendField(dst []byte, field string) []byte {
	if !q.needsQuote(field) {
		return append(dst, field...)
	}
	dst = append(dst, q.quote)
	for i := 0; i < len(field); i++ {
		if q.escaped[field[i]] {
			dst = append(dst, q.esc)
		}
		dst = append(dst, field[i])
	}
	return append(dst, q.quote)
}
