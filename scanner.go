package swiftcsv

import (
	"bytes"
	"io"
)

// maxEmptyReads bounds how many (0, nil) reads the scanner tolerates from a source.
const maxEmptyReads = 100

// fieldEnd tells the caller what followed a scanned field.
type fieldEnd int

const (
	// endNone means no field was produced: the stream ended at a record boundary.
	endNone fieldEnd = iota
	endField
	endRecord
	endStream
)

// scanner is the byte-level state machine. It owns a refillable window over the source
// and writes unescaped field bytes into a caller-owned buffer.
type scanner struct {
	src    io.Reader
	buf    []byte
	pos    int
	end    int
	srcErr error

	comma  byte
	quote  byte
	escape Escape
	term   []byte // nil under TerminatorAuto
	cr     CRPolicy

	plainStop  [256]bool
	quotedStop [256]bool

	line   int
	col    int
	record int // ordinal stamped onto ParseError values
}

func newScanner(src io.Reader, cfg *config) *scanner {
	s := &scanner{
		src:    src,
		buf:    make([]byte, cfg.bufferSize),
		comma:  cfg.comma,
		quote:  cfg.quote,
		escape: cfg.escape,
		cr:     cfg.cr,
		line:   1,
		col:    1,
	}
	for _, b := range []byte{s.comma, s.quote, '\n', '\r'} {
		s.plainStop[b] = true
	}
	if !cfg.terminator.IsAuto() {
		s.term = []byte(cfg.terminator.seq)
		s.plainStop[s.term[0]] = true
	}
	s.quotedStop[s.quote] = true
	s.quotedStop['\n'] = true
	if s.escape == EscapeBackslash {
		s.quotedStop['\\'] = true
	}
	return s
}

// scanField appends the next field to dst. recordStart tells the scanner that no field
// of the current record has been produced yet, so running out of input means "no record".
func (s *scanner) scanField(dst []byte, recordStart bool) ([]byte, bool, fieldEnd, error) {
	if !s.more() {
		if err := s.readErr(); err != nil {
			return dst, false, endNone, err
		}
		if recordStart {
			return dst, false, endNone, nil
		}
		// Input ended right after a delimiter: the record closes with an empty field.
		return dst, false, endStream, nil
	}
	if s.buf[s.pos] == s.quote {
		s.advance(1)
		return s.scanQuoted(dst)
	}
	return s.scanPlain(dst)
}

func (s *scanner) scanPlain(dst []byte) ([]byte, bool, fieldEnd, error) {
	for {
		if !s.more() {
			if err := s.readErr(); err != nil {
				return dst, false, endNone, err
			}
			return dst, false, endStream, nil
		}

		// Copy the run of ordinary bytes in one append.
		data := s.buf[s.pos:s.end]
		i := 0
		for i < len(data) && !s.plainStop[data[i]] {
			i++
		}
		if i > 0 {
			dst = append(dst, data[:i]...)
			s.advance(i)
			if i == len(data) {
				continue
			}
		}

		b := s.buf[s.pos]
		switch b {
		case s.comma:
			s.advance(1)
			return dst, false, endField, nil
		case s.quote:
			return dst, false, endNone, s.errorf(ErrBareQuote)
		}

		n, err := s.terminator()
		if err != nil {
			return dst, false, endNone, err
		}
		if n > 0 {
			s.endRecord(n)
			return dst, false, endRecord, nil
		}

		// A stop byte that turned out to be content ('\r' under CRLiteral, '\n' or a
		// partial terminator match under a fixed terminator).
		dst = append(dst, b)
		s.advance(1)
		if b == '\n' {
			s.newline()
		}
	}
}

func (s *scanner) scanQuoted(dst []byte) ([]byte, bool, fieldEnd, error) {
	for {
		if !s.more() {
			if err := s.readErr(); err != nil {
				return dst, true, endNone, err
			}
			return dst, true, endNone, s.errorf(ErrUnterminatedQuote)
		}

		data := s.buf[s.pos:s.end]
		i := 0
		for i < len(data) && !s.quotedStop[data[i]] {
			i++
		}
		if i > 0 {
			dst = append(dst, data[:i]...)
			s.advance(i)
			if i == len(data) {
				continue
			}
		}

		b := s.buf[s.pos]
		s.advance(1)
		switch {
		case b == s.quote:
			end, literal, err := s.afterQuote()
			if err != nil {
				return dst, true, endNone, err
			}
			if literal {
				dst = append(dst, s.quote)
				continue
			}
			return dst, true, end, nil
		case b == '\n':
			dst = append(dst, b)
			s.newline()
		case b == '\\' && s.escape == EscapeBackslash:
			if !s.more() {
				if err := s.readErr(); err != nil {
					return dst, true, endNone, err
				}
				return dst, true, endNone, s.errorf(ErrUnterminatedQuote)
			}
			e := s.buf[s.pos]
			s.advance(1)
			dst = append(dst, e)
			if e == '\n' {
				s.newline()
			}
		}
	}
}

// afterQuote resolves a quote seen inside a quoted field. literal reports a doubled
// quote; otherwise the quote closed the field and end says what followed it.
func (s *scanner) afterQuote() (end fieldEnd, literal bool, err error) {
	if !s.more() {
		if err := s.readErr(); err != nil {
			return endNone, false, err
		}
		return endStream, false, nil
	}
	b := s.buf[s.pos]
	switch {
	case b == s.quote && s.escape == EscapeDoubled:
		s.advance(1)
		return endNone, true, nil
	case b == s.comma:
		s.advance(1)
		return endField, false, nil
	}
	n, err := s.terminator()
	if err != nil {
		return endNone, false, err
	}
	if n > 0 {
		s.endRecord(n)
		return endRecord, false, nil
	}
	return endNone, false, s.errorf(ErrDataAfterQuote)
}

// terminator reports the length of the record terminator starting at the current byte,
// or zero when that byte is content.
func (s *scanner) terminator() (int, error) {
	b := s.buf[s.pos]
	if s.term != nil {
		if b != s.term[0] {
			return 0, nil
		}
		if len(s.term) == 1 {
			return 1, nil
		}
		p := s.peek(len(s.term))
		if len(p) < len(s.term) {
			if err := s.readErr(); err != nil {
				return 0, err
			}
		}
		if bytes.Equal(p, s.term) {
			return len(s.term), nil
		}
		return 0, nil
	}

	switch b {
	case '\n':
		return 1, nil
	case '\r':
		p := s.peek(2)
		if len(p) == 2 && p[1] == '\n' {
			return 2, nil
		}
		if len(p) < 2 {
			if err := s.readErr(); err != nil {
				return 0, err
			}
		}
		switch s.cr {
		case CRTerminator:
			return 1, nil
		case CRLiteral:
			return 0, nil
		default:
			return 0, s.errorf(ErrAmbiguousCR)
		}
	}
	return 0, nil
}

// more reports whether at least one byte is buffered, reading from the source if needed.
func (s *scanner) more() bool {
	return s.pos < s.end || s.fill()
}

// peek returns up to n buffered bytes starting at the current position. Fewer bytes
// are returned only when the source has stopped producing data.
func (s *scanner) peek(n int) []byte {
	for s.end-s.pos < n && s.fill() {
	}
	if s.end-s.pos < n {
		return s.buf[s.pos:s.end]
	}
	return s.buf[s.pos : s.pos+n]
}

// fill compacts the window and pulls more bytes from the source. It returns false once
// the source reported an error (io.EOF included) and no new bytes arrived.
func (s *scanner) fill() bool {
	if s.srcErr != nil {
		return false
	}
	if s.pos > 0 {
		s.end = copy(s.buf, s.buf[s.pos:s.end])
		s.pos = 0
	}
	for i := 0; i < maxEmptyReads; i++ {
		n, err := s.src.Read(s.buf[s.end:])
		s.end += n
		if err != nil {
			s.srcErr = err
			return n > 0
		}
		if n > 0 {
			return true
		}
	}
	s.srcErr = io.ErrNoProgress
	return false
}

// readErr converts a sticky source error into the error returned to callers.
// io.EOF is a clean end and yields nil.
func (s *scanner) readErr() error {
	if s.srcErr == nil || s.srcErr == io.EOF {
		return nil
	}
	return &SourceError{Err: s.srcErr}
}

func (s *scanner) advance(n int) {
	s.pos += n
	s.col += n
}

func (s *scanner) newline() {
	s.line++
	s.col = 1
}

func (s *scanner) endRecord(n int) {
	s.advance(n)
	s.newline()
}

func (s *scanner) errorf(err error) error {
	return &ParseError{Record: s.record, Line: s.line, Column: s.col, Err: err}
}
