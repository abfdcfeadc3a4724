package swiftcsv

import (
	"fmt"
	"io"
	"iter"
	"reflect"
	"slices"
	"unicode/utf8"
	"unsafe"
)

// State is the lifecycle stage of a Reader.
type State int

const (
	// StateNotStarted is the state before the first pull.
	StateNotStarted State = iota
	// StateReading means records may remain.
	StateReading
	// StateDone means the stream ended cleanly.
	StateDone
	// StateErrored means a structural or source error stopped the reader; it is terminal.
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not started"
	case StateReading:
		return "reading"
	case StateDone:
		return "done"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Reader provides high-performance CSV parsing with support for customizable dialects.
//
// A Reader is not safe for concurrent use. Views returned by one pull are invalidated
// by the next pull of any kind.
type Reader struct {
	cfg config
	s   *scanner
	rec *recordBuf

	state   State
	err     error
	headers []string
	width   int
	ordinal int

	record []string

	fieldBuf   []byte
	fieldIndex int
	inRecord   bool
	pendingEnd bool

	bindings map[reflect.Type][]int
}

// NewReader creates a Reader that consumes CSV data from r, panicking if r is nil
// or the options describe an ambiguous dialect.
func NewReader(r io.Reader, opts ...Option) *Reader {
	if r == nil {
		panic("swiftcsv: reader source cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.validate()

	return &Reader{
		cfg:      cfg,
		s:        newScanner(r, &cfg),
		rec:      newRecordBuf(),
		width:    cfg.fieldsPerRecord,
		record:   make([]string, 0, 16),
		fieldBuf: make([]byte, 0, 64),
	}
}

// State returns the current lifecycle stage.
func (r *Reader) State() State { return r.state }

// Done reports whether the reader reached the end of the stream or failed.
func (r *Reader) Done() bool {
	return r.state == StateDone || r.state == StateErrored
}

// Line returns the line the scanner is positioned at.
func (r *Reader) Line() int { return r.s.line }

// Headers returns a copy of the header record. The header record is read on the first
// call to any pull method, or by Headers itself. It returns nil when headers are disabled
// or the input is empty.
func (r *Reader) Headers() ([]string, error) {
	if err := r.start(); err != nil {
		return nil, err
	}
	if r.headers == nil && r.state == StateErrored {
		return nil, r.err
	}
	return slices.Clone(r.headers), nil
}

// ReadByteRecord parses the next record and returns a byte view of it. io.EOF signals
// that no more records remain. A *RecordError for a width mismatch is returned together
// with a usable view; reading may continue after it.
func (r *Reader) ReadByteRecord() (ByteRecord, error) {
	if err := r.advance(); err != nil {
		return ByteRecord{}, err
	}
	return ByteRecord{rec: r.rec, gen: r.rec.gen}, r.checkWidth()
}

// ReadStringRecord is ReadByteRecord returning the text view.
func (r *Reader) ReadStringRecord() (StringRecord, error) {
	rec, err := r.ReadByteRecord()
	return StringRecord(rec), err
}

// Read parses the next CSV record from the underlying stream. It returns dst containing
// the field values (which may reuse internal storage when WithReuseRecord is set) and an err
// indicating success or failure; io.EOF signals that no more records remain.
// Every field must be valid UTF-8.
func (r *Reader) Read() (dst []string, err error) {
	rec, err := r.ReadByteRecord()
	if rec.rec == nil {
		return nil, err
	}
	dst, serr := r.buildRecord()
	if serr != nil {
		return nil, serr
	}
	return dst, err
}

// ReadAll exhausts the reader, repeatedly calling Read to collect records until io.EOF
// and returning the accumulated records slice plus the first non-EOF error encountered.
func (r *Reader) ReadAll() (records [][]string, err error) {
	for {
		record, err := r.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		if r.cfg.reuseRecord {
			record = slices.Clone(record)
		}
		records = append(records, record)
	}
}

// ByteRecords iterates over the remaining records. Iteration stops at the end of the
// stream or after an error that leaves the reader in StateErrored.
func (r *Reader) ByteRecords() iter.Seq2[ByteRecord, error] {
	return func(yield func(ByteRecord, error) bool) {
		for {
			rec, err := r.ReadByteRecord()
			if err == io.EOF {
				return
			}
			if !yield(rec, err) || r.Done() {
				return
			}
		}
	}
}

// Records iterates over the remaining records as text views.
func (r *Reader) Records() iter.Seq2[StringRecord, error] {
	return func(yield func(StringRecord, error) bool) {
		for rec, err := range r.ByteRecords() {
			if !yield(StringRecord(rec), err) {
				return
			}
		}
	}
}

// NextField returns the next field without assembling a record. After the last field
// of a record it returns ErrEndOfRecord once; at the end of the stream it returns io.EOF.
// The returned slice is valid until the next pull.
func (r *Reader) NextField() ([]byte, error) {
	if err := r.start(); err != nil {
		return nil, err
	}
	switch r.state {
	case StateDone:
		return nil, io.EOF
	case StateErrored:
		return nil, r.err
	}
	r.rec.gen++

	if r.pendingEnd {
		r.pendingEnd = false
		r.inRecord = false
		return nil, ErrEndOfRecord
	}

	recordStart := !r.inRecord
	for {
		if recordStart {
			r.s.record = r.ordinal + 1
		}
		buf, quoted, end, err := r.s.scanField(r.fieldBuf[:0], recordStart)
		r.fieldBuf = buf
		if err != nil {
			return nil, r.fail(err)
		}
		if end == endNone {
			r.state = StateDone
			return nil, io.EOF
		}
		if recordStart && end != endField && len(buf) == 0 && !quoted && r.cfg.emptyLines == SkipEmptyLines {
			continue
		}
		if recordStart {
			r.ordinal++
			r.inRecord = true
			r.fieldIndex = 0
		} else {
			r.fieldIndex++
		}
		if end != endField {
			r.pendingEnd = true
		}
		return r.fieldBuf, nil
	}
}

// NextStringField is NextField for callers that need text. The string aliases the
// reader's buffer and is valid until the next pull.
func (r *Reader) NextStringField() (string, error) {
	field, err := r.NextField()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(field) {
		return "", &RecordError{Record: r.ordinal, Line: r.s.line, Field: r.fieldIndex, Err: ErrInvalidUTF8}
	}
	return bytesToString(field), nil
}

// start moves the reader out of StateNotStarted, capturing headers if configured.
func (r *Reader) start() error {
	if r.state != StateNotStarted {
		return nil
	}
	r.state = StateReading
	if !r.cfg.headers {
		return nil
	}

	ok, err := r.next(0)
	if err != nil {
		return r.fail(err)
	}
	if !ok {
		r.state = StateDone
		return nil
	}
	r.headers = make([]string, len(r.rec.spans))
	for i := range r.rec.spans {
		r.headers[i] = string(r.rec.field(i))
	}
	if r.width == 0 {
		r.width = len(r.headers)
	}
	return nil
}

// advance assembles the next data record into r.rec.
func (r *Reader) advance() error {
	if err := r.start(); err != nil {
		return err
	}
	switch r.state {
	case StateDone:
		return io.EOF
	case StateErrored:
		return r.err
	}

	r.inRecord, r.pendingEnd = false, false
	ok, err := r.next(r.ordinal + 1)
	if err != nil {
		return r.fail(err)
	}
	if !ok {
		r.state = StateDone
		return io.EOF
	}
	r.ordinal++
	return nil
}

// next assembles one record, applying the empty line policy.
func (r *Reader) next(ordinal int) (bool, error) {
	for {
		r.rec.reset(Position{Line: r.s.line, Record: ordinal})
		r.s.record = ordinal
		ok, err := r.rec.assemble(r.s)
		if err != nil || !ok {
			return false, err
		}
		if r.cfg.emptyLines == SkipEmptyLines && r.rec.emptyLine() {
			continue
		}
		return true, nil
	}
}

func (r *Reader) checkWidth() error {
	n := len(r.rec.spans)
	switch {
	case r.width == 0:
		r.width = n
	case r.width > 0 && n != r.width:
		return &RecordError{
			Record: r.rec.pos.Record,
			Line:   r.rec.pos.Line,
			Field:  -1,
			Err:    fmt.Errorf("%w: got %d, want %d", ErrFieldCount, n, r.width),
		}
	}
	return nil
}

func (r *Reader) fail(err error) error {
	r.state = StateErrored
	r.err = err
	r.rec.gen++
	return err
}

// buildRecord maps the assembled spans onto strings, respecting WithReuseRecord,
// and returns the materialised []string representing the current record.
func (r *Reader) buildRecord() ([]string, error) {
	rec := r.rec
	fieldCount := len(rec.spans)
	for i := 0; i < fieldCount; i++ {
		if !rec.validText(i) {
			return nil, &RecordError{Record: rec.pos.Record, Line: rec.pos.Line, Field: i, Err: ErrInvalidUTF8}
		}
	}

	var recordStr string
	if r.cfg.reuseRecord {
		if len(rec.buf) > 0 {
			// Zero-copy string construction so fields can share a single backing buffer.
			recordStr = unsafe.String(unsafe.SliceData(rec.buf), len(rec.buf))
		}
		if cap(r.record) < fieldCount {
			r.record = make([]string, fieldCount)
		}
		r.record = r.record[:fieldCount]
	} else {
		recordStr = string(rec.buf)
		r.record = make([]string, fieldCount)
	}

	for i, sp := range rec.spans {
		r.record[i] = recordStr[sp.start:sp.end]
	}
	return r.record, nil
}
