package swiftcsv

import (
	"iter"
	"unicode/utf8"
	"unsafe"
)

// Position locates a record in the input.
type Position struct {
	// Line is the 1-based line on which the record starts.
	Line int
	// Record is the 1-based ordinal among data records; the header record is 0.
	Record int
}

type fieldSpan struct {
	start  int
	end    int
	quoted bool
}

// utf8 validation cache states
const (
	textUnchecked uint8 = iota
	textValid
	textInvalid
)

// recordBuf is the record assembler's storage: one byte buffer shared by every field of
// the current record, reused from record to record.
type recordBuf struct {
	buf   []byte
	spans []fieldSpan
	text  []uint8
	gen   uint64
	pos   Position
}

func newRecordBuf() *recordBuf {
	return &recordBuf{
		buf:   make([]byte, 0, 512),
		spans: make([]fieldSpan, 0, 32),
		text:  make([]uint8, 0, 32),
	}
}

// reset starts a new generation without releasing storage.
func (rb *recordBuf) reset(pos Position) {
	rb.gen++
	rb.buf = rb.buf[:0]
	rb.spans = rb.spans[:0]
	rb.text = rb.text[:0]
	rb.pos = pos
}

// assemble pulls fields from s until the record ends. It reports false when the
// stream ended before any field of a new record.
func (rb *recordBuf) assemble(s *scanner) (bool, error) {
	for {
		start := len(rb.buf)
		buf, quoted, end, err := s.scanField(rb.buf, len(rb.spans) == 0)
		rb.buf = buf
		if err != nil {
			return false, err
		}
		if end == endNone {
			return false, nil
		}
		rb.spans = append(rb.spans, fieldSpan{start: start, end: len(rb.buf), quoted: quoted})
		if end != endField {
			break
		}
	}
	for range rb.spans {
		rb.text = append(rb.text, textUnchecked)
	}
	return true, nil
}

// emptyLine reports whether the record came from a line with no bytes at all.
func (rb *recordBuf) emptyLine() bool {
	return len(rb.spans) == 1 && rb.spans[0].start == rb.spans[0].end && !rb.spans[0].quoted
}

func (rb *recordBuf) field(i int) []byte {
	sp := rb.spans[i]
	return rb.buf[sp.start:sp.end:sp.end]
}

func (rb *recordBuf) validText(i int) bool {
	switch rb.text[i] {
	case textValid:
		return true
	case textInvalid:
		return false
	}
	if utf8.Valid(rb.field(i)) {
		rb.text[i] = textValid
		return true
	}
	rb.text[i] = textInvalid
	return false
}

// ByteRecord is a view of the current record exposing raw field bytes.
// It is valid until the next pull on the Reader that produced it; using it afterwards
// panics with ErrStaleRecord. Use Clone to keep the data.
type ByteRecord struct {
	rec *recordBuf
	gen uint64
}

func (r ByteRecord) live() *recordBuf {
	if r.rec == nil || r.rec.gen != r.gen {
		panic(ErrStaleRecord)
	}
	return r.rec
}

// Valid reports whether the view still refers to the reader's current record.
func (r ByteRecord) Valid() bool {
	return r.rec != nil && r.rec.gen == r.gen
}

// Len returns the number of fields.
func (r ByteRecord) Len() int {
	if r.rec == nil {
		return 0
	}
	return len(r.live().spans)
}

// Field returns the unescaped bytes of field i. The slice aliases the reader's buffer.
func (r ByteRecord) Field(i int) []byte {
	return r.live().field(i)
}

// Quoted reports whether field i was enclosed in quotes in the input.
func (r ByteRecord) Quoted(i int) bool {
	return r.live().spans[i].quoted
}

// Position returns where the record starts.
func (r ByteRecord) Position() Position {
	return r.live().pos
}

// All yields each field index and its bytes.
func (r ByteRecord) All() iter.Seq2[int, []byte] {
	return func(yield func(int, []byte) bool) {
		rec := r.live()
		for i := range rec.spans {
			if !yield(i, r.Field(i)) {
				return
			}
		}
	}
}

// Clone copies every field out of the reader's buffer.
func (r ByteRecord) Clone() [][]byte {
	rec := r.live()
	data := make([]byte, len(rec.buf))
	copy(data, rec.buf)
	out := make([][]byte, len(rec.spans))
	for i, sp := range rec.spans {
		out[i] = data[sp.start:sp.end:sp.end]
	}
	return out
}

// Text returns the text view over the same record.
func (r ByteRecord) Text() StringRecord {
	r.live()
	return StringRecord(r)
}

// StringRecord is a view of the current record exposing fields as UTF-8 text.
// Each field is validated the first time it is accessed and the result is cached for
// the lifetime of the record. The same validity rules as ByteRecord apply.
type StringRecord struct {
	rec *recordBuf
	gen uint64
}

func (r StringRecord) live() *recordBuf {
	return ByteRecord(r).live()
}

// Valid reports whether the view still refers to the reader's current record.
func (r StringRecord) Valid() bool {
	return ByteRecord(r).Valid()
}

// Len returns the number of fields.
func (r StringRecord) Len() int {
	return ByteRecord(r).Len()
}

// Field returns field i as text. The string shares memory with the reader's buffer
// and must be copied (strings.Clone) to be kept past the next pull.
func (r StringRecord) Field(i int) (string, error) {
	rec := r.live()
	if !rec.validText(i) {
		return "", &RecordError{Record: rec.pos.Record, Line: rec.pos.Line, Field: i, Err: ErrInvalidUTF8}
	}
	return bytesToString(rec.field(i)), nil
}

// Quoted reports whether field i was enclosed in quotes in the input.
func (r StringRecord) Quoted(i int) bool {
	return ByteRecord(r).Quoted(i)
}

// Position returns where the record starts.
func (r StringRecord) Position() Position {
	return r.live().pos
}

// Bytes returns the byte view over the same record.
func (r StringRecord) Bytes() ByteRecord {
	r.live()
	return ByteRecord(r)
}

// Strings validates every field and returns owned copies.
func (r StringRecord) Strings() ([]string, error) {
	rec := r.live()
	for i := range rec.spans {
		if _, err := r.Field(i); err != nil {
			return nil, err
		}
	}
	data := string(rec.buf)
	out := make([]string, len(rec.spans))
	for i, sp := range rec.spans {
		out[i] = data[sp.start:sp.end]
	}
	return out, nil
}

func bytesToString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(unsafe.SliceData(b), len(b))
}
