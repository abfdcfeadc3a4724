package swiftcsv

import (
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
	"testing/iotest"
)

func TestReaderReadRecords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		opts  []Option
		want  [][]string
	}{
		{
			name:  "basicRecords",
			input: "one,two\nthree,four\n",
			want: [][]string{
				{"one", "two"},
				{"three", "four"},
			},
		},
		{
			name:  "finalRecordWithoutTerminator",
			input: "alpha,beta,gamma",
			want: [][]string{
				{"alpha", "beta", "gamma"},
			},
		},
		{
			name:  "windowsLineEndings",
			input: "a,b\r\nc,d\r\n",
			want: [][]string{
				{"a", "b"},
				{"c", "d"},
			},
		},
		{
			name:  "quotedComma",
			input: "a,\"b,c\",d\n",
			want: [][]string{
				{"a", "b,c", "d"},
			},
		},
		{
			name:  "escapedQuote",
			input: "\"a\"\"b\"",
			want: [][]string{
				{"a\"b"},
			},
		},
		{
			name:  "embeddedNewline",
			input: "a,\"b\nc\",d\n",
			want: [][]string{
				{"a", "b\nc", "d"},
			},
		},
		{
			name:  "embeddedCRLF",
			input: "a,\"b\r\nc\",d\r\n",
			want: [][]string{
				{"a", "b\r\nc", "d"},
			},
		},
		{
			name:  "emptyFields",
			input: ",,\n",
			want: [][]string{
				{"", "", ""},
			},
		},
		{
			name:  "trailingDelimiterAtEOF",
			input: "a,",
			want: [][]string{
				{"a", ""},
			},
		},
		{
			name:  "customComma",
			input: "left;right\nup;down\n",
			opts:  []Option{WithComma(';')},
			want: [][]string{
				{"left", "right"},
				{"up", "down"},
			},
		},
		{
			name:  "customQuote",
			input: "alpha,'beta''gamma',delta\n",
			opts:  []Option{WithQuote('\'')},
			want: [][]string{
				{"alpha", "beta'gamma", "delta"},
			},
		},
		{
			name:  "backslashEscape",
			input: "\"say \\\"hi\\\"\",\"c:\\\\tmp\"\n",
			opts:  []Option{WithEscape(EscapeBackslash)},
			want: [][]string{
				{"say \"hi\"", "c:\\tmp"},
			},
		},
		{
			name:  "backslashLiteralWhenUnquoted",
			input: "a\\b,c\n",
			opts:  []Option{WithEscape(EscapeBackslash)},
			want: [][]string{
				{"a\\b", "c"},
			},
		},
		{
			name:  "reuseRecord",
			input: "left,right\nup,down\n",
			opts:  []Option{WithReuseRecord(true)},
			want: [][]string{
				{"left", "right"},
				{"up", "down"},
			},
		},
		{
			name:  "quotedEOF",
			input: "\"quoted\"",
			want: [][]string{
				{"quoted"},
			},
		},
		{
			name:  "quotedEmptyLineIsARecord",
			input: "\"\"\n",
			want: [][]string{
				{""},
			},
		},
		{
			name:  "carriageReturnTerminator",
			input: "one\rtwo",
			opts:  []Option{WithCR(CRTerminator)},
			want: [][]string{
				{"one"},
				{"two"},
			},
		},
		{
			name:  "carriageReturnLiteral",
			input: "one\rtwo\n",
			opts:  []Option{WithCR(CRLiteral)},
			want: [][]string{
				{"one\rtwo"},
			},
		},
		{
			name:  "fixedTerminator",
			input: "a,b;c,d;",
			opts:  []Option{WithTerminator(FixedTerminator(";"))},
			want: [][]string{
				{"a", "b"},
				{"c", "d"},
			},
		},
		{
			name:  "fixedMultiByteTerminator",
			input: "a\r,b||c,\"d||\"||",
			opts:  []Option{WithTerminator(FixedTerminator("||")), WithCR(CRStrict)},
			want: [][]string{
				{"a\r", "b"},
				{"c", "d||"},
			},
		},
		{
			name:  "fixedTerminatorPartialMatch",
			input: "a|b||c",
			opts:  []Option{WithTerminator(FixedTerminator("||"))},
			want: [][]string{
				{"a|b"},
				{"c"},
			},
		},
		{
			name:  "skipEmptyLines",
			input: "a\n\n\nb\n\n",
			want: [][]string{
				{"a"},
				{"b"},
			},
		},
		{
			name:  "yieldEmptyLines",
			input: "a\n\nb\n\n",
			opts:  []Option{WithEmptyLines(YieldEmptyLines), WithFieldsPerRecord(-1)},
			want: [][]string{
				{"a"},
				{""},
				{"b"},
				{""},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := NewReader(strings.NewReader(tc.input), tc.opts...)

			var records [][]string
			for {
				rec, err := r.Read()
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					t.Fatalf("Read() returned unexpected error: %v", err)
				}
				records = append(records, cloneStrings(rec))
			}

			if !reflect.DeepEqual(records, tc.want) {
				t.Fatalf("Read() records mismatch:\n got: %#v\nwant: %#v", records, tc.want)
			}
			if r.State() != StateDone {
				t.Fatalf("State() = %v, want %v", r.State(), StateDone)
			}
		})
	}
}

func TestReaderOneByteSource(t *testing.T) {
	t.Parallel()

	const input = "a,\"b\"\"\nb\",c\r\nd,e,\"f\"\r\n"
	want := [][]string{
		{"a", "b\"\nb", "c"},
		{"d", "e", "f"},
	}

	r := NewReader(iotest.OneByteReader(strings.NewReader(input)), WithBufferSize(16))
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if !reflect.DeepEqual(records, want) {
		t.Fatalf("ReadAll() records mismatch:\n got: %#v\nwant: %#v", records, want)
	}
}

func TestReaderLongFieldsSpanReads(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 100)
	input := long + ",\"" + long + "\"\n" + long + "\n"

	r := NewReader(strings.NewReader(input), WithBufferSize(16), WithFieldsPerRecord(-1))
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	want := [][]string{{long, long}, {long}}
	if !reflect.DeepEqual(records, want) {
		t.Fatalf("ReadAll() records mismatch:\n got: %#v\nwant: %#v", records, want)
	}
}

func TestReaderReuseRecord(t *testing.T) {
	t.Parallel()

	r := NewReader(strings.NewReader("alpha\nbeta\n"), WithReuseRecord(true))

	first, err := r.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	second, err := r.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("unexpected slice lengths: first=%d second=%d", len(first), len(second))
	}
	if &first[0] != &second[0] {
		t.Fatalf("expected backing slice to be reused")
	}
	if second[0] != "beta" || first[0] != "beta" {
		t.Fatalf("expected both slices to reflect latest record, got first=%q second=%q", first[0], second[0])
	}

	if _, err := r.Read(); !errors.Is(err, io.EOF) {
		t.Fatalf("Read() expected io.EOF, got %v", err)
	}
}

func TestReaderReuseRecordDisabled(t *testing.T) {
	t.Parallel()

	r := NewReader(strings.NewReader("alpha\nbeta\n"))

	first, err := r.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	second, err := r.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("unexpected slice lengths: first=%d second=%d", len(first), len(second))
	}
	if &first[0] == &second[0] {
		t.Fatalf("expected distinct backing slices when record reuse is disabled")
	}
	if first[0] != "alpha" || second[0] != "beta" {
		t.Fatalf("unexpected record values: first=%q second=%q", first[0], second[0])
	}
}

func TestReaderErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		opts   []Option
		err    error
		line   int
		column int
	}{
		{
			name:   "bareQuote",
			input:  "a\"b,c\n",
			err:    ErrBareQuote,
			line:   1,
			column: 2,
		},
		{
			name:   "dataAfterQuote",
			input:  "\"ab\"c,d\n",
			err:    ErrDataAfterQuote,
			line:   1,
			column: 5,
		},
		{
			name:   "unterminatedQuoteSameLine",
			input:  "\"value",
			err:    ErrUnterminatedQuote,
			line:   1,
			column: 7,
		},
		{
			name:   "unterminatedQuoteMultiLine",
			input:  "\"alpha\nbeta",
			err:    ErrUnterminatedQuote,
			line:   2,
			column: 5,
		},
		{
			name:   "unterminatedAfterBackslash",
			input:  "\"alpha\\",
			opts:   []Option{WithEscape(EscapeBackslash)},
			err:    ErrUnterminatedQuote,
			line:   1,
			column: 8,
		},
		{
			name:   "loneCarriageReturn",
			input:  "one\rtwo\n",
			err:    ErrAmbiguousCR,
			line:   1,
			column: 4,
		},
		{
			name:   "loneCarriageReturnAfterQuote",
			input:  "\"one\"\rtwo\n",
			err:    ErrAmbiguousCR,
			line:   1,
			column: 6,
		},
		{
			name:   "doubledQuoteUnderBackslashPolicy",
			input:  "\"a\"\"b\"\n",
			opts:   []Option{WithEscape(EscapeBackslash)},
			err:    ErrDataAfterQuote,
			line:   1,
			column: 4,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := NewReader(strings.NewReader(tc.input), tc.opts...)
			_, err := r.Read()
			if err == nil {
				t.Fatalf("Read() expected error %v, got nil", tc.err)
			}

			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("Read() returned error %T, want *ParseError", err)
			}
			if !errors.Is(perr.Err, tc.err) {
				t.Fatalf("ParseError.Err = %v, want %v", perr.Err, tc.err)
			}
			if perr.Line != tc.line || perr.Column != tc.column {
				t.Fatalf("ParseError location = line %d column %d, want line %d column %d", perr.Line, perr.Column, tc.line, tc.column)
			}
			if r.State() != StateErrored {
				t.Fatalf("State() = %v, want %v", r.State(), StateErrored)
			}
		})
	}
}

func TestReaderMalformedQuotingFamily(t *testing.T) {
	t.Parallel()

	for _, err := range []error{ErrBareQuote, ErrDataAfterQuote} {
		if !errors.Is(err, ErrMalformedQuoting) {
			t.Fatalf("%v should wrap ErrMalformedQuoting", err)
		}
	}
}

func TestReaderErroredIsTerminal(t *testing.T) {
	t.Parallel()

	r := NewReader(strings.NewReader("ok\n\"broken\nmore,rows\n"))

	if _, err := r.Read(); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	_, first := r.Read()
	if !errors.Is(first, ErrUnterminatedQuote) {
		t.Fatalf("Read() error = %v, want ErrUnterminatedQuote", first)
	}
	for i := 0; i < 3; i++ {
		if _, err := r.Read(); err != first {
			t.Fatalf("Read() after failure = %v, want the stored %v", err, first)
		}
		if _, err := r.NextField(); err != first {
			t.Fatalf("NextField() after failure = %v, want the stored %v", err, first)
		}
	}
	if !r.Done() {
		t.Fatalf("Done() = false after a structural error")
	}
}

type failingReader struct {
	data string
	err  error
}

func (f *failingReader) Read(p []byte) (int, error) {
	if f.data == "" {
		return 0, f.err
	}
	n := copy(p, f.data)
	f.data = f.data[n:]
	return n, nil
}

func TestReaderSourceError(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk on fire")
	r := NewReader(&failingReader{data: "a,b\nc,", err: boom})

	if _, err := r.Read(); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	_, err := r.Read()
	var serr *SourceError
	if !errors.As(err, &serr) {
		t.Fatalf("Read() error = %T %v, want *SourceError", err, err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("Read() error = %v, want to wrap %v", err, boom)
	}
	if r.State() != StateErrored {
		t.Fatalf("State() = %v, want %v", r.State(), StateErrored)
	}
}

func TestReaderReadAll(t *testing.T) {
	t.Parallel()

	const input = "a,b,c\n\"d\",\"e,f\",\"g\"\"h\"\nlast,row,\n"
	want := [][]string{
		{"a", "b", "c"},
		{"d", "e,f", "g\"h"},
		{"last", "row", ""},
	}

	r := NewReader(strings.NewReader(input))

	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if !reflect.DeepEqual(records, want) {
		t.Fatalf("ReadAll() records mismatch:\n got: %#v\nwant: %#v", records, want)
	}
}

func TestReaderReadAllError(t *testing.T) {
	t.Parallel()

	r := NewReader(strings.NewReader("a,\"b\n"))

	records, err := r.ReadAll()
	if records != nil {
		t.Fatalf("ReadAll() returned records %+v, want nil on error", records)
	}
	if err == nil {
		t.Fatalf("ReadAll() expected error, got nil")
	}
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("ReadAll() error type %T, want *ParseError", err)
	}
	if !errors.Is(perr.Err, ErrUnterminatedQuote) {
		t.Fatalf("ReadAll() error = %v, want ErrUnterminatedQuote", perr.Err)
	}
}

func TestParseErrorMethods(t *testing.T) {
	t.Parallel()

	err := &ParseError{Line: 3, Column: 7, Err: ErrBareQuote}
	if got := err.Error(); got == "" || !strings.Contains(got, "line 3") || !strings.Contains(got, "column 7") {
		t.Fatalf("Error() returned %q, want descriptive output", got)
	}
	if !errors.Is(err, ErrBareQuote) {
		t.Fatalf("ParseError should unwrap to ErrBareQuote")
	}
	if !errors.Is(err.Unwrap(), ErrBareQuote) {
		t.Fatalf("Unwrap() should return ErrBareQuote")
	}

	var nilErr *ParseError
	if nilErr.Error() != "" {
		t.Fatalf("nil ParseError should return empty string")
	}
	if nilErr.Unwrap() != nil {
		t.Fatalf("nil ParseError should return nil from Unwrap")
	}
}

func TestReaderFieldsPerRecord(t *testing.T) {
	t.Parallel()

	t.Run("autoDetectFirstRecord", func(t *testing.T) {
		t.Parallel()

		r := NewReader(strings.NewReader("a,b\nc,d\ne\n"))

		record, err := r.Read()
		if err != nil {
			t.Fatalf("Read() error = %v, want nil", err)
		}
		if len(record) != 2 {
			t.Fatalf("Read() record length = %d, want 2", len(record))
		}
		if _, err := r.Read(); err != nil {
			t.Fatalf("Read() second record error = %v, want nil", err)
		}
		if _, err := r.Read(); !errors.Is(err, ErrFieldCount) {
			t.Fatalf("Read() third record error = %v, want ErrFieldCount", err)
		}
	})

	t.Run("mismatchReturnsError", func(t *testing.T) {
		t.Parallel()

		r := NewReader(strings.NewReader("x,y\n1,2,3\n4,5\n"), WithFieldsPerRecord(2))

		if _, err := r.Read(); err != nil {
			t.Fatalf("Read() first record error = %v, want nil", err)
		}

		record, err := r.Read()
		if !errors.Is(err, ErrFieldCount) {
			t.Fatalf("Read() error = %v, want ErrFieldCount", err)
		}
		var rerr *RecordError
		if !errors.As(err, &rerr) || rerr.Record != 2 || rerr.Field != -1 {
			t.Fatalf("Read() error = %#v, want *RecordError for record 2", err)
		}
		if len(record) != 3 {
			t.Fatalf("Read() record length = %d, want 3", len(record))
		}

		// The stream is still usable after a width mismatch.
		record, err = r.Read()
		if err != nil || !reflect.DeepEqual(record, []string{"4", "5"}) {
			t.Fatalf("Read() = %v, %v, want [4 5]", record, err)
		}
	})

	t.Run("flexible", func(t *testing.T) {
		t.Parallel()

		r := NewReader(strings.NewReader("a\nb,c\n"), WithFieldsPerRecord(-1))
		records, err := r.ReadAll()
		if err != nil {
			t.Fatalf("ReadAll() error = %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("ReadAll() returned %d records, want 2", len(records))
		}
	})
}

func TestReaderInvalidUTF8(t *testing.T) {
	t.Parallel()

	r := NewReader(strings.NewReader("ok,\xff\xfe\nnext,row\n"))

	_, err := r.Read()
	var rerr *RecordError
	if !errors.As(err, &rerr) || !errors.Is(err, ErrInvalidUTF8) {
		t.Fatalf("Read() error = %v, want RecordError wrapping ErrInvalidUTF8", err)
	}
	if rerr.Field != 1 || rerr.Record != 1 {
		t.Fatalf("RecordError = %+v, want field 1 of record 1", rerr)
	}

	record, err := r.Read()
	if err != nil || !reflect.DeepEqual(record, []string{"next", "row"}) {
		t.Fatalf("Read() after encoding error = %v, %v", record, err)
	}
}

func TestNewReaderNilPanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("NewReader should panic on nil reader")
		}
	}()
	NewReader(nil)
}

func TestNewReaderAmbiguousDialectPanics(t *testing.T) {
	t.Parallel()

	tests := map[string][]Option{
		"commaEqualsQuote":      {WithComma('"')},
		"newlineComma":          {WithComma('\n')},
		"backslashQuote":        {WithQuote('\\'), WithEscape(EscapeBackslash)},
		"terminatorStartsComma": {WithTerminator(FixedTerminator(",\n"))},
		"terminatorStartsQuote": {WithTerminator(FixedTerminator("\"|"))},
	}
	for name, opts := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if err := CheckOptions(opts...); err == nil {
				t.Fatalf("CheckOptions should reject %s", name)
			}
			defer func() {
				if r := recover(); r == nil {
					t.Fatalf("NewReader should panic for %s", name)
				}
			}()
			NewReader(strings.NewReader(""), opts...)
		})
	}
}

func TestCheckOptionsAcceptsDialects(t *testing.T) {
	t.Parallel()

	valid := [][]Option{
		nil,
		{WithComma(';'), WithQuote('\'')},
		{WithEscape(EscapeBackslash)},
		{WithTerminator(FixedTerminator("\r\n")), WithComma('\n')},
		{WithComma('\t'), WithCR(CRTerminator), WithHeaders(true)},
	}
	for i, opts := range valid {
		if err := CheckOptions(opts...); err != nil {
			t.Fatalf("CheckOptions(case %d) error = %v", i, err)
		}
	}
}

func cloneStrings(rec []string) []string {
	out := make([]string, len(rec))
	for i, s := range rec {
		out[i] = string([]byte(s))
	}
	return out
}
