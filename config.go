package swiftcsv

import "errors"

const (
	defaultBufferSize = 1 << 14 // 16 KiB
	minBufferSize     = 16
	maxTerminatorLen  = 8
)

// Escape selects how a quote character is written inside a quoted field.
type Escape int

const (
	// EscapeDoubled treats two consecutive quotes inside a quoted field as one literal quote.
	EscapeDoubled Escape = iota
	// EscapeBackslash treats a backslash inside a quoted field as escaping the following byte.
	EscapeBackslash
)

func (e Escape) String() string {
	switch e {
	case EscapeDoubled:
		return "doubled"
	case EscapeBackslash:
		return "backslash"
	default:
		return "unknown"
	}
}

// CRPolicy decides what a '\r' that is not followed by '\n' means when the terminator is auto.
type CRPolicy int

const (
	// CRStrict rejects a lone '\r' outside quoted fields with ErrAmbiguousCR.
	CRStrict CRPolicy = iota
	// CRLiteral keeps a lone '\r' as field content.
	CRLiteral
	// CRTerminator ends the record at a lone '\r'.
	CRTerminator
)

func (p CRPolicy) String() string {
	switch p {
	case CRStrict:
		return "strict"
	case CRLiteral:
		return "literal"
	case CRTerminator:
		return "terminator"
	default:
		return "unknown"
	}
}

// EmptyLinePolicy decides what happens to a physical line that contains no bytes at all.
type EmptyLinePolicy int

const (
	// SkipEmptyLines drops empty lines without counting them as records.
	SkipEmptyLines EmptyLinePolicy = iota
	// YieldEmptyLines returns each empty line as a record holding one empty field.
	YieldEmptyLines
)

// Terminator describes the byte sequence that ends a record.
// The zero value is TerminatorAuto.
type Terminator struct {
	seq string
}

// TerminatorAuto accepts both "\n" and "\r\n".
var TerminatorAuto = Terminator{}

// FixedTerminator returns a terminator matching exactly seq.
// It panics if seq is empty or longer than 8 bytes.
func FixedTerminator(seq string) Terminator {
	if seq == "" {
		panic("swiftcsv: terminator can't be empty")
	}
	if len(seq) > maxTerminatorLen {
		panic("swiftcsv: terminator can't be longer than 8 bytes")
	}
	return Terminator{seq: seq}
}

// IsAuto reports whether t is TerminatorAuto.
func (t Terminator) IsAuto() bool { return t.seq == "" }

func (t Terminator) String() string {
	if t.IsAuto() {
		return "auto"
	}
	return t.seq
}

type config struct {
	comma           byte
	quote           byte
	escape          Escape
	terminator      Terminator
	cr              CRPolicy
	headers         bool
	emptyLines      EmptyLinePolicy
	fieldsPerRecord int
	reuseRecord     bool
	bufferSize      int
}

func defaultConfig() config {
	return config{
		comma:      ',',
		quote:      '"',
		bufferSize: defaultBufferSize,
	}
}

// validate panics on combinations the scanner cannot disambiguate.
func (c *config) validate() {
	if err := c.check(); err != nil {
		panic(err.Error())
	}
}

func (c *config) check() error {
	if c.comma == c.quote {
		return errors.New("swiftcsv: comma and quote can't be the same byte")
	}
	if c.escape == EscapeBackslash && (c.comma == '\\' || c.quote == '\\') {
		return errors.New("swiftcsv: backslash escaping conflicts with comma or quote")
	}
	if c.terminator.IsAuto() {
		for _, b := range []byte{c.comma, c.quote} {
			if b == '\n' || b == '\r' {
				return errors.New("swiftcsv: comma and quote can't be line break bytes")
			}
		}
		return nil
	}
	first := c.terminator.seq[0]
	if first == c.comma || first == c.quote {
		return errors.New("swiftcsv: terminator can't start with the comma or quote byte")
	}
	return nil
}

// CheckOptions reports the error NewReader would panic with for opts, or nil
// when they describe an unambiguous dialect.
func CheckOptions(opts ...Option) error {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg.check()
}

// Option configures a Reader. Options are applied once by NewReader.
type Option func(*config)

// WithComma sets the field delimiter. Default is ','.
func WithComma(comma byte) Option {
	return func(c *config) {
		c.comma = comma
	}
}

// WithQuote sets the quote character. Default is '"'.
func WithQuote(quote byte) Option {
	return func(c *config) {
		c.quote = quote
	}
}

// WithEscape sets the escape policy used inside quoted fields. Default is EscapeDoubled.
func WithEscape(escape Escape) Option {
	if escape != EscapeDoubled && escape != EscapeBackslash {
		panic("swiftcsv: unknown escape policy")
	}
	return func(c *config) {
		c.escape = escape
	}
}

// WithTerminator sets the record terminator. Default is TerminatorAuto.
func WithTerminator(t Terminator) Option {
	return func(c *config) {
		c.terminator = t
	}
}

// WithCR sets the handling of a lone '\r' under TerminatorAuto. Default is CRStrict.
// It has no effect with a fixed terminator, where '\r' is content unless it starts the terminator.
func WithCR(policy CRPolicy) Option {
	if policy < CRStrict || policy > CRTerminator {
		panic("swiftcsv: unknown CR policy")
	}
	return func(c *config) {
		c.cr = policy
	}
}

// WithHeaders makes the first record the header record instead of yielding it.
func WithHeaders(headers bool) Option {
	return func(c *config) {
		c.headers = headers
	}
}

// WithEmptyLines sets the empty line policy. Default is SkipEmptyLines.
func WithEmptyLines(policy EmptyLinePolicy) Option {
	if policy != SkipEmptyLines && policy != YieldEmptyLines {
		panic("swiftcsv: unknown empty line policy")
	}
	return func(c *config) {
		c.emptyLines = policy
	}
}

// WithFieldsPerRecord sets the expected record width.
// Zero captures the width of the first record, a negative value disables the check.
func WithFieldsPerRecord(n int) Option {
	return func(c *config) {
		c.fieldsPerRecord = n
	}
}

// WithReuseRecord makes Read return slices and strings that share storage with the next record.
func WithReuseRecord(reuse bool) Option {
	return func(c *config) {
		c.reuseRecord = reuse
	}
}

// WithBufferSize sets the size of the read window pulled from the source.
func WithBufferSize(size int) Option {
	if size < minBufferSize {
		panic("swiftcsv: buffer size can't be < 16")
	}
	return func(c *config) {
		c.bufferSize = size
	}
}
