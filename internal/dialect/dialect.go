// Package dialect loads CSV dialect descriptions from YAML, JSON and CUE files
// and turns them into reader options. CUE is the underlying parser for every format,
// so all three are checked against the same schema.
package dialect

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	"github.com/oleg578/swiftcsv/v2"
)

const schema = `
#Dialect: {
	delimiter?:         string
	quote?:             string
	escape?:            "doubled" | "backslash"
	terminator?:        string
	cr?:                "strict" | "literal" | "terminator"
	empty_lines?:       "skip" | "yield"
	headers?:           bool
	fields_per_record?: int
	encoding?:          string
}
`

// Dialect describes how a CSV file is laid out. Empty fields keep the reader defaults.
type Dialect struct {
	Delimiter  string `json:"delimiter,omitempty"`
	Quote      string `json:"quote,omitempty"`
	Escape     string `json:"escape,omitempty"`
	Terminator string `json:"terminator,omitempty"`
	CR         string `json:"cr,omitempty"`
	EmptyLines string `json:"empty_lines,omitempty"`
	Headers    *bool  `json:"headers,omitempty"`
	// FieldsPerRecord follows the reader: 0 captures the width, negative disables the check.
	FieldsPerRecord int    `json:"fields_per_record,omitempty"`
	Encoding        string `json:"encoding,omitempty"`
}

// Load reads a dialect from a .yaml, .yml, .json or .cue file.
// Files with any other extension are parsed as YAML.
func Load(path string) (*Dialect, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dialect: %w", err)
	}

	ctx := cuecontext.New()
	var val cue.Value
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".cue":
		// JSON is valid CUE.
		val = ctx.CompileBytes(data, cue.Filename(path))
	default:
		file, err := yaml.Extract(path, data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse dialect: %w", err)
		}
		val = ctx.BuildFile(file)
	}
	return decode(ctx, val)
}

// LoadReader reads a YAML (or JSON) dialect from r.
func LoadReader(r io.Reader) (*Dialect, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read dialect: %w", err)
	}
	file, err := yaml.Extract("", data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dialect: %w", err)
	}
	ctx := cuecontext.New()
	return decode(ctx, ctx.BuildFile(file))
}

func decode(ctx *cue.Context, val cue.Value) (*Dialect, error) {
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("failed to build CUE value: %w", err)
	}

	def := ctx.CompileString(schema).LookupPath(cue.ParsePath("#Dialect"))
	unified := def.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid dialect: %w", err)
	}

	var d Dialect
	if err := unified.Decode(&d); err != nil {
		return nil, fmt.Errorf("failed to decode dialect: %w", err)
	}
	if _, err := d.Options(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Override returns d with every field set in o replacing the one in d.
func (d Dialect) Override(o Dialect) Dialect {
	set := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	set(&d.Delimiter, o.Delimiter)
	set(&d.Quote, o.Quote)
	set(&d.Escape, o.Escape)
	set(&d.Terminator, o.Terminator)
	set(&d.CR, o.CR)
	set(&d.EmptyLines, o.EmptyLines)
	set(&d.Encoding, o.Encoding)
	if o.Headers != nil {
		d.Headers = o.Headers
	}
	if o.FieldsPerRecord != 0 {
		d.FieldsPerRecord = o.FieldsPerRecord
	}
	return d
}

// Options converts d into reader options. It fails on values the reader
// would reject, instead of letting NewReader panic.
func (d Dialect) Options() ([]swiftcsv.Option, error) {
	var opts []swiftcsv.Option

	if d.Delimiter != "" {
		b, err := singleByte("delimiter", d.Delimiter)
		if err != nil {
			return nil, err
		}
		opts = append(opts, swiftcsv.WithComma(b))
	}
	if d.Quote != "" {
		b, err := singleByte("quote", d.Quote)
		if err != nil {
			return nil, err
		}
		opts = append(opts, swiftcsv.WithQuote(b))
	}

	switch d.Escape {
	case "", "doubled":
	case "backslash":
		opts = append(opts, swiftcsv.WithEscape(swiftcsv.EscapeBackslash))
	default:
		return nil, fmt.Errorf("unknown escape %q", d.Escape)
	}

	switch t := d.Terminator; {
	case t == "" || t == "auto":
	case len(t) > 8:
		return nil, fmt.Errorf("terminator %q is longer than 8 bytes", t)
	default:
		opts = append(opts, swiftcsv.WithTerminator(swiftcsv.FixedTerminator(t)))
	}

	switch d.CR {
	case "", "strict":
	case "literal":
		opts = append(opts, swiftcsv.WithCR(swiftcsv.CRLiteral))
	case "terminator":
		opts = append(opts, swiftcsv.WithCR(swiftcsv.CRTerminator))
	default:
		return nil, fmt.Errorf("unknown cr policy %q", d.CR)
	}

	switch d.EmptyLines {
	case "", "skip":
	case "yield":
		opts = append(opts, swiftcsv.WithEmptyLines(swiftcsv.YieldEmptyLines))
	default:
		return nil, fmt.Errorf("unknown empty line policy %q", d.EmptyLines)
	}

	if d.Headers != nil {
		opts = append(opts, swiftcsv.WithHeaders(*d.Headers))
	}
	if d.FieldsPerRecord != 0 {
		opts = append(opts, swiftcsv.WithFieldsPerRecord(d.FieldsPerRecord))
	}

	if err := swiftcsv.CheckOptions(opts...); err != nil {
		return nil, err
	}
	return opts, nil
}

func singleByte(name, value string) (byte, error) {
	if len(value) != 1 {
		return 0, fmt.Errorf("%s must be a single byte, got %q", name, value)
	}
	return value[0], nil
}
