package main

import (
	"fmt"
	"io"
	"os"

	"github.com/oleg578/swiftcsv/v2"
	"github.com/oleg578/swiftcsv/v2/internal/dialect"
	"github.com/oleg578/swiftcsv/v2/internal/textenc"
)

// Globals are the dialect flags shared by every command. Flags override the
// values of a --dialect file.
type Globals struct {
	Verbose    int    `short:"v" type:"counter" help:"Increase log verbosity (-v info, -vv debug)"`
	Dialect    string `type:"existingfile" help:"Dialect file (YAML, JSON or CUE)"`
	Delimiter  string `short:"d" help:"Field delimiter; \\t or tab for a tab"`
	Quote      string `help:"Quote character"`
	Escape     string `help:"Quote escaping inside quoted fields: doubled or backslash"`
	Terminator string `help:"Fixed record terminator such as \\r\\n; default accepts \\n and \\r\\n"`
	CR         string `name:"cr" help:"Lone carriage return handling: strict, literal or terminator"`
	EmptyLines string `help:"Empty line handling: skip or yield"`
	NoHeaders  bool   `help:"Treat the first record as data"`
	Flexible   bool   `help:"Allow records of any width"`
	Encoding   string `help:"Input encoding, e.g. utf-8, latin1, windows-1252, utf-16"`
}

// resolve merges the dialect file with the flags. Headers default to on.
func (g *Globals) resolve() (dialect.Dialect, error) {
	var d dialect.Dialect
	if g.Dialect != "" {
		loaded, err := dialect.Load(g.Dialect)
		if err != nil {
			return d, err
		}
		d = *loaded
	}

	flags := dialect.Dialect{
		Delimiter:  unescape(g.Delimiter),
		Quote:      g.Quote,
		Escape:     g.Escape,
		Terminator: unescape(g.Terminator),
		CR:         g.CR,
		EmptyLines: g.EmptyLines,
		Encoding:   g.Encoding,
	}
	if g.NoHeaders {
		no := false
		flags.Headers = &no
	}
	if g.Flexible {
		flags.FieldsPerRecord = -1
	}

	d = d.Override(flags)
	if d.Headers == nil {
		yes := true
		d.Headers = &yes
	}
	if _, err := d.Options(); err != nil {
		return d, err
	}
	return d, nil
}

// open returns a Reader over path, or standard input for "-".
func open(path string, d dialect.Dialect, extra ...swiftcsv.Option) (*swiftcsv.Reader, io.Closer, error) {
	var src io.ReadCloser = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, err
		}
		src = f
	}

	decoded, err := textenc.NewReader(src, d.Encoding)
	if err != nil {
		_ = src.Close()
		return nil, nil, err
	}
	opts, err := d.Options()
	if err != nil {
		_ = src.Close()
		return nil, nil, err
	}
	return swiftcsv.NewReader(decoded, append(opts, extra...)...), src, nil
}

func unescape(s string) string {
	switch s {
	case `\t`, "tab":
		return "\t"
	case `\n`:
		return "\n"
	case `\r\n`:
		return "\r\n"
	case `\r`:
		return "\r"
	}
	return s
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
