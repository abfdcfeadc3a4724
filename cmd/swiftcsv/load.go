package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/oleg578/swiftcsv/v2/internal/sqlload"
)

type LoadCmd struct {
	File    string `arg:"" help:"File to load; - reads standard input"`
	DB      string `name:"db" required:"" help:"SQLite database file"`
	Table   string `help:"Destination table; defaults to the file name without extension"`
	Replace bool   `help:"Drop the table before loading"`
	Batch   int    `help:"Commit every N rows; 0 loads in a single transaction"`
}

func (c *LoadCmd) Run(ctx context.Context, g *Globals, logger *slog.Logger, out io.Writer) error {
	if c.Batch < 0 {
		return fmt.Errorf("batch must be >= 0, got %d", c.Batch)
	}
	d, err := g.resolve()
	if err != nil {
		return err
	}

	r, closer, err := open(c.File, d)
	if err != nil {
		return err
	}
	defer closer.Close()

	db, err := sqlload.Open(c.DB)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	table := c.table()
	logger.Info("loading", "file", c.File, "db", c.DB, "table", table)
	n, err := sqlload.Load(ctx, db, r,
		sqlload.WithTable(table),
		sqlload.WithReplace(c.Replace),
		sqlload.WithBatch(c.Batch),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", c.File, err)
	}
	fmt.Fprintf(out, "loaded %s into %s\n", plural(n, "row"), table)
	return nil
}

func (c *LoadCmd) table() string {
	if c.Table != "" {
		return c.Table
	}
	if c.File == "-" {
		return "records"
	}
	base := filepath.Base(c.File)
	if name := strings.TrimSuffix(base, filepath.Ext(base)); name != "" {
		return name
	}
	return "records"
}
