package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/oleg578/swiftcsv/v2"
	"github.com/oleg578/swiftcsv/v2/internal/dialect"
)

type CountCmd struct {
	Files  []string `arg:"" optional:"" help:"Files to count; - reads standard input"`
	Fields bool     `help:"Count fields instead of records"`
	Jobs   int      `short:"j" default:"4" help:"Number of files read concurrently"`
}

func (c *CountCmd) Run(ctx context.Context, g *Globals, logger *slog.Logger, out io.Writer) error {
	if c.Jobs < 1 {
		return fmt.Errorf("jobs must be >= 1, got %d", c.Jobs)
	}
	files := c.Files
	if len(files) == 0 {
		files = []string{"-"}
	}
	d, err := g.resolve()
	if err != nil {
		return err
	}

	counts := make([]int, len(files))
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(c.Jobs)
	for i, path := range files {
		group.Go(func() error {
			n, err := c.countFile(gctx, path, d, logger)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			logger.Debug("counted", "file", path, "count", n, "fields", c.Fields)
			counts[i] = n
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	total := 0
	for i, path := range files {
		fmt.Fprintf(out, "%d\t%s\n", counts[i], path)
		total += counts[i]
	}
	if len(files) > 1 {
		fmt.Fprintf(out, "%d\ttotal\n", total)
	}
	logger.Info("count finished", "files", len(files), "total", total)
	return nil
}

func (c *CountCmd) countFile(ctx context.Context, path string, d dialect.Dialect, logger *slog.Logger) (int, error) {
	r, closer, err := open(path, d)
	if err != nil {
		return 0, err
	}
	defer closer.Close()

	if c.Fields {
		return countFields(ctx, r)
	}
	return countRecords(ctx, r, path, logger)
}

const cancelCheck = 1 << 12

func countRecords(ctx context.Context, r *swiftcsv.Reader, path string, logger *slog.Logger) (int, error) {
	n := 0
	for _, err := range r.ByteRecords() {
		var rerr *swiftcsv.RecordError
		switch {
		case errors.As(err, &rerr):
			logger.Warn("record width", "file", path, "record", rerr.Record, "line", rerr.Line, "err", rerr.Err)
		case err != nil:
			return n, err
		}
		n++
		if n%cancelCheck == 0 {
			if err := ctx.Err(); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

func countFields(ctx context.Context, r *swiftcsv.Reader) (int, error) {
	n := 0
	for {
		_, err := r.NextField()
		switch {
		case err == nil:
			n++
			if n%cancelCheck == 0 {
				if err := ctx.Err(); err != nil {
					return n, err
				}
			}
		case errors.Is(err, swiftcsv.ErrEndOfRecord):
		case err == io.EOF:
			return n, nil
		default:
			return n, err
		}
	}
}
