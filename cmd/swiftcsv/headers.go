package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
)

type HeadersCmd struct {
	File string `arg:"" default:"-" help:"File to read; - reads standard input"`
}

func (c *HeadersCmd) Run(g *Globals, logger *slog.Logger, out io.Writer) error {
	d, err := g.resolve()
	if err != nil {
		return err
	}
	yes := true
	d.Headers = &yes

	r, closer, err := open(c.File, d)
	if err != nil {
		return err
	}
	defer closer.Close()

	headers, err := r.Headers()
	if err != nil {
		return err
	}
	if headers == nil {
		return errors.New("input is empty")
	}
	logger.Debug("headers", "file", c.File, "count", len(headers))
	for i, h := range headers {
		fmt.Fprintf(out, "%d\t%s\n", i+1, h)
	}
	return nil
}
