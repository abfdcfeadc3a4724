package sqlload

import "strings"

type Config struct {
	table   string
	batch   int
	replace bool
}

type ConfigFunc = func(c *Config)

// WithTable sets the destination table. Default is "records".
func WithTable(table string) ConfigFunc {
	return func(c *Config) {
		c.Table(table)
	}
}

// WithBatch commits every batch rows instead of once at the end.
func WithBatch(batch int) ConfigFunc {
	return func(c *Config) {
		c.Batch(batch)
	}
}

// WithReplace drops an existing table of the same name before loading.
func WithReplace(replace bool) ConfigFunc {
	return func(c *Config) {
		c.replace = replace
	}
}

func (c *Config) Table(table string) {
	table = strings.TrimSpace(table)
	if table == "" {
		panic("table can't be blank")
	}
	c.table = table
}

func (c *Config) Batch(batch int) {
	if batch < 0 {
		panic("batch can't be < 0")
	}
	c.batch = batch
}
