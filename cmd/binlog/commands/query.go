package commands

import (
	"git.home.luguber.info/inful/binlog/internal/logfields"
)

// CountCmd implements the 'count' command.
type CountCmd struct {
	BackendFlag
	RangeFlags
}

func (c *CountCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()
	rng, done, err := c.query(ctx, c.BackendFlag, root, g)
	if err != nil {
		return err
	}
	defer done()

	n, err := rng.Count(ctx)
	if err != nil {
		return err
	}
	g.Printer.Fprintf(g.Out, "%d\n", n)
	return nil
}

// DumpCmd implements the 'dump' command.
type DumpCmd struct {
	BackendFlag
	RangeFlags
	Format string `help:"Output format" enum:"text,json" default:"text"`
	String bool   `help:"Render values as text"`
}

func (d *DumpCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()
	rng, done, err := d.query(ctx, d.BackendFlag, root, g)
	if err != nil {
		return err
	}
	defer done()

	w := newEntryWriter(g.Out, d.Format, d.String)
	var n int64
	for e, err := range rng.Iter(ctx) {
		if err != nil {
			return err
		}
		if err := w.write(e); err != nil {
			return err
		}
		n++
	}
	g.Logger.Debug("Dump complete", logfields.Count(n))
	return nil
}

// RemoveCmd implements the 'remove' command.
type RemoveCmd struct {
	BackendFlag
	RangeFlags
}

func (r *RemoveCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()
	rng, done, err := r.query(ctx, r.BackendFlag, root, g)
	if err != nil {
		return err
	}
	defer done()

	n, err := rng.Remove(ctx)
	if err != nil {
		return err
	}
	g.Printer.Fprintf(g.Out, "Removed %d entries\n", n)
	return nil
}
