package commands

import (
	"time"

	"git.home.luguber.info/inful/binlog/internal/logfields"
	"git.home.luguber.info/inful/binlog/pkg/binlog"
)

// TailCmd implements the 'tail' command.
type TailCmd struct {
	BackendFlag
	Name    string        `required:"" help:"Entry name to follow"`
	Timeout time.Duration `help:"Stop after this long without an entry (0 waits forever)"`
	Limit   int           `help:"Stop after this many entries (0 is unlimited)"`
	Format  string        `help:"Output format" enum:"text,json" default:"text"`
	String  bool          `help:"Render values as text"`
}

func (t *TailCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()
	st, err := t.open(ctx, root, g)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ss, err := binlog.AsSubscribeable(st)
	if err != nil {
		return err
	}
	sub, err := ss.Subscribe(ctx, t.Name)
	if err != nil {
		return err
	}
	defer func() { _ = sub.Close() }()

	timeout := binlog.NoTimeout
	if t.Timeout > 0 {
		timeout = t.Timeout
	}
	w := newEntryWriter(g.Out, t.Format, t.String)
	g.Logger.Debug("Following", logfields.Name(t.Name))

	for n := 0; t.Limit == 0 || n < t.Limit; n++ {
		e, ok, err := sub.Next(ctx, timeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if !ok {
			g.Logger.Debug("Tail timed out", logfields.Count(int64(n)))
			return nil
		}
		if err := w.write(e); err != nil {
			return err
		}
	}
	return nil
}
