package commands

import (
	"git.home.luguber.info/inful/binlog/internal/foundation/errors"
)

// LatestCmd implements the 'latest' command.
type LatestCmd struct {
	BackendFlag
	Name   string `required:"" help:"Entry name"`
	Format string `help:"Output format" enum:"text,json" default:"text"`
	String bool   `help:"Render the value as text"`
}

func (l *LatestCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()
	st, err := l.open(ctx, root, g)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	e, ok, err := st.Latest(ctx, l.Name)
	if err != nil {
		return err
	}
	if !ok {
		return errors.NewError(errors.CategoryNotFound, "no entry for name").
			WithContext("name", l.Name).
			Build()
	}
	return newEntryWriter(g.Out, l.Format, l.String).write(e)
}
