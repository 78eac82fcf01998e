package commands

import (
	"time"

	"git.home.luguber.info/inful/binlog/internal/logfields"
	"git.home.luguber.info/inful/binlog/pkg/binlog"
)

// PushCmd implements the 'push' command.
type PushCmd struct {
	BackendFlag
	Name   string   `required:"" help:"Entry name"`
	TS     *int64   `name:"ts" help:"Timestamp in microseconds (default: now)"`
	String bool     `help:"Treat VALUE as UTF-8 text instead of decimal bytes"`
	Value  []string `arg:"" optional:"" help:"Payload"`
}

func (p *PushCmd) Run(g *Global, root *CLI) error {
	value, err := parseValue(p.Value, p.String)
	if err != nil {
		return err
	}
	ts := time.Now().UnixMicro()
	if p.TS != nil {
		ts = *p.TS
	}

	ctx, cancel := signalContext()
	defer cancel()
	st, err := p.open(ctx, root, g)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	e := binlog.NewEntry(ts, p.Name, value)
	if err := st.Push(ctx, e); err != nil {
		return err
	}
	g.Logger.Debug("Pushed entry", logfields.Name(e.Name), logfields.Timestamp(e.Timestamp))
	return nil
}
