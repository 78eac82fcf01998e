package commands

import (
	"git.home.luguber.info/inful/binlog/internal/config"
	"git.home.luguber.info/inful/binlog/internal/logfields"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool `help:"Overwrite existing configuration file"`
}

func (i *InitCmd) Run(g *Global, root *CLI) error {
	g.Logger.Debug("Initializing configuration", logfields.Path(root.configPath()))
	if err := config.Init(root.configPath(), i.Force); err != nil {
		return err
	}
	g.Printer.Fprintf(g.Out, "Wrote configuration to %s\n", root.configPath())
	return nil
}
