package commands

import (
	"git.home.luguber.info/inful/binlog/internal/daemon"
	"git.home.luguber.info/inful/binlog/internal/logfields"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct{}

func (d *DaemonCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	g.Logger.Info("Starting daemon mode", logfields.Path(root.configPath()))

	ctx, cancel := signalContext()
	defer cancel()

	dmn := daemon.New(cfg,
		daemon.WithConfigPath(root.configPath()),
		daemon.WithLogger(g.Logger),
		daemon.WithLevelVar(g.Level),
	)
	return dmn.Run(ctx)
}
