package main

import (
	"log/slog"
	"os"

	"git.home.luguber.info/inful/binlog/cmd/binlog/commands"
	"git.home.luguber.info/inful/binlog/internal/foundation/errors"
)

func main() {
	err := commands.Execute(os.Args[1:], os.Stdout, os.Stderr)
	if err != nil {
		adapter := errors.NewCLIErrorAdapter(commands.Verbose(os.Args[1:]), slog.Default())
		adapter.HandleError(err)
	}
}
