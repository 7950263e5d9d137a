package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docsmoke/cmd/docsmoke/commands"
	"git.home.luguber.info/inful/docsmoke/internal/errors"
	"git.home.luguber.info/inful/docsmoke/internal/version"
)

func main() {
	var cli commands.CLI
	ctx := kong.Parse(&cli,
		kong.Name("docsmoke"),
		kong.Description("Smoke-tests documentation examples: fetches dependencies, compiles every example with strict flags, and runs it."),
		kong.UsageOnError(),
		kong.Vars{"version": version.Version},
	)

	err := ctx.Run(&commands.Global{Logger: slog.Default()}, &cli)
	if err != nil {
		adapter := errors.NewCLIErrorAdapter(cli.Verbose, slog.Default())
		os.Exit(adapter.HandleError(err))
	}
}
