package commands

import (
	"log/slog"

	"git.home.luguber.info/inful/docsmoke/internal/config"
	"git.home.luguber.info/inful/docsmoke/internal/logfields"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool `help:"Overwrite existing configuration file"`
}

func (i *InitCmd) Run(_ *Global, root *CLI) error {
	slog.Info("Initializing configuration", logfields.Path(root.Config), slog.Bool("force", i.Force))
	return config.Init(root.Config, i.Force)
}
