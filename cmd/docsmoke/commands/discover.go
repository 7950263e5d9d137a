package commands

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/docsmoke/internal/config"
)

// DiscoverCmd implements the 'discover' command: enumerate examples only.
type DiscoverCmd struct {
	Filter string `short:"f" help:"Only list examples whose name contains this substring"`
}

func (d *DiscoverCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	deps := buildService(cfg, nil)
	defer deps.Close()

	all, err := deps.Service.Discover()
	if err != nil {
		return err
	}

	count := 0
	for _, ex := range all {
		if d.Filter != "" && !strings.Contains(ex.Name, d.Filter) {
			continue
		}
		count++
		if ex.Line > 0 {
			fmt.Printf("%s\t%s\t%s:%d\n", ex.Name, ex.Kind, ex.Path, ex.Line)
		} else {
			fmt.Printf("%s\t%s\t%s\n", ex.Name, ex.Kind, ex.Path)
		}
	}
	fmt.Printf("%d example(s)\n", count)
	return nil
}
