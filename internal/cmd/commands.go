package cmd

import (
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/hashicorp-forge/docview/internal/cmd/base"
	"github.com/hashicorp-forge/docview/internal/cmd/commands/importdoc"
	"github.com/hashicorp-forge/docview/internal/cmd/commands/open"
	"github.com/hashicorp-forge/docview/internal/cmd/commands/result"
	"github.com/hashicorp-forge/docview/internal/cmd/commands/server"
	"github.com/hashicorp-forge/docview/internal/cmd/commands/update"
	"github.com/hashicorp-forge/docview/internal/cmd/commands/version"
)

// Commands returns the CLI command factories.
func Commands(log hclog.Logger, ui cli.Ui) map[string]cli.CommandFactory {
	b := base.NewCommand(log, ui)

	return map[string]cli.CommandFactory{
		"import": func() (cli.Command, error) {
			return &importdoc.Command{Command: b}, nil
		},
		"open": func() (cli.Command, error) {
			return &open.Command{Command: b}, nil
		},
		"result": func() (cli.Command, error) {
			return &result.Command{Command: b}, nil
		},
		"server": func() (cli.Command, error) {
			return &server.Command{Command: b}, nil
		},
		"update": func() (cli.Command, error) {
			return &update.Command{Command: b}, nil
		},
		"version": func() (cli.Command, error) {
			return &version.Command{Command: b}, nil
		},
	}
}
