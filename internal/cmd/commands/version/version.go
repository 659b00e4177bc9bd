package version

import (
	"github.com/hashicorp-forge/docview/internal/cmd/base"
	"github.com/hashicorp-forge/docview/internal/version"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Print the version of docview"
}

func (c *Command) Help() string {
	return `Usage: docview version

  Print the version of docview.`
}

func (c *Command) Run(args []string) int {
	c.UI.Output(version.Version)
	return 0
}
