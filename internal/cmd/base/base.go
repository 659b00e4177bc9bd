package base

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/hashicorp-forge/docview/internal/config"
)

// Command is embedded by every docview command.
type Command struct {
	Log hclog.Logger
	UI  cli.Ui
}

// NewCommand returns a base command.
func NewCommand(log hclog.Logger, ui cli.Ui) *Command {
	return &Command{
		Log: log,
		UI:  ui,
	}
}

// FlagSet wraps a flag.FlagSet to render flag help in the CLI style.
type FlagSet struct {
	*flag.FlagSet
}

// NewFlagSet returns a FlagSet that writes parse errors nowhere; commands
// report them through the UI instead.
func NewFlagSet(f *flag.FlagSet) *FlagSet {
	f.SetOutput(&bytes.Buffer{})
	return &FlagSet{FlagSet: f}
}

// Help returns the formatted help text for all flags.
func (f *FlagSet) Help() string {
	var out strings.Builder
	first := true

	f.VisitAll(func(fl *flag.Flag) {
		if first {
			out.WriteString("\n\nOptions:\n")
			first = false
		}
		name, usage := flag.UnquoteUsage(fl)
		if name != "" {
			fmt.Fprintf(&out, "\n  -%s=<%s>\n", fl.Name, name)
		} else {
			fmt.Fprintf(&out, "\n  -%s\n", fl.Name)
		}
		if fl.DefValue != "" && fl.DefValue != "false" {
			usage = fmt.Sprintf("%s (default: %s)", usage, fl.DefValue)
		}
		fmt.Fprintf(&out, "    %s\n", usage)
	})

	return out.String()
}

// LoadConfig loads the HCL config at path, falling back to the
// DOCVIEW_CONFIG environment variable when path is empty.
func LoadConfig(path string) (*config.Config, error) {
	if val, ok := os.LookupEnv("DOCVIEW_CONFIG"); ok && path == "" {
		path = val
	}
	return config.Load(path)
}

// SignalContext returns a context that is canceled on interrupt or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
