package result

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp-forge/docview/internal/cmd/base"
	"github.com/hashicorp-forge/docview/pkg/docclient"
	"github.com/hashicorp-forge/docview/pkg/resultview"
)

type Command struct {
	*base.Command

	flagConfig  string
	flagAPIURL  string
	flagTimeout time.Duration
}

func (c *Command) Synopsis() string {
	return "Print the result of a document"
}

func (c *Command) Help() string {
	return `Usage: docview result [options] <doc_id>

  Look up a document through the document API and print its result as
  indented JSON under a "Document Result" heading. "Loading..." is printed
  while the lookup is outstanding.

  A failed lookup is logged and the command keeps waiting, so use -timeout
  to bound it.` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("result", flag.ContinueOnError))

	f.StringVar(
		&c.flagConfig, "config", "",
		"[DOCVIEW_CONFIG] Path to HCL config file",
	)
	f.StringVar(
		&c.flagAPIURL, "api-url", "",
		"[DOCVIEW_API_URL] Base URL of the document API",
	)
	f.DurationVar(
		&c.flagTimeout, "timeout", 0,
		"How long to wait for the document, 0 waits until interrupted",
	)
	return f
}

func (c *Command) Run(args []string) int {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}
	if f.NArg() != 1 {
		c.UI.Error("expected exactly one document identifier")
		c.UI.Error(c.Help())
		return 1
	}
	docID := f.Arg(0)

	cfg, err := base.LoadConfig(c.flagConfig)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	c.Log.SetLevel(hclog.LevelFromString(cfg.LogLevel))
	if c.flagAPIURL != "" {
		cfg.API.BaseURL = c.flagAPIURL
	}

	clientCfg, err := cfg.ClientConfig()
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	client, err := docclient.New(clientCfg, c.Log.Named("docclient"))
	if err != nil {
		c.UI.Error(fmt.Sprintf("error creating document client: %v", err))
		return 1
	}

	ctx, cancel := base.SignalContext()
	defer cancel()
	if c.flagTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, c.flagTimeout)
		defer cancelTimeout()
	}

	view := resultview.New(client,
		resultview.WithLogger(c.Log.Named("view")),
		resultview.WithContext(ctx),
		resultview.WithDiscardStale(cfg.View.DiscardStale),
	)

	page := view.Render(resultview.Params{resultview.ParamDocID: docID})
	if page.Loading {
		c.UI.Output(strings.TrimSuffix(pageText(page), "\n"))
	}

	page, err = view.WaitLoaded(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.UI.Error(fmt.Sprintf("timed out waiting for document %q", docID))
		}
		return 1
	}

	c.UI.Output(strings.TrimSuffix(pageText(page), "\n"))
	return 0
}

func pageText(page resultview.Page) string {
	var sb strings.Builder
	// strings.Builder never returns a write error.
	_ = page.WriteText(&sb)
	return sb.String()
}
