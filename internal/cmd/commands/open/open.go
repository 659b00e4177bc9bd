package open

import (
	"flag"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/browser"

	"github.com/hashicorp-forge/docview/internal/cmd/base"
)

type Command struct {
	*base.Command

	flagConfig string
	flagURL    string
	flagWait   time.Duration
	flagNoOpen bool
}

func (c *Command) Synopsis() string {
	return "Open a document result page in the browser"
}

func (c *Command) Help() string {
	return `Usage: docview open [options] <doc_id>

  Wait for a running docview server to become healthy, then open the
  result page for the document in the default browser.` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("open", flag.ContinueOnError))

	f.StringVar(
		&c.flagConfig, "config", "",
		"[DOCVIEW_CONFIG] Path to HCL config file",
	)
	f.StringVar(
		&c.flagURL, "url", "",
		"Base URL of the docview server, defaults to the local listen address",
	)
	f.DurationVar(
		&c.flagWait, "wait", 30*time.Second,
		"How long to wait for the server to become healthy",
	)
	f.BoolVar(
		&c.flagNoOpen, "no-browser", false,
		"Print the result page URL instead of opening it",
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

	baseURL := c.flagURL
	if baseURL == "" {
		baseURL = "http://" + cfg.LocalAddress()
	}
	baseURL = strings.TrimRight(baseURL, "/")

	clientCfg, err := cfg.ClientConfig()
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	ctx, cancel := base.SignalContext()
	defer cancel()

	c.Log.Debug("waiting for server", "url", baseURL)
	if err := waitForServer(ctx, clientCfg.NewHTTPClient(), baseURL, c.flagWait); err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	pageURL := resultURL(baseURL, docID)
	if c.flagNoOpen {
		c.UI.Output(pageURL)
		return 0
	}

	c.UI.Info(fmt.Sprintf("Opening %s", pageURL))
	if err := browser.OpenURL(pageURL); err != nil {
		c.Log.Warn("failed to open browser", "error", err)
		c.UI.Output(pageURL)
	}
	return 0
}

func resultURL(baseURL, docID string) string {
	return baseURL + "/result/" + url.PathEscape(docID)
}
