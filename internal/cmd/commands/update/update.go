package update

import (
	"flag"
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp-forge/docview/internal/cmd/base"
	"github.com/hashicorp-forge/docview/pkg/docclient"
)

type Command struct {
	*base.Command

	flagConfig string
	flagAPIURL string
	flagStatus string
	flagResult string
}

func (c *Command) Synopsis() string {
	return "Change the status or result of a document"
}

func (c *Command) Help() string {
	return `Usage: docview update [options] <doc_id>

  Update a document's processing status and/or result through the document
  API. At least one of -status or -result is required.` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("update", flag.ContinueOnError))

	f.StringVar(
		&c.flagConfig, "config", "",
		"[DOCVIEW_CONFIG] Path to HCL config file",
	)
	f.StringVar(
		&c.flagAPIURL, "api-url", "",
		"[DOCVIEW_API_URL] Base URL of the document API",
	)
	f.StringVar(
		&c.flagStatus, "status", "",
		"New processing status (pending, processing, completed or failed)",
	)
	f.StringVar(
		&c.flagResult, "result", "",
		"Path to a JSON file with the new processing result",
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
	if c.flagStatus == "" && c.flagResult == "" {
		c.UI.Error("one of -status or -result is required")
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

	req := docclient.UpdateDocumentRequest{Status: c.flagStatus}
	if c.flagResult != "" {
		data, err := os.ReadFile(c.flagResult)
		if err != nil {
			c.UI.Error(fmt.Sprintf("error reading result: %v", err))
			return 1
		}
		if req.Result, err = docclient.ParseRecord(data); err != nil {
			c.UI.Error(fmt.Sprintf("error parsing result %q: %v", c.flagResult, err))
			return 1
		}
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

	rec, err := client.UpdateDocument(ctx, docID, req)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	var updated struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec, &updated); err != nil {
		c.UI.Error(fmt.Sprintf("error decoding updated document: %v", err))
		return 1
	}

	c.Log.Info("updated document", "doc_id", docID, "status", updated.Status)
	c.UI.Output(fmt.Sprintf("%s %s", docID, updated.Status))
	return 0
}
