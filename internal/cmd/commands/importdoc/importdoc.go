package importdoc

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp-forge/docview/internal/cmd/base"
	"github.com/hashicorp-forge/docview/pkg/docclient"
)

type Command struct {
	*base.Command

	flagConfig   string
	flagAPIURL   string
	flagFilename string
	flagSource   string
	flagStatus   string
}

func (c *Command) Synopsis() string {
	return "Upload a processing result as a new document"
}

func (c *Command) Help() string {
	return `Usage: docview import [options] <result.json>

  Create a document through the document API from a JSON result file and
  print the new document's identifier. Use "-" to read the result from
  standard input.

  With -source, the original document file is uploaded too and stored in
  the server's incoming directory.` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("import", flag.ContinueOnError))

	f.StringVar(
		&c.flagConfig, "config", "",
		"[DOCVIEW_CONFIG] Path to HCL config file",
	)
	f.StringVar(
		&c.flagAPIURL, "api-url", "",
		"[DOCVIEW_API_URL] Base URL of the document API",
	)
	f.StringVar(
		&c.flagFilename, "filename", "",
		"Original filename of the document, defaults to the -source file's name or the result file's name",
	)
	f.StringVar(
		&c.flagSource, "source", "",
		"Path to the original document file to upload",
	)
	f.StringVar(
		&c.flagStatus, "status", "",
		"Processing status (pending, processing, completed or failed)",
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
		c.UI.Error("expected exactly one result file")
		c.UI.Error(c.Help())
		return 1
	}
	path := f.Arg(0)

	cfg, err := base.LoadConfig(c.flagConfig)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	c.Log.SetLevel(hclog.LevelFromString(cfg.LogLevel))
	if c.flagAPIURL != "" {
		cfg.API.BaseURL = c.flagAPIURL
	}

	data, err := readResult(path)
	if err != nil {
		c.UI.Error(fmt.Sprintf("error reading result: %v", err))
		return 1
	}
	result, err := docclient.ParseRecord(data)
	if err != nil {
		c.UI.Error(fmt.Sprintf("error parsing result %q: %v", path, err))
		return 1
	}

	filename := c.flagFilename
	if filename == "" && c.flagSource != "" {
		filename = filepath.Base(c.flagSource)
	}
	if filename == "" {
		if path == "-" {
			c.UI.Error("-filename is required when reading from standard input")
			return 1
		}
		filename = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
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

	id, err := createDocument(ctx, client, docclient.CreateDocumentRequest{
		Filename: filename,
		Status:   c.flagStatus,
		Result:   result,
	})
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	if c.flagSource != "" {
		if err := uploadSource(ctx, client, id, c.flagSource); err != nil {
			c.UI.Error(fmt.Sprintf("document %s created, but uploading its source failed: %v", id, err))
			return 1
		}
	}

	c.Log.Info("imported document", "doc_id", id, "filename", filename)
	c.UI.Output(id)
	return 0
}

func readResult(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func createDocument(
	ctx context.Context, client *docclient.Client, req docclient.CreateDocumentRequest,
) (string, error) {
	rec, err := client.CreateDocument(ctx, req)
	if err != nil {
		return "", err
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec, &created); err != nil {
		return "", fmt.Errorf("error decoding created document: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("created document has no id")
	}
	return created.ID, nil
}

func uploadSource(ctx context.Context, client *docclient.Client, id, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = client.UploadSource(ctx, id, filepath.Base(path), f)
	return err
}
