package server

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp-forge/docview/internal/api"
	"github.com/hashicorp-forge/docview/internal/cmd/base"
	"github.com/hashicorp-forge/docview/internal/config"
	"github.com/hashicorp-forge/docview/internal/server"
	"github.com/hashicorp-forge/docview/internal/web"
	"github.com/hashicorp-forge/docview/pkg/database"
	"github.com/hashicorp-forge/docview/pkg/docclient"
	"github.com/hashicorp-forge/docview/pkg/storage"
)

const shutdownTimeout = 10 * time.Second

type Command struct {
	*base.Command

	flagConfig string
}

func (c *Command) Synopsis() string {
	return "Run the document API and result pages"
}

func (c *Command) Help() string {
	return `Usage: docview server [options]

  Run the document API (/api/documents) and the document result pages
  (/result/{doc_id}) on one listener.

  Without -config, defaults are used: listen on 0.0.0.0:8808, store
  documents under ./storage and keep the database in
  ./storage/documents.db.` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("server", flag.ContinueOnError))

	f.StringVar(
		&c.flagConfig, "config", "",
		"[DOCVIEW_CONFIG] Path to HCL config file",
	)
	return f
}

func (c *Command) Run(args []string) int {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	cfg, err := base.LoadConfig(c.flagConfig)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	c.Log.SetLevel(hclog.LevelFromString(cfg.LogLevel))

	ctx, stop := base.SignalContext()
	defer stop()

	if err := c.serve(ctx, cfg); err != nil {
		c.Log.Error("server failed", "error", err)
		return 1
	}
	return 0
}

func (c *Command) serve(ctx context.Context, cfg *config.Config) error {
	log := c.Log

	store := storage.NewOS(cfg.Storage.Dir)
	if err := store.EnsureLayout(); err != nil {
		return err
	}

	db, err := database.Connect(cfg.DatabaseConfig(), log)
	if err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	srv := server.Server{
		Config:  cfg,
		DB:      db,
		Storage: store,
		Logger:  log,
	}

	addr := cfg.ListenAddress()

	clientCfg, err := cfg.ClientConfig()
	if err != nil {
		return err
	}
	// The result pages look documents up through the HTTP API like any
	// other client would.
	client, err := docclient.New(clientCfg, log.Named("docclient"))
	if err != nil {
		return err
	}

	results, err := web.NewResultHandler(web.Options{
		Lookup:          client,
		Logger:          log.Named("web"),
		Context:         ctx,
		DiscardStale:    cfg.View.DiscardStale,
		RefreshInterval: cfg.RefreshInterval(),
		LoadWait:        cfg.LoadWait(),
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           newHandler(srv, results),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", addr, "storage", store.Root(), "api", clientCfg.BaseURL)
		c.UI.Info(fmt.Sprintf("Document results: http://%s/result/{doc_id}", cfg.LocalAddress()))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error starting listener: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}
	return nil
}

// newHandler routes the document API, the health check and the result
// pages. Only the document API is wrapped in CORS.
func newHandler(srv server.Server, results *web.ResultHandler) http.Handler {
	mux := http.NewServeMux()

	documents := api.CORSMiddleware(srv.Config.Server.CORSOrigins, api.DocumentsHandler(srv))
	mux.Handle("/api/documents", documents)
	mux.Handle("/api/documents/", documents)
	mux.Handle("/health", api.HealthHandler(srv))
	results.Register(mux)

	return mux
}
