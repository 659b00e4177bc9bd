package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/hashicorp-forge/docview/pkg/database"
	"github.com/hashicorp-forge/docview/pkg/docclient"
)

// Defaults.
const (
	DefaultHost            = "0.0.0.0"
	DefaultPort            = 8808
	DefaultStorageDir      = "storage"
	DefaultDatabaseFile    = "documents.db"
	DefaultAPITimeout      = "30s"
	DefaultRefreshInterval = "1s"
	DefaultLoadWait        = "500ms"
	DefaultLogLevel        = "info"
)

// Environment variables that override the config file.
const (
	EnvAPIHost     = "API_HOST"
	EnvAPIPort     = "API_PORT"
	EnvCORSOrigins = "CORS_ORIGINS"
	EnvStorageDir  = "DOCVIEW_STORAGE_DIR"
	EnvDatabaseDSN = "DOCVIEW_DATABASE_DSN"
	EnvAPIURL      = "DOCVIEW_API_URL"
	EnvAPIToken    = "DOCVIEW_API_TOKEN"
	EnvLogLevel    = "DOCVIEW_LOG_LEVEL"
)

// Config contains the docview configuration.
type Config struct {
	// Server configures the HTTP listener.
	Server *Server `hcl:"server,block"`

	// Storage configures the document storage directory.
	Storage *Storage `hcl:"storage,block"`

	// Database configures the document database.
	Database *Database `hcl:"database,block"`

	// API configures the document API client used by the result view.
	API *API `hcl:"api,block"`

	// View configures the result view.
	View *View `hcl:"view,block"`

	// LogLevel is the log level (trace, debug, info, warn, error).
	LogLevel string `hcl:"log_level,optional"`
}

// Server configures the HTTP listener.
type Server struct {
	Host        string   `hcl:"host,optional"`
	Port        int      `hcl:"port,optional"`
	CORSOrigins []string `hcl:"cors_origins,optional"`
}

// Storage configures the storage root. The incoming/ and results/
// directories live beneath it.
type Storage struct {
	Dir string `hcl:"dir,optional"`
}

// Database configures the document database.
type Database struct {
	// Driver is "sqlite" (default) or "postgres".
	Driver string `hcl:"driver,optional"`

	// Path is the sqlite database file. Defaults to <storage>/documents.db.
	Path string `hcl:"path,optional"`

	// DSN is the postgres connection string.
	DSN string `hcl:"dsn,optional"`
}

// API configures the document API client.
type API struct {
	// BaseURL defaults to the local server address.
	BaseURL   string `hcl:"base_url,optional"`
	AuthToken string `hcl:"auth_token,optional"`
	Timeout   string `hcl:"timeout,optional"`
	TLSVerify *bool  `hcl:"tls_verify,optional"`
}

// View configures the result view.
type View struct {
	// DiscardStale drops lookup responses for identifiers that are no longer
	// current. Off by default: the last response to resolve wins.
	DiscardStale bool `hcl:"discard_stale,optional"`

	// RefreshInterval is how often a loading page asks the browser to
	// re-render.
	RefreshInterval string `hcl:"refresh_interval,optional"`

	// LoadWait is how long a result page request waits for a loading
	// document before answering. "0s" answers immediately.
	LoadWait string `hcl:"load_wait,optional"`
}

// Default returns a config with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the HCL config file at path (if any), applies environment
// overrides and defaults, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		if err := hclsimple.DecodeFile(path, nil, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv applies environment overrides using lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if c.Server == nil {
		c.Server = &Server{}
	}
	if c.Storage == nil {
		c.Storage = &Storage{}
	}
	if c.Database == nil {
		c.Database = &Database{}
	}
	if c.API == nil {
		c.API = &API{}
	}

	if v, ok := lookup(EnvAPIHost); ok && v != "" {
		c.Server.Host = v
	}
	if v, ok := lookup(EnvAPIPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvAPIPort, v, err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup(EnvCORSOrigins); ok && v != "" {
		c.Server.CORSOrigins = splitList(v)
	}
	if v, ok := lookup(EnvStorageDir); ok && v != "" {
		c.Storage.Dir = v
	}
	if v, ok := lookup(EnvDatabaseDSN); ok && v != "" {
		c.Database.Driver = database.DriverPostgres
		c.Database.DSN = v
	}
	if v, ok := lookup(EnvAPIURL); ok && v != "" {
		c.API.BaseURL = v
	}
	if v, ok := lookup(EnvAPIToken); ok && v != "" {
		c.API.AuthToken = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Server == nil {
		c.Server = &Server{}
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}

	if c.Storage == nil {
		c.Storage = &Storage{}
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = DefaultStorageDir
	}

	if c.Database == nil {
		c.Database = &Database{}
	}
	if c.Database.Driver == "" {
		c.Database.Driver = database.DriverSQLite
	}
	if c.Database.Driver == database.DriverSQLite && c.Database.Path == "" {
		c.Database.Path = filepath.Join(c.Storage.Dir, DefaultDatabaseFile)
	}

	if c.API == nil {
		c.API = &API{}
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = "http://" + c.LocalAddress()
	}
	if c.API.Timeout == "" {
		c.API.Timeout = DefaultAPITimeout
	}

	if c.View == nil {
		c.View = &View{}
	}
	if c.View.RefreshInterval == "" {
		c.View.RefreshInterval = DefaultRefreshInterval
	}
	if c.View.LoadWait == "" {
		c.View.LoadWait = DefaultLoadWait
	}

	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// Validate checks the config and returns all problems found.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port))
	}

	switch c.Database.Driver {
	case database.DriverSQLite:
		if c.Database.Path == "" {
			result = multierror.Append(result, fmt.Errorf("database path is required for sqlite"))
		}
	case database.DriverPostgres:
		if c.Database.DSN == "" {
			result = multierror.Append(result, fmt.Errorf("database dsn is required for postgres"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unsupported database driver %q", c.Database.Driver))
	}

	if u, err := url.Parse(c.API.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		result = multierror.Append(result, fmt.Errorf("api base_url must be an http or https URL, got %q", c.API.BaseURL))
	}
	if d, err := time.ParseDuration(c.API.Timeout); err != nil || d < 0 {
		result = multierror.Append(result, fmt.Errorf("api timeout must be a non-negative duration, got %q", c.API.Timeout))
	}
	if d, err := time.ParseDuration(c.View.RefreshInterval); err != nil || d <= 0 {
		result = multierror.Append(result, fmt.Errorf("view refresh_interval must be a positive duration, got %q", c.View.RefreshInterval))
	}
	if d, err := time.ParseDuration(c.View.LoadWait); err != nil || d < 0 {
		result = multierror.Append(result, fmt.Errorf("view load_wait must be a non-negative duration, got %q", c.View.LoadWait))
	}
	if hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		result = multierror.Append(result, fmt.Errorf("unknown log_level %q", c.LogLevel))
	}

	return result.ErrorOrNil()
}

// ListenAddress returns the address the server listens on.
func (c *Config) ListenAddress() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// LocalAddress returns an address clients on this host can dial.
func (c *Config) LocalAddress() string {
	host := c.Server.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	port := c.Server.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// DatabaseConfig returns the database connection config.
func (c *Config) DatabaseConfig() database.Config {
	return database.Config{
		Driver: c.Database.Driver,
		Path:   c.Database.Path,
		DSN:    c.Database.DSN,
	}
}

// ClientConfig returns the document API client config.
func (c *Config) ClientConfig() (*docclient.Config, error) {
	timeout, err := time.ParseDuration(c.API.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid api timeout: %w", err)
	}
	return &docclient.Config{
		BaseURL:   c.API.BaseURL,
		AuthToken: c.API.AuthToken,
		TLSVerify: c.API.TLSVerify,
		Timeout:   timeout,
	}, nil
}

// RefreshInterval returns the loading page refresh interval.
func (c *Config) RefreshInterval() time.Duration {
	d, err := time.ParseDuration(c.View.RefreshInterval)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// LoadWait returns how long a result page waits for a loading document.
// Zero disables the wait and is returned as a negative duration, the web
// handler's "no wait" value.
func (c *Config) LoadWait() time.Duration {
	d, err := time.ParseDuration(c.View.LoadWait)
	if err != nil {
		return 500 * time.Millisecond
	}
	if d <= 0 {
		return -1
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
