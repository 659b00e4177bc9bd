package docclient

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Config contains configuration for the document lookup client.
//
// Example configuration (HCL):
//
//	api {
//	  base_url   = "http://localhost:8808"
//	  auth_token = ""
//	  timeout    = "30s"
//	}
type Config struct {
	// BaseURL is the base URL of the document API.
	// Example: "http://localhost:8808"
	BaseURL string `json:"baseUrl"`

	// AuthToken is sent as a Bearer token when set.
	AuthToken string `json:"-"`

	// TLSVerify controls TLS certificate verification.
	TLSVerify *bool `json:"tlsVerify,omitempty"`

	// Timeout for a single request. Zero means no client-side timeout.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	tlsVerify := true
	return &Config{
		BaseURL:   "http://localhost:8808",
		TLSVerify: &tlsVerify,
		Timeout:   30 * time.Second,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.BaseURL == "" {
		result = multierror.Append(result, fmt.Errorf("base_url is required"))
	} else {
		parsedURL, err := url.Parse(c.BaseURL)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("invalid base_url: %w", err))
		} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			result = multierror.Append(result,
				fmt.Errorf("base_url must use http or https scheme, got: %q", parsedURL.Scheme))
		}
	}

	if c.Timeout < 0 {
		result = multierror.Append(result, fmt.Errorf("timeout must be non-negative, got: %v", c.Timeout))
	}

	return result.ErrorOrNil()
}

// NewHTTPClient creates a configured HTTP client.
func (c *Config) NewHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	if c.TLSVerify != nil && !*c.TLSVerify {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	return &http.Client{
		Timeout:   c.Timeout,
		Transport: transport,
	}
}
