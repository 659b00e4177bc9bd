package docclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/hashicorp/go-hclog"
)

// ErrNotFound is returned when the document API has no document for an id.
var ErrNotFound = errors.New("document not found")

// Client looks up documents on a remote document API.
type Client struct {
	config *Config
	client *http.Client
	logger hclog.Logger
}

// New creates a new document API client.
func New(cfg *Config, logger hclog.Logger) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.TLSVerify == nil {
		cfg.TLSVerify = DefaultConfig().TLSVerify
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid document client config: %w", err)
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	return &Client{
		config: cfg,
		client: cfg.NewHTTPClient(),
		logger: logger,
	}, nil
}

// BaseURL returns the base URL of the document API without a trailing slash.
func (c *Client) BaseURL() string {
	return strings.TrimRight(c.config.BaseURL, "/")
}

// GetDocument retrieves the document record for id.
func (c *Client) GetDocument(ctx context.Context, id string) (Record, error) {
	endpoint := fmt.Sprintf("%s/api/documents/%s", c.BaseURL(), url.PathEscape(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	c.logger.Debug("requesting document", "doc_id", id, "url", endpoint)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get document %q: %w", id, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if err := checkResponse(resp.StatusCode, body); err != nil {
		return nil, fmt.Errorf("failed to get document %q: %w", id, err)
	}

	record, err := ParseRecord(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode document %q: %w", id, err)
	}
	return record, nil
}

// CreateDocumentRequest is the request body for CreateDocument.
type CreateDocumentRequest struct {
	Filename string `json:"filename"`
	Status   string `json:"status,omitempty"`
	Result   Record `json:"result,omitempty"`
}

// CreateDocument uploads a new document and returns the stored record.
func (c *Client) CreateDocument(ctx context.Context, in CreateDocumentRequest) (Record, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	endpoint := c.BaseURL() + "/api/documents"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if err := checkResponse(resp.StatusCode, body); err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	return ParseRecord(body)
}

// UpdateDocumentRequest is the request body for UpdateDocument. Empty
// fields are left unchanged.
type UpdateDocumentRequest struct {
	Status string `json:"status,omitempty"`
	Result Record `json:"result,omitempty"`
}

// UpdateDocument changes the status and/or result of document id.
func (c *Client) UpdateDocument(ctx context.Context, id string, in UpdateDocumentRequest) (Record, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/documents/%s", c.BaseURL(), url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	rec, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to update document %q: %w", id, err)
	}
	return rec, nil
}

// UploadSource stores the original source file of document id on the
// server. An empty filename keeps the document's filename.
func (c *Client) UploadSource(ctx context.Context, id, filename string, body io.Reader) (Record, error) {
	endpoint := fmt.Sprintf("%s/api/documents/%s/source", c.BaseURL(), url.PathEscape(id))
	if filename != "" {
		endpoint += "?" + url.Values{"filename": {filename}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	rec, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to upload source for document %q: %w", id, err)
	}
	return rec, nil
}

// do sends req and returns the response body as a record.
func (c *Client) do(req *http.Request) (Record, error) {
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if err := checkResponse(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return ParseRecord(body)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.config.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.AuthToken)
	}
}

// checkResponse maps non-2xx responses to errors.
func checkResponse(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	if status == http.StatusNotFound {
		return ErrNotFound
	}

	var apiErr struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		return fmt.Errorf("API error (status %d): %s", status, apiErr.Error)
	}
	return fmt.Errorf("API returned status %d: %s", status, strings.TrimSpace(string(body)))
}
