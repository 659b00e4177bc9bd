package importdoc

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp-forge/docview/internal/cmd/base"
)

func TestImportCommand(t *testing.T) {
	t.Setenv("DOCVIEW_CONFIG", "")

	var received map[string]any
	var source, sourceName string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/api/documents/new-doc/source" {
			body, err := io.ReadAll(r.Body)
			assert.NoError(t, err)
			source = string(body)
			sourceName = r.URL.Query().Get("filename")
			_, _ = w.Write([]byte(`{"id":"new-doc"}`))
			return
		}
		if r.Method != http.MethodPost || r.URL.Path != "/api/documents" {
			http.NotFound(w, r)
			return
		}
		body, err := io.ReadAll(r.Body)
		if assert.NoError(t, err) {
			assert.NoError(t, json.Unmarshal(body, &received))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"new-doc","filename":"invoice","status":"completed","result":{"total":42}}`))
	}))
	defer api.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "invoice.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"total":42}`), 0o600))

	t.Run("CreatesDocument", func(t *testing.T) {
		ui := cli.NewMockUi()
		c := &Command{Command: base.NewCommand(hclog.NewNullLogger(), ui)}

		code := c.Run([]string{"-api-url", api.URL, "-status", "completed", path})

		require.Equal(t, 0, code, ui.ErrorWriter.String())
		assert.Equal(t, "new-doc", strings.TrimSpace(ui.OutputWriter.String()))
		assert.Equal(t, "invoice", received["filename"])
		assert.Equal(t, "completed", received["status"])
		assert.Equal(t, map[string]any{"total": float64(42)}, received["result"])
	})

	t.Run("UploadsSource", func(t *testing.T) {
		src := filepath.Join(dir, "invoice.pdf")
		require.NoError(t, os.WriteFile(src, []byte("%PDF-1.7"), 0o600))

		ui := cli.NewMockUi()
		c := &Command{Command: base.NewCommand(hclog.NewNullLogger(), ui)}

		code := c.Run([]string{"-api-url", api.URL, "-source", src, path})

		require.Equal(t, 0, code, ui.ErrorWriter.String())
		assert.Equal(t, "invoice.pdf", received["filename"])
		assert.Equal(t, "%PDF-1.7", source)
		assert.Equal(t, "invoice.pdf", sourceName)
	})

	t.Run("RejectsInvalidJSON", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{"total":`), 0o600))

		ui := cli.NewMockUi()
		c := &Command{Command: base.NewCommand(hclog.NewNullLogger(), ui)}

		code := c.Run([]string{"-api-url", api.URL, bad})

		assert.Equal(t, 1, code)
		assert.Contains(t, ui.ErrorWriter.String(), "error parsing result")
	})
}
