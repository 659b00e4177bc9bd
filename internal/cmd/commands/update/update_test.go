package update

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp-forge/docview/internal/cmd/base"
)

func newTestCommand() (*Command, *cli.MockUi) {
	ui := cli.NewMockUi()
	return &Command{Command: base.NewCommand(hclog.NewNullLogger(), ui)}, ui
}

func TestUpdateCommand(t *testing.T) {
	t.Setenv("DOCVIEW_CONFIG", "")

	var gotBody string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/api/documents/doc-1" {
			http.NotFound(w, r)
			return
		}
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"doc-1","status":"completed"}`))
	}))
	defer api.Close()

	t.Run("StatusAndResult", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "result.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"pages":3}`), 0o600))

		c, ui := newTestCommand()
		code := c.Run([]string{"-api-url", api.URL, "-status", "completed", "-result", path, "doc-1"})

		require.Equal(t, 0, code, ui.ErrorWriter.String())
		assert.Equal(t, "doc-1 completed", strings.TrimSpace(ui.OutputWriter.String()))
		assert.JSONEq(t, `{"status":"completed","result":{"pages":3}}`, gotBody)
	})

	t.Run("RequiresAChange", func(t *testing.T) {
		c, ui := newTestCommand()
		code := c.Run([]string{"-api-url", api.URL, "doc-1"})

		assert.Equal(t, 1, code)
		assert.Contains(t, ui.ErrorWriter.String(), "one of -status or -result is required")
	})

	t.Run("NotFound", func(t *testing.T) {
		c, ui := newTestCommand()
		code := c.Run([]string{"-api-url", api.URL, "-status", "failed", "missing"})

		assert.Equal(t, 1, code)
		assert.Contains(t, ui.ErrorWriter.String(), "document not found")
	})
}
