package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp-forge/docview/internal/config"
	"github.com/hashicorp-forge/docview/internal/server"
	"github.com/hashicorp-forge/docview/pkg/database"
	"github.com/hashicorp-forge/docview/pkg/models"
	"github.com/hashicorp-forge/docview/pkg/storage"
)

func createTestServer(t *testing.T) server.Server {
	t.Helper()
	return createTestServerWithFs(t, afero.NewMemMapFs())
}

func createTestServerWithFs(t *testing.T, fs afero.Fs) server.Server {
	t.Helper()

	db, err := database.Connect(database.Config{Driver: database.DriverSQLite, Path: ":memory:"}, nil)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	store := storage.New(fs, "/storage")
	require.NoError(t, store.EnsureLayout())

	return server.Server{
		Config:  config.Default(),
		DB:      db,
		Storage: store,
		Logger:  hclog.NewNullLogger(),
	}
}

func TestGetDocument(t *testing.T) {
	srv := createTestServer(t)
	handler := DocumentsHandler(srv)

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	doc := models.Document{
		ID:        "doc-1",
		Filename:  "scan.pdf",
		Status:    models.DocumentStatusCompleted,
		Result:    models.JSON(`{"title":"A","pages":3}`),
		CreatedAt: created,
		UpdatedAt: created,
	}
	require.NoError(t, doc.Create(srv.DB))

	t.Run("Found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/documents/doc-1", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		body := strings.TrimSpace(w.Body.String())
		assert.True(t, strings.HasPrefix(body, `{"id":"doc-1","filename":"scan.pdf","status":"completed",`), body)
		assert.True(t, strings.HasSuffix(body, `"result":{"title":"A","pages":3}}`), body)
	})

	t.Run("NotFound", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/documents/missing", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"Document not found"}`, w.Body.String())
	})

	t.Run("NestedPath", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/documents/doc-1/extra", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("MethodNotAllowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/documents/doc-1", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestGetDocumentReadsResultFile(t *testing.T) {
	srv := createTestServer(t)
	handler := DocumentsHandler(srv)

	rel, err := srv.Storage.WriteResult("doc-2", []byte(`{"z":1,"a":2}`))
	require.NoError(t, err)

	doc := models.Document{ID: "doc-2", Filename: "b.pdf", Status: models.DocumentStatusCompleted, ResultPath: rel}
	require.NoError(t, doc.Create(srv.DB))

	req := httptest.NewRequest(http.MethodGet, "/api/documents/doc-2", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"result":{"z":1,"a":2}`)
}

func TestCreateAndListDocuments(t *testing.T) {
	srv := createTestServer(t)
	handler := DocumentsHandler(srv)

	body := `{"filename":"invoice.pdf","result":{"total":42,"currency":"EUR"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/documents", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var rec DocumentRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "invoice.pdf", rec.Filename)
	assert.Equal(t, models.DocumentStatusCompleted, rec.Status)
	assert.JSONEq(t, `{"total":42,"currency":"EUR"}`, rec.Result.String())

	stored, err := srv.Storage.ReadResult(storage.ResultPath(rec.ID))
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":42,"currency":"EUR"}`, string(stored))

	req = httptest.NewRequest(http.MethodGet, "/api/documents/", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var list []DocumentRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, rec.ID, list[0].ID)
}

func TestCreateDocumentValidation(t *testing.T) {
	srv := createTestServer(t)
	handler := DocumentsHandler(srv)

	tests := []struct {
		name string
		body string
	}{
		{name: "InvalidJSON", body: `{"filename":`},
		{name: "MissingFilename", body: `{"result":{}}`},
		{name: "UnknownStatus", body: `{"filename":"a.pdf","status":"archived"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/documents", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}

	t.Run("PendingWithoutResult", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/documents", strings.NewReader(`{"filename":"a.pdf"}`))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"pending"`)
		assert.Contains(t, w.Body.String(), `"result":null`)
	})
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	t.Run("AllowAll", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
		req.Header.Set("Origin", "http://anywhere.example")
		w := httptest.NewRecorder()
		CORSMiddleware([]string{"*"}, next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusTeapot, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("ExplicitOrigin", func(t *testing.T) {
		h := CORSMiddleware([]string{"http://localhost:5173"}, next)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

		req = httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "http://evil.example")
		w = httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("Preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/documents", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", "POST")
		w := httptest.NewRecorder()
		CORSMiddleware([]string{"*"}, next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
	})
}

func TestHealthHandler(t *testing.T) {
	srv := createTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	HealthHandler(srv).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestCreateDocumentRemovesResultWhenInsertFails(t *testing.T) {
	fs := afero.NewMemMapFs()
	srv := createTestServerWithFs(t, fs)
	handler := DocumentsHandler(srv)

	sqlDB, err := srv.DB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	body := `{"filename":"invoice.pdf","result":{"total":42}}`
	req := httptest.NewRequest(http.MethodPost, "/api/documents", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)

	entries, err := afero.ReadDir(fs, srv.Storage.ResultsRoot())
	require.NoError(t, err)
	assert.Empty(t, entries, "no result file is left behind")
}

func TestUpdateDocument(t *testing.T) {
	srv := createTestServer(t)
	handler := DocumentsHandler(srv)

	doc := models.Document{ID: "doc-1", Filename: "scan.pdf", Status: models.DocumentStatusPending}
	require.NoError(t, doc.Create(srv.DB))

	t.Run("StatusAndResult", func(t *testing.T) {
		body := `{"status":"completed","result":{"pages":3,"title":"A"}}`
		req := httptest.NewRequest(http.MethodPatch, "/api/documents/doc-1", strings.NewReader(body))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), `"status":"completed"`)
		assert.Contains(t, w.Body.String(), `"result":{"pages":3,"title":"A"}`)

		var got models.Document
		require.NoError(t, got.Get(srv.DB, "doc-1"))
		assert.Equal(t, models.DocumentStatusCompleted, got.Status)
		assert.Equal(t, storage.ResultPath("doc-1"), got.ResultPath)

		stored, err := srv.Storage.ReadResult(got.ResultPath)
		require.NoError(t, err)
		assert.Equal(t, `{"pages":3,"title":"A"}`, string(stored))
	})

	t.Run("StatusOnly", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPatch, "/api/documents/doc-1", strings.NewReader(`{"status":"failed"}`))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"failed"`)
		assert.Contains(t, w.Body.String(), `"result":{"pages":3,"title":"A"}`)
	})

	t.Run("UnknownStatus", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPatch, "/api/documents/doc-1", strings.NewReader(`{"status":"archived"}`))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("NotFound", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPatch, "/api/documents/missing", strings.NewReader(`{"status":"failed"}`))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestUploadSource(t *testing.T) {
	fs := afero.NewMemMapFs()
	srv := createTestServerWithFs(t, fs)
	handler := DocumentsHandler(srv)

	doc := models.Document{ID: "doc-1", Filename: "scan.pdf", Status: models.DocumentStatusPending}
	require.NoError(t, doc.Create(srv.DB))

	t.Run("DefaultsToDocumentFilename", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/api/documents/doc-1/source", bytes.NewReader([]byte("%PDF-1.7")))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		b, err := afero.ReadFile(fs, filepath.Join(srv.Storage.IncomingRoot(), "doc-1", "scan.pdf"))
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.7", string(b))

		var got models.Document
		require.NoError(t, got.Get(srv.DB, "doc-1"))
		assert.Equal(t, "doc-1/scan.pdf", got.SourcePath)
	})

	t.Run("ExplicitFilename", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/api/documents/doc-1/source?filename=page.png", bytes.NewReader([]byte("png")))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		exists, err := afero.Exists(fs, filepath.Join(srv.Storage.IncomingRoot(), "doc-1", "page.png"))
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("NotFound", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/api/documents/missing/source", bytes.NewReader([]byte("x")))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("MethodNotAllowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/documents/doc-1/source", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}
