package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/hashicorp-forge/docview/internal/server"
	"github.com/hashicorp-forge/docview/pkg/models"
	"github.com/hashicorp-forge/docview/pkg/storage"
)

const (
	// maxCreateBodyBytes caps the size of a create or update request body.
	maxCreateBodyBytes = 10 << 20

	// maxSourceBodyBytes caps the size of an uploaded source file.
	maxSourceBodyBytes = 100 << 20
)

// DocumentRecord is the JSON shape of a document returned by the API.
// Field order is the key order clients see.
type DocumentRecord struct {
	ID        string      `json:"id"`
	Filename  string      `json:"filename"`
	Status    string      `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	Result    models.JSON `json:"result"`
}

// CreateDocumentRequest is the request body for creating a document.
type CreateDocumentRequest struct {
	Filename string      `json:"filename"`
	Status   string      `json:"status,omitempty"`
	Result   models.JSON `json:"result,omitempty"`
}

// UpdateDocumentRequest is the request body for updating a document. Absent
// fields are left unchanged.
type UpdateDocumentRequest struct {
	Status string      `json:"status,omitempty"`
	Result models.JSON `json:"result,omitempty"`
}

// DocumentsHandler serves /api/documents, /api/documents/{doc_id} and
// /api/documents/{doc_id}/source.
func DocumentsHandler(srv server.Server) http.Handler {
	log := srv.Logger.Named("api")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		escaped := strings.TrimSuffix(r.URL.EscapedPath(), "/")
		path := strings.TrimPrefix(escaped, "/api/documents")

		if path == "" {
			switch r.Method {
			case http.MethodGet:
				handleListDocuments(srv, log, w, r)
			case http.MethodPost:
				handleCreateDocument(srv, log, w, r)
			default:
				w.Header().Set("Allow", "GET, POST")
				respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
			return
		}

		if strings.HasSuffix(path, "/source") {
			id, err := parseResourceIDFromURL(strings.TrimSuffix(escaped, "/source"), "documents")
			if err != nil {
				log.Warn("error parsing document ID", "path", r.URL.Path, "error", err)
				respondError(w, http.StatusNotFound, "Document not found")
				return
			}
			if r.Method != http.MethodPut {
				w.Header().Set("Allow", "PUT")
				respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
				return
			}
			handleUploadSource(srv, log, w, r, id)
			return
		}

		id, err := parseResourceIDFromURL(escaped, "documents")
		if err != nil {
			log.Warn("error parsing document ID", "path", r.URL.Path, "error", err)
			respondError(w, http.StatusNotFound, "Document not found")
			return
		}

		switch r.Method {
		case http.MethodGet:
			handleGetDocument(srv, log, w, id)
		case http.MethodPatch:
			handleUpdateDocument(srv, log, w, r, id)
		default:
			w.Header().Set("Allow", "GET, PATCH")
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})
}

// getDocumentOrRespond loads document id, writing the error response and
// returning false when it cannot.
func getDocumentOrRespond(
	srv server.Server, log hclog.Logger, w http.ResponseWriter, id string,
) (models.Document, bool) {
	var doc models.Document
	if err := doc.Get(srv.DB, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "Document not found")
			return doc, false
		}
		log.Error("error getting document", "doc_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Error getting document")
		return doc, false
	}
	return doc, true
}

func handleGetDocument(srv server.Server, log hclog.Logger, w http.ResponseWriter, id string) {
	doc, ok := getDocumentOrRespond(srv, log, w, id)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, toRecord(srv, log, doc), log)
}

func handleListDocuments(srv server.Server, log hclog.Logger, w http.ResponseWriter, r *http.Request) {
	var docs models.Documents
	if err := docs.GetAll(srv.DB); err != nil {
		log.Error("error listing documents", "error", err)
		respondError(w, http.StatusInternalServerError, "Error listing documents")
		return
	}

	records := make([]DocumentRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, toRecord(srv, log, doc))
	}
	respondJSON(w, http.StatusOK, records, log)
}

func handleCreateDocument(srv server.Server, log hclog.Logger, w http.ResponseWriter, r *http.Request) {
	var req CreateDocumentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCreateBodyBytes)).Decode(&req); err != nil {
		log.Warn("error decoding create document request", "error", err)
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	hasResult := len(req.Result) > 0 && string(req.Result) != "null"

	doc := models.Document{
		ID:       uuid.NewString(),
		Filename: req.Filename,
		Status:   req.Status,
	}
	if doc.Status == "" {
		doc.Status = models.DocumentStatusPending
		if hasResult {
			doc.Status = models.DocumentStatusCompleted
		}
	}
	if err := doc.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if hasResult {
		rel, err := srv.Storage.WriteResult(doc.ID, req.Result)
		if err != nil {
			log.Error("error writing result file", "doc_id", doc.ID, "error", err)
			respondError(w, http.StatusInternalServerError, "Error storing result")
			return
		}
		doc.Result = req.Result
		doc.ResultPath = rel
	}

	if err := doc.Create(srv.DB); err != nil {
		log.Error("error creating document", "doc_id", doc.ID, "error", err)
		if hasResult {
			if err := srv.Storage.RemoveResult(doc.ID); err != nil {
				log.Error("error removing result file", "doc_id", doc.ID, "error", err)
			}
		}
		respondError(w, http.StatusInternalServerError, "Error creating document")
		return
	}

	log.Info("document created",
		"doc_id", doc.ID,
		"filename", doc.Filename,
		"status", doc.Status,
	)
	respondJSON(w, http.StatusCreated, toRecord(srv, log, doc), log)
}

func handleUpdateDocument(
	srv server.Server, log hclog.Logger, w http.ResponseWriter, r *http.Request, id string,
) {
	var req UpdateDocumentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCreateBodyBytes)).Decode(&req); err != nil {
		log.Warn("error decoding update document request", "doc_id", id, "error", err)
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	doc, ok := getDocumentOrRespond(srv, log, w, id)
	if !ok {
		return
	}

	if req.Status != "" {
		doc.Status = req.Status
	}
	if err := doc.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if len(req.Result) > 0 && string(req.Result) != "null" {
		rel, err := srv.Storage.WriteResult(doc.ID, req.Result)
		if err != nil {
			log.Error("error writing result file", "doc_id", doc.ID, "error", err)
			respondError(w, http.StatusInternalServerError, "Error storing result")
			return
		}
		doc.Result = req.Result
		doc.ResultPath = rel
	}

	if err := doc.Update(srv.DB); err != nil {
		log.Error("error updating document", "doc_id", doc.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "Error updating document")
		return
	}

	log.Info("document updated", "doc_id", doc.ID, "status", doc.Status)
	respondJSON(w, http.StatusOK, toRecord(srv, log, doc), log)
}

func handleUploadSource(
	srv server.Server, log hclog.Logger, w http.ResponseWriter, r *http.Request, id string,
) {
	doc, ok := getDocumentOrRespond(srv, log, w, id)
	if !ok {
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSourceBodyBytes))
	if err != nil {
		log.Warn("error reading source upload", "doc_id", id, "error", err)
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	filename := r.URL.Query().Get("filename")
	if filename == "" {
		filename = doc.Filename
	}

	rel, err := srv.Storage.WriteIncoming(doc.ID, filename, data)
	if err != nil {
		log.Error("error writing source file", "doc_id", doc.ID, "error", err)
		respondError(w, http.StatusBadRequest, "Error storing source file")
		return
	}

	doc.SourcePath = rel
	if err := doc.Update(srv.DB); err != nil {
		log.Error("error updating document", "doc_id", doc.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "Error updating document")
		return
	}

	log.Info("source file stored", "doc_id", doc.ID, "path", rel, "bytes", len(data))
	respondJSON(w, http.StatusOK, toRecord(srv, log, doc), log)
}

// toRecord builds the API record for doc. A result missing from the
// database is read from the results directory.
func toRecord(srv server.Server, log hclog.Logger, doc models.Document) DocumentRecord {
	rec := DocumentRecord{
		ID:        doc.ID,
		Filename:  doc.Filename,
		Status:    doc.Status,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
		Result:    doc.Result,
	}

	if len(rec.Result) == 0 && doc.ResultPath != "" && srv.Storage != nil {
		b, err := srv.Storage.ReadResult(doc.ResultPath)
		switch {
		case err == nil:
			rec.Result = models.JSON(b)
		case errors.Is(err, storage.ErrResultNotFound):
			log.Warn("result file missing", "doc_id", doc.ID, "path", doc.ResultPath)
		default:
			log.Error("error reading result file", "doc_id", doc.ID, "error", err)
		}
	}

	return rec
}
