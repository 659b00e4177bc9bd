package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/hashicorp/go-hclog"
)

// parseResourceIDFromURL parses a URL path with the format
// "/api/{apiPath}/{resourceID}" and returns the unescaped resource ID.
func parseResourceIDFromURL(escapedPath, apiPath string) (string, error) {
	p := strings.TrimPrefix(escapedPath, fmt.Sprintf("/api/%s", apiPath))

	// Remove empty entries and validate path.
	var resultPath []string
	for _, v := range strings.Split(p, "/") {
		if v != "" {
			resultPath = append(resultPath, v)
		}
	}

	// Only allow 1 value to be set in the resultPath slice. For example, if the
	// path is "/{document_id}" then the resultPath slice is ["{document_id}"].
	if len(resultPath) > 1 {
		return "", fmt.Errorf("invalid URL path")
	}
	if len(resultPath) == 0 {
		return "", fmt.Errorf("no document ID set in url path")
	}

	id, err := url.PathUnescape(resultPath[0])
	if err != nil {
		return "", fmt.Errorf("invalid document ID: %w", err)
	}
	return id, nil
}

// errorResponse is the JSON body of every API error.
type errorResponse struct {
	Error string `json:"error"`
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg}, nil)
}

func respondJSON(w http.ResponseWriter, status int, v any, log hclog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && log != nil {
		log.Error("error encoding response", "error", err)
	}
}
