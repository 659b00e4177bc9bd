package api

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp-forge/docview/internal/server"
	"github.com/hashicorp-forge/docview/pkg/database"
)

// HealthResponse is the response for the health endpoint.
type HealthResponse struct {
	Status   string              `json:"status"`
	Database *database.PoolStats `json:"database,omitempty"`
}

// HealthHandler reports whether the server can reach its database.
func HealthHandler(srv server.Server) http.Handler {
	log := srv.Logger.Named("health")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := database.Ping(ctx, srv.DB); err != nil {
			log.Error("database ping failed", "error", err)
			respondJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"}, log)
			return
		}

		resp := HealthResponse{Status: "ok"}
		if stats, err := database.GetPoolStats(srv.DB); err == nil {
			resp.Database = stats
		}
		respondJSON(w, http.StatusOK, resp, log)
	})
}
