// Package api is the HTTP facade in front of the orchestrator: chat,
// prescription upload callbacks, inventory search and health.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pharmaflow-project/pharmacy-multi-agent/catalog"
	"github.com/pharmaflow-project/pharmacy-multi-agent/logger"
	"github.com/pharmaflow-project/pharmacy-multi-agent/orchestrator"
	"github.com/pharmaflow-project/pharmacy-multi-agent/types"
)

// Server wires the orchestrator and the catalog behind HTTP handlers.
type Server struct {
	orchestrator *orchestrator.Orchestrator
	catalog      *catalog.Service
	log          *logger.Logger
	version      string
}

// NewServer creates the API facade.
func NewServer(o *orchestrator.Orchestrator, svc *catalog.Service, version string) *Server {
	return &Server{
		orchestrator: o,
		catalog:      svc,
		log:          logger.GetLogger().WithField("component", "api"),
		version:      version,
	}
}

// RegisterRoutes registers all frontend-facing routes on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/chat", s.withCORS(s.handleChat))
	mux.HandleFunc("/api/prescription/upload", s.withCORS(s.handleUpload))
	mux.HandleFunc("/api/inventory/search", s.withCORS(s.handleSearch))
	mux.HandleFunc("/health", s.withCORS(s.handleHealth))
}

// withCORS applies permissive CORS headers and answers preflight.
func (s *Server) withCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next(w, r)
	}
}

// handleChat accepts one user message and runs it through the chain.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	var req types.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "Message must not be empty", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = fmt.Sprintf("anon-%d", time.Now().UnixNano())
	}

	resp := s.orchestrator.Submit(r.Context(), &req)
	s.writeJSON(w, http.StatusOK, resp)
}

// handleUpload is the prescription verification callback.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	var req types.PrescriptionUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		http.Error(w, "sessionId is required", http.StatusBadRequest)
		return
	}

	resp := s.orchestrator.HandleUpload(req.SessionID, req.Verified)
	status := http.StatusOK
	if resp.Error != nil && resp.Error.Code == types.ErrCodeNothingToResume {
		status = http.StatusConflict
	}
	s.writeJSON(w, status, resp)
}

// handleSearch looks medicines up by name fragment.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		http.Error(w, "Query parameter q is required", http.StatusBadRequest)
		return
	}

	results := s.catalog.SearchMedicine(query)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"query":   query,
		"count":   len(results),
		"results": results,
	})
}

// handleHealth reports service status and inventory stats.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.catalog.Stats()
	resp := types.HealthCheckResponse{
		Status:    types.StatusHealthy,
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   s.version,
		Services: map[string]types.ServiceStatus{
			"catalog": {
				Name:      "catalog",
				Status:    types.StatusUp,
				LastCheck: time.Now().Format(time.RFC3339),
				Error:     "",
			},
		},
	}
	if stats.TotalSKUs == 0 {
		resp.Status = types.StatusDegraded
		s := resp.Services["catalog"]
		s.Status = types.StatusDegraded
		s.Error = "catalog is empty"
		resp.Services["catalog"] = s
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to encode response", err)
	}
}
