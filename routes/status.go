package routes

import (
	"fmt"
	"net/http"

	"pixbatch/logger"
)

// JobStatusHandler returns the state of a job started by this process.
func (s *Server) JobStatusHandler(w http.ResponseWriter, r *http.Request) {
	logger.Debugf("Job status request: method=%s, remoteAddr=%s", r.Method, r.RemoteAddr)

	if r.Method != http.MethodGet {
		logger.Warnf("Invalid method for status endpoint: %s", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("job")
	if id == "" {
		logger.Warn("Missing job parameter in status request")
		http.Error(w, "Missing job parameter", http.StatusBadRequest)
		return
	}

	status, exists := s.States.Get(id)
	if !exists {
		logger.Warnf("Job not found: %s", id)
		http.Error(w, fmt.Sprintf("Job %s not found", id), http.StatusNotFound)
		return
	}

	logger.Debugf("Job status: job=%s, state=%s", id, status.State)
	writeJSON(w, http.StatusOK, status)
}
