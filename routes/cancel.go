package routes

import (
	"net/http"

	"pixbatch/logger"
)

// CancelHandler cancels the conversion running for ?session_id=. Cancelling
// a session with nothing running is not an error.
func (s *Server) CancelHandler(w http.ResponseWriter, r *http.Request) {
	logger.Debugf("Cancel request: method=%s, remoteAddr=%s", r.Method, r.RemoteAddr)

	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		logger.Warnf("Invalid method for cancel endpoint: %s", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session := r.URL.Query().Get("session_id")
	if session == "" {
		logger.Warn("Missing session_id parameter in cancel request")
		http.Error(w, "Missing session_id parameter", http.StatusBadRequest)
		return
	}

	if s.Cancels.Cancel(session) {
		logger.Infof("Conversion cancelled for session %s", session)
	} else {
		logger.Debugf("No running conversion for session %s", session)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Conversion canceled"))
}
