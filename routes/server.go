package routes

import (
	"encoding/json"
	"net/http"

	"pixbatch/cancellation"
	"pixbatch/config"
	"pixbatch/job"
	"pixbatch/logger"
	"pixbatch/progress"
)

// Server holds what the handlers share: the job coordinator and the
// process-wide session registries.
type Server struct {
	Coordinator *job.Coordinator
	States      *job.States
	Cancels     *cancellation.Registry
	Progress    *progress.Registry
	// ServeDir is exposed under /files/ when set.
	ServeDir string
}

// NewServer wires a coordinator to fresh registries. The coordinator's
// progress publisher and state table are replaced by the server's.
func NewServer(c *job.Coordinator, serveDir string) *Server {
	s := &Server{
		Coordinator: c,
		States:      job.NewStates(),
		Cancels:     cancellation.NewRegistry(),
		Progress:    progress.NewRegistry(),
		ServeDir:    serveDir,
	}
	c.Progress = s.Progress
	c.States = s.States
	return s
}

// Register adds every route to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/convert", s.ConvertHandler)
	mux.HandleFunc("/api/cancel", s.CancelHandler)
	mux.HandleFunc("/api/ws", s.ProgressSocketHandler)
	mux.HandleFunc("/api/status", s.JobStatusHandler)
	mux.HandleFunc("/api/health", s.HealthHandler)
	mux.HandleFunc("/api/version", VersionHandler)
	mux.HandleFunc("/api/success", SuccessQueryHandler)
	mux.HandleFunc("/api/success/list", SuccessListHandler)
	mux.HandleFunc("/api/failures", FailureQueryHandler)
	mux.HandleFunc("/api/failures/list", FailureListHandler)
	mux.HandleFunc("/api/credentials", CredentialsHandler)
	if s.ServeDir != "" {
		mux.Handle("/files/", http.StripPrefix("/files/", http.FileServer(http.Dir(s.ServeDir))))
	}
}

// Handler returns the routes behind the CORS filter.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return withCORS(mux)
}

// withCORS answers preflight requests and tags responses for the configured
// browser origin.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := config.GetAllowedOrigin()
		if origin == "*" || r.Header.Get("Origin") == origin {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Job-ID, X-Archive-Location")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}
