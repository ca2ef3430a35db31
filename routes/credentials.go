package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"pixbatch/credentials"
	"pixbatch/logger"
	writerbackends "pixbatch/writerBackends"
)

// CredentialsHandler stores publication credentials (POST) and returns the
// key a token's storageKey refers to, or removes them (DELETE ?key=).
func CredentialsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		registerCredentials(w, r)
	case http.MethodDelete:
		deleteCredentials(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func registerCredentials(w http.ResponseWriter, r *http.Request) {
	credsBody := make(map[string]string)
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&credsBody); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !writerbackends.KnownBackend(credsBody["type"]) {
		http.Error(w, fmt.Sprintf("unknown backend type %q", credsBody["type"]), http.StatusBadRequest)
		return
	}

	key, err := credentials.Register(credsBody)
	if err != nil {
		logger.Errorf("Failed to store credentials: %v", err)
		http.Error(w, "Failed to store credentials", http.StatusInternalServerError)
		return
	}

	logger.Infof("Registered %s credentials", credsBody["type"])
	writeJSON(w, http.StatusOK, map[string]string{"access_key": key})
}

func deleteCredentials(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, "key parameter required", http.StatusBadRequest)
		return
	}
	if _, err := credentials.GetCredentials(key); err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			http.Error(w, "credentials not found", http.StatusNotFound)
			return
		}
		logger.Errorf("Failed to look up credentials: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if err := credentials.DeleteCredentials(key); err != nil {
		logger.Errorf("Failed to delete credentials: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
