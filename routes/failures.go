package routes

import (
	"net/http"

	"pixbatch/failures"
	"pixbatch/logger"
)

// FailureQueryHandler returns the failure record of ?job=.
func FailureQueryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("job")
	if id == "" {
		http.Error(w, "job parameter required", http.StatusBadRequest)
		return
	}

	record, err := failures.GetFailure(id)
	if err != nil {
		logger.Errorf("Failed to query failure for job %s: %v", id, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if record == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"job_id":  id,
			"status":  "not_found",
			"message": "No failure recorded for this job",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":    record.JobID,
		"status":    "failed",
		"timestamp": record.Timestamp,
		"kind":      record.Kind,
		"filename":  record.Filename,
		"error":     record.Error,
		"job":       record.Job,
	})
}

// FailureListHandler lists every failure record.
func FailureListHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	failuresList, err := failures.ListFailures()
	if err != nil {
		logger.Errorf("Failed to list failures: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"failures": failuresList,
		"count":    len(failuresList),
	})
}
