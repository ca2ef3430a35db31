package routes

import (
	"net/http"

	"pixbatch/logger"
	"pixbatch/success"
)

// SuccessQueryHandler returns the success record of ?job=.
func SuccessQueryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("job")
	if id == "" {
		http.Error(w, "job parameter required", http.StatusBadRequest)
		return
	}

	record, err := success.GetSuccess(id)
	if err != nil {
		logger.Errorf("Failed to query success for job %s: %v", id, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if record == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"job_id":  id,
			"status":  "not_found",
			"message": "No success record found for this job",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":        record.JobID,
		"status":        "success",
		"timestamp":     record.Timestamp,
		"file_count":    record.FileCount,
		"archive":       record.Archive,
		"archive_bytes": record.ArchiveBytes,
		"duration_ms":   record.DurationMS,
		"published_to":  record.PublishedTo,
		"job":           record.Job,
	})
}

// SuccessListHandler lists every success record.
func SuccessListHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	records, err := success.ListSuccessRecords()
	if err != nil {
		logger.Errorf("Failed to list success records: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success_records": records,
		"count":           len(records),
	})
}
