package job

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"pixbatch/logger"
	"pixbatch/models"
)

// CallbackPayload is POSTed to a job's completion callback.
type CallbackPayload struct {
	JobID     string   `json:"job_id"`
	SessionID string   `json:"session_id,omitempty"`
	Status    string   `json:"status"`
	Files     []string `json:"files,omitempty"`
	Archive   string   `json:"archive,omitempty"`
	Location  string   `json:"location,omitempty"`
	Bytes     int      `json:"bytes,omitempty"`
	Error     string   `json:"error,omitempty"`
	Kind      Kind     `json:"kind,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// CallbackSender notifies a job's callback URL once the job finishes.
// Sending happens in the background; failures are only logged.
type CallbackSender struct {
	Client    *http.Client
	UserAgent string
}

func NewCallbackSender() *CallbackSender {
	return &CallbackSender{
		Client:    &http.Client{Timeout: 30 * time.Second},
		UserAgent: "pixbatch/1.0",
	}
}

func payloadFor(j models.Job, out *Output, jobErr error) CallbackPayload {
	p := CallbackPayload{JobID: j.ID, SessionID: j.SessionID, Timestamp: time.Now().Unix()}
	if jobErr != nil {
		p.Status = "failed"
		p.Kind = KindOf(jobErr)
		if p.Kind == KindCancelled {
			p.Status = "cancelled"
		}
		p.Error = jobErr.Error()
		return p
	}
	p.Status = "completed"
	p.Files = out.Files
	p.Archive = out.Filename()
	p.Location = out.Location
	p.Bytes = len(out.Archive)
	return p
}

// Send posts the outcome of j in the background when j has a callback URL.
// A nil sender does nothing.
func (s *CallbackSender) Send(j models.Job, out *Output, jobErr error) {
	if s == nil || j.Delivery.CallbackURL == "" {
		return
	}
	payload := payloadFor(j, out, jobErr)
	go func() {
		if err := s.post(context.Background(), j.Delivery, payload); err != nil {
			logger.Errorf("Failed to send callback for job %s: %v", j.ID, err)
		}
	}()
}

func (s *CallbackSender) post(ctx context.Context, d models.Delivery, payload CallbackPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal callback payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.CallbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.UserAgent)
	for key, value := range d.CallbackHeaders {
		req.Header.Set(key, value)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("callback request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned non-2xx status: %d", resp.StatusCode)
	}
	logger.Infof("Sent callback for job %s to %s", payload.JobID, d.CallbackURL)
	return nil
}
