// Package notify defines the narrow Notifier capability used to report a
// finished run (spec §9 open question, resolved as: no SMTP, a webhook
// notifier grounded on the teacher's Telegram sender, generalized to post
// a JSON payload to any URL).
package notify

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"github.com/ckr3453/db-backup4j/internal/model"
)

// Notifier is told about a finished run. Implementations must not block
// the orchestrator on notification failures.
type Notifier interface {
	NotifyResult(result model.BackupResult) error
}

// NoOp discards every result. It is the default when no webhook is
// configured.
type NoOp struct{}

func (NoOp) NotifyResult(model.BackupResult) error { return nil }

// Webhook posts a JSON summary of the run to a configured URL.
type Webhook struct {
	URL    string
	Client *http.Client
}

// NewWebhook constructs a Webhook notifier. An empty url yields a
// Notifier that behaves like NoOp.
func NewWebhook(url string) Notifier {
	if url == "" {
		return NoOp{}
	}
	return &Webhook{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookPayload struct {
	Status        string `json:"status"`
	StartedAt     string `json:"started_at"`
	EndedAt       string `json:"ended_at"`
	ArtifactCount int    `json:"artifact_count"`
	ErrorCount    int    `json:"error_count"`
}

func (w *Webhook) NotifyResult(result model.BackupResult) error {
	payload := webhookPayload{
		Status:        string(result.Status),
		StartedAt:     result.StartedAt.UTC().Format(time.RFC3339),
		EndedAt:       result.EndedAt.UTC().Format(time.RFC3339),
		ArtifactCount: len(result.Artifacts),
		ErrorCount:    len(result.Errors),
	}

	body, err := sonic.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: marshal payload: %w", err)
	}

	resp, err := w.Client.Post(w.URL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
