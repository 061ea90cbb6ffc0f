package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ckr3453/db-backup4j/internal/model"
)

func TestNoOp_AlwaysSucceeds(t *testing.T) {
	require.NoError(t, NoOp{}.NotifyResult(model.BackupResult{}))
}

func TestNewWebhook_EmptyURLReturnsNoOp(t *testing.T) {
	n := NewWebhook("")
	_, isNoOp := n.(NoOp)
	require.True(t, isNoOp)
}

func TestNewWebhook_NonEmptyURLReturnsWebhook(t *testing.T) {
	n := NewWebhook("https://example.com/hook")
	_, isWebhook := n.(*Webhook)
	require.True(t, isWebhook)
}

func TestWebhook_NotifyResultPostsJSONPayload(t *testing.T) {
	var gotContentType string
	var payload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	w := &Webhook{URL: server.URL, Client: server.Client()}
	result := model.BackupResult{
		Status:    model.StatusSuccess,
		StartedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		EndedAt:   time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC),
		Artifacts: []model.BackupArtifact{{Path: "/backups/app.sql"}},
	}

	err := w.NotifyResult(result)
	require.NoError(t, err)
	require.Equal(t, "application/json", gotContentType)
	require.Equal(t, "SUCCESS", payload["status"])
	require.Equal(t, float64(1), payload["artifact_count"])
}

func TestWebhook_NotifyResultErrorsOnNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	w := &Webhook{URL: server.URL, Client: server.Client()}
	err := w.NotifyResult(model.BackupResult{})
	require.Error(t, err)
}

func TestWebhook_NotifyResultErrorsOnUnreachableURL(t *testing.T) {
	w := &Webhook{URL: "http://127.0.0.1:0", Client: &http.Client{Timeout: time.Second}}
	err := w.NotifyResult(model.BackupResult{})
	require.Error(t, err)
}
