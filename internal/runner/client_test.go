package runner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Trigger(t *testing.T) {
	var gotPath, gotAuth, gotKey string
	var gotPayload TriggerPayload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("Idempotency-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		json.NewEncoder(w).Encode(map[string]string{"runId": "run-42"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret-token")
	runID, err := c.Trigger(context.Background(), "send-reminder", TriggerPayload{
		ReminderID:  "abc",
		EventID:     "def",
		TriggerTime: time.Date(2125, 6, 1, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, "run-42", runID)
	assert.Equal(t, "/api/v1/tasks/send-reminder/trigger", gotPath)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.NotEmpty(t, gotKey)
	assert.Equal(t, "abc", gotPayload.ReminderID)
}

func TestClient_Trigger_NoRunID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	_, err := c.Trigger(context.Background(), "send-reminder", TriggerPayload{})
	assert.ErrorContains(t, err, "no run id")
}

func TestClient_Cancel(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	require.NoError(t, c.Cancel(context.Background(), "run-42"))
	assert.Equal(t, "/api/v1/runs/run-42/cancel", gotPath)
}

func TestClient_RetriesOn429(t *testing.T) {
	attempts := 0
	keys := map[string]bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		keys[r.Header.Get("Idempotency-Key")] = true
		if attempts == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"runId": "run-42"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	runID, err := c.Trigger(context.Background(), "send-reminder", TriggerPayload{})
	require.NoError(t, err)
	assert.Equal(t, "run-42", runID)
	assert.Equal(t, 2, attempts)
	assert.Len(t, keys, 1, "retries reuse the idempotency key")
}

func TestClient_SurfacesRunnerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "unknown task"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	_, err := c.Trigger(context.Background(), "bogus", TriggerPayload{})
	assert.ErrorContains(t, err, "unknown task")
}

func TestClient_AuthFailureDoesNotRetry(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bad")
	_, err := c.Trigger(context.Background(), "send-reminder", TriggerPayload{})
	assert.ErrorContains(t, err, "authentication failed")
	assert.Equal(t, 1, attempts)
}
