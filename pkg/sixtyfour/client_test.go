package sixtyfour

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(server.URL, "test-key")
	client.PollInterval = time.Millisecond
	client.PollTimeout = 200 * time.Millisecond

	return client
}

func TestEnrichLead(t *testing.T) {
	t.Parallel()

	var captured map[string]any

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/enrich-lead-async", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		_ = json.NewEncoder(w).Encode(map[string]any{"task_id": "task-42"})
	}))

	taskID, err := client.EnrichLead(t.Context(),
		map[string]any{"name": "Ada"},
		map[string]string{"university": "undergrad university"},
		"focus on education",
	)
	require.NoError(t, err)
	assert.Equal(t, "task-42", taskID)

	assert.Equal(t, map[string]any{"name": "Ada"}, captured["lead_info"])
	assert.Equal(t, "focus on education", captured["research_plan"])
}

func TestEnrichLead_OmitsEmptyResearchPlan(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		_, hasPlan := body["research_plan"]
		assert.False(t, hasPlan)

		_ = json.NewEncoder(w).Encode(map[string]any{"task_id": "t"})
	}))

	_, err := client.EnrichLead(t.Context(), map[string]any{}, map[string]string{"u": "x"}, "")
	require.NoError(t, err)
}

func TestPollTask_CompletesAfterPending(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/job-status/task-42", r.URL.Path)

		if calls.Add(1) < 3 {
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "pending"})

			return
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "completed",
			"result": map[string]any{"university": "MIT"},
		})
	}))

	result, err := client.PollTask(t.Context(), "task-42")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"university": "MIT"}, result)
	assert.GreaterOrEqual(t, calls.Load(), int64(3))
}

func TestPollTask_RemoteFailure(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "failed",
			"error":  "lead could not be resolved",
		})
	}))

	_, err := client.PollTask(t.Context(), "task-42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lead could not be resolved")
}

func TestPollTask_Timeout(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "pending"})
	}))

	_, err := client.PollTask(t.Context(), "task-42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not complete within")
}

func TestPollTask_ContextCancelled(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "pending"})
	}))
	client.PollInterval = 50 * time.Millisecond
	client.PollTimeout = time.Minute

	ctx, cancel := context.WithCancel(t.Context())

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := client.PollTask(ctx, "task-42")
	require.ErrorIs(t, err, context.Canceled)
}

func TestFindEmail(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/find-email", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "PROFESSIONAL", body["mode"])

		_ = json.NewEncoder(w).Encode(map[string]any{"email": "ada@corp.test"})
	}))

	response, err := client.FindEmail(t.Context(), map[string]any{"name": "Ada"}, "PROFESSIONAL")
	require.NoError(t, err)
	assert.Equal(t, "ada@corp.test", response["email"])
}

func TestDo_NonSuccessStatus(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))

	_, err := client.FindEmail(t.Context(), map[string]any{}, "PROFESSIONAL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 401")
}

func TestNewClient_DefaultBaseURL(t *testing.T) {
	t.Parallel()

	client := NewClient("", "k")
	assert.Equal(t, DefaultBaseURL, client.baseURL)
}
