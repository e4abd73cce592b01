// internal/gitea/client_test.go
package gitea

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "repo-mirror/internal/errors"
	"repo-mirror/internal/model"
)

func setupTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(server.URL+"/", "secret", logger, nil), server
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

func TestClient_GetRepository(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/repos/acme/widget", r.URL.Path)
			assert.Equal(t, "token secret", r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, `{"id": 7, "name": "widget", "full_name": "acme/widget", "mirror": true}`)
		})
		client, server := setupTestClient(t, handler)
		defer server.Close()

		repo, err := client.GetRepository(context.Background(), "acme", "widget")

		require.NoError(t, err)
		assert.Equal(t, int64(7), repo.ID)
		assert.True(t, repo.Mirror)
	})

	t.Run("missing", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, `{"message": "The target couldn't be found."}`)
		})
		client, server := setupTestClient(t, handler)
		defer server.Close()

		_, err := client.GetRepository(context.Background(), "acme", "widget")

		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestClient_MalformedResponses(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{name: "html instead of json", contentType: "text/html", body: "<html>login</html>"},
		{name: "truncated json", contentType: "application/json", body: `{"id": 7, "name":`},
		{name: "no content type", contentType: "", body: `{"id": 7}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tc.contentType != "" {
					w.Header().Set("Content-Type", tc.contentType)
				} else {
					w.Header()["Content-Type"] = nil
				}
				w.WriteHeader(http.StatusOK)
				fmt.Fprint(w, tc.body)
			})
			client, server := setupTestClient(t, handler)
			defer server.Close()

			_, err := client.GetOrganization(context.Background(), "acme")

			var malformed *apperrors.MalformedResponseError
			require.ErrorAs(t, err, &malformed)
			assert.Equal(t, http.StatusOK, malformed.StatusCode)
			assert.Equal(t, tc.contentType, malformed.ContentType)
			assert.Contains(t, malformed.Body, tc.body[:5])
			assert.False(t, apperrors.IsRetryable(err))
		})
	}
}

func TestClient_CreateOrganizationConflict(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/orgs", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "acme", body["username"])
		assert.Equal(t, "private", body["visibility"])
		writeJSON(w, http.StatusUnprocessableEntity, `{"message": "user already exists [name: acme]"}`)
	})
	client, server := setupTestClient(t, handler)
	defer server.Close()

	_, err := client.CreateOrganization(context.Background(), "acme", model.VisibilityPrivate)

	assert.True(t, apperrors.IsConflict(err))
}

func TestClient_MigrateRepository(t *testing.T) {
	var calls int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/api/v1/repos/migrate", r.URL.Path)
		var opts MigrateOptions
		require.NoError(t, json.NewDecoder(r.Body).Decode(&opts))
		assert.True(t, opts.Mirror)
		assert.Equal(t, "git", opts.Service)
		assert.Equal(t, "acme", opts.RepoOwner)
		writeJSON(w, http.StatusCreated, `{"id": 9, "name": "widget", "full_name": "acme/widget", "owner": {"login": "acme"}}`)
	})
	client, server := setupTestClient(t, handler)
	defer server.Close()

	repo, err := client.MigrateRepository(context.Background(), MigrateOptions{
		CloneAddr: "https://github.com/acme/widget.git",
		RepoName:  "widget",
		RepoOwner: "acme",
		Mirror:    true,
	})

	require.NoError(t, err)
	assert.Equal(t, "acme", repo.Owner.Login)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_TooManyRequests(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		writeJSON(w, http.StatusTooManyRequests, `{"message": "slow down"}`)
	})
	client, server := setupTestClient(t, handler)
	defer server.Close()

	err := client.MirrorSync(context.Background(), "acme", "widget")

	var tmr *apperrors.TooManyRequestsError
	require.ErrorAs(t, err, &tmr)
	assert.Equal(t, 3*time.Second, tmr.RetryAfter)
}

func TestClient_CreateLabelNormalizesColor(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "#ff0000", body["color"])
		writeJSON(w, http.StatusCreated, `{"id": 3, "name": "bug", "color": "ff0000"}`)
	})
	client, server := setupTestClient(t, handler)
	defer server.Close()

	label, err := client.CreateLabel(context.Background(), "acme", "widget", model.Label{Name: "bug", Color: "ff0000"})

	require.NoError(t, err)
	assert.Equal(t, int64(3), label.ID)
}
