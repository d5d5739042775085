// ABOUTME: Shared fixtures for HTTP API tests
// ABOUTME: Builds a fully wired server over a temp SQLite store

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Alexxxx0910/work-flow-connect-62/internal/auth"
	"github.com/Alexxxx0910/work-flow-connect-62/internal/chat"
	"github.com/Alexxxx0910/work-flow-connect-62/internal/dedupe"
	"github.com/Alexxxx0910/work-flow-connect-62/internal/hub"
	"github.com/Alexxxx0910/work-flow-connect-62/internal/store"
)

const testSecret = "httpapi-test-secret"

type testServer struct {
	store    *store.SQLiteStore
	hub      *hub.Hub
	service  *chat.Service
	verifier *auth.JWTVerifier
	srv      *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	h := hub.New(logger)
	t.Cleanup(h.Close)

	service := chat.NewService(st, h, logger)

	verifier := auth.NewJWTVerifier([]byte(testSecret))
	resends := dedupe.New(5*time.Minute, 100)
	t.Cleanup(resends.Close)

	server := New(service, h, st, verifier, resends, logger)
	srv := httptest.NewServer(server.Router())
	t.Cleanup(srv.Close)

	return &testServer{
		store:    st,
		hub:      h,
		service:  service,
		verifier: verifier,
		srv:      srv,
	}
}

func (ts *testServer) seedUser(t *testing.T, id, name string) {
	t.Helper()
	err := ts.store.UpsertUser(context.Background(), &store.User{ID: id, DisplayName: name})
	require.NoError(t, err)
}

func (ts *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := ts.verifier.Generate(userID, time.Hour)
	require.NoError(t, err)
	return token
}

// request performs an authenticated call and decodes the envelope.
func (ts *testServer) request(t *testing.T, userID, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, ts.srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+ts.token(t, userID))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

// createConversation seeds a conversation through the API and returns its id.
func (ts *testServer) createConversation(t *testing.T, requesterID string, participantIDs []string, isGroup bool, name string) string {
	t.Helper()

	status, body := ts.request(t, requesterID, http.MethodPost, "/api/chats", map[string]any{
		"participantIds": participantIDs,
		"isGroup":        isGroup,
		"name":           name,
	})
	require.Equal(t, http.StatusCreated, status)

	conv, ok := body["chat"].(map[string]any)
	require.True(t, ok, "response should contain a chat object")
	id, _ := conv["id"].(string)
	require.NotEmpty(t, id)
	return id
}
