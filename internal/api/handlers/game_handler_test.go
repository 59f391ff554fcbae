package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/progate-hackathon-strawberry-flavor/GITRIS-stage/internal/api/middleware"
	"github.com/progate-hackathon-strawberry-flavor/GITRIS-stage/internal/services/tetris"
)

func newGameServer(t *testing.T) (*httptest.Server, *tetris.SessionManager) {
	t.Helper()
	sm := tetris.NewSessionManager(tetris.DefaultStageConfig(), nil)
	auth := middleware.NewAuthenticator("", true)
	h := NewGameHandler(sm, auth, nil)

	r := mux.NewRouter()
	r.HandleFunc("/ws/{sessionID}", h.HandleWebSocketConnection)
	protected := r.PathPrefix("/api/sessions").Subrouter()
	protected.Use(auth.Middleware)
	protected.HandleFunc("", h.CreateSession).Methods("POST")
	protected.HandleFunc("/{sessionID}", h.GetSession).Methods("GET")
	protected.HandleFunc("/{sessionID}", h.DeleteSession).Methods("DELETE")

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		sm.Shutdown()
	})
	return srv, sm
}

func doRequest(t *testing.T, method, url, user string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+user)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func createSession(t *testing.T, srv *httptest.Server, user string) string {
	t.Helper()
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/sessions", user)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body sessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, user, body.UserID)
	require.NotEmpty(t, body.SessionID)
	return body.SessionID
}

func TestSessionLifecycle(t *testing.T) {
	srv, sm := newGameServer(t)
	id := createSession(t, srv, "user-1")
	assert.Equal(t, 1, sm.SessionCount())

	assert.Equal(t, http.StatusOK, doRequest(t, http.MethodGet, srv.URL+"/api/sessions/"+id, "user-1").StatusCode)
	assert.Equal(t, http.StatusNotFound, doRequest(t, http.MethodGet, srv.URL+"/api/sessions/"+id, "user-2").StatusCode)
	assert.Equal(t, http.StatusNotFound, doRequest(t, http.MethodDelete, srv.URL+"/api/sessions/"+id, "user-2").StatusCode)

	assert.Equal(t, http.StatusNoContent, doRequest(t, http.MethodDelete, srv.URL+"/api/sessions/"+id, "user-1").StatusCode)
	assert.Equal(t, http.StatusNotFound, doRequest(t, http.MethodGet, srv.URL+"/api/sessions/"+id, "user-1").StatusCode)
	assert.Equal(t, 0, sm.SessionCount())
}

func dial(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	return conn
}

func TestWebSocketPlay(t *testing.T) {
	srv, _ := newGameServer(t)
	id := createSession(t, srv, "user-1")
	conn := dial(t, srv, id)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "auth", "token": "user-1"}))
	var ack map[string]string
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, "auth_success", ack["type"])

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "start"}))
	for {
		var msg tetris.StateMessage
		require.NoError(t, conn.ReadJSON(&msg))
		require.Equal(t, "state", msg.Type)
		assert.Equal(t, id, msg.SessionID)
		if msg.Snapshot.State == tetris.StateFalling {
			require.NotNil(t, msg.Snapshot.Active)
			assert.Len(t, msg.Snapshot.Next, 4)
			break
		}
	}

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "key", "key": "hard_drop", "pressed": true}))
	for {
		var msg tetris.StateMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Snapshot.Stats.Score > 0 {
			assert.Equal(t, 10, msg.Snapshot.Stats.Score)
			break
		}
	}
}

func TestWebSocketRejectsOtherUser(t *testing.T) {
	srv, _ := newGameServer(t)
	id := createSession(t, srv, "user-1")
	conn := dial(t, srv, id)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "auth", "token": "user-2"}))
	var ack map[string]string
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, "auth_success", ack["type"])

	var failure map[string]string
	require.NoError(t, conn.ReadJSON(&failure))
	assert.Equal(t, "error", failure["type"])
	assert.Equal(t, tetris.ErrSessionNotFound.Error(), failure["error"])
}

func TestWebSocketUnknownSession(t *testing.T) {
	srv, _ := newGameServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/missing"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
