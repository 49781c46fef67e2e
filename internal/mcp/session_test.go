package mcp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/rayhanfay/sistem-rangkuman-data/internal/analysis"
)

func dialTestSession(t *testing.T, d *Dispatcher) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewSession(conn, d).Run(r.Context())
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestSessionAnswersInOrder(t *testing.T) {
	conn := dialTestSession(t, newTestDispatcher(&stubAnalyses{}, nil))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)))

	first := readFrame(t, conn)
	require.EqualValues(t, 1, first["id"])
	result := first["result"].(map[string]any)
	require.Equal(t, ProtocolVersion, result["protocolVersion"])

	second := readFrame(t, conn)
	require.EqualValues(t, 2, second["id"])
}

func TestSessionDeliversProgressNotifications(t *testing.T) {
	conn := dialTestSession(t, newTestDispatcher(&stubAnalyses{}, nil))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"trigger_analysis","arguments":{}}}`)))
	// The background tool sends no response; the next frames are the
	// progress notifications, then the answer to a follow-up request.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","id":2,"method":"prompts/list"}`)))

	starting := readFrame(t, conn)
	require.Equal(t, ProgressMethod, starting["method"])
	params := starting["params"].(map[string]any)
	require.Equal(t, analysis.StatusStarting, params["status"])

	completed := readFrame(t, conn)
	require.Equal(t, ProgressMethod, completed["method"])
	require.Equal(t, analysis.StatusCompleted, completed["params"].(map[string]any)["status"])

	answer := readFrame(t, conn)
	require.EqualValues(t, 2, answer["id"])
}
