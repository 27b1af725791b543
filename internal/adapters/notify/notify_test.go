package notify

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/raceledger/internal/domain/model"
)

func wsServer(t *testing.T, h *Hub) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = h.Serve(r.Context(), r.URL.Query().Get("player"), conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, player string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?player=" + player
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Clients() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHubDeliversToOwnerOnly(t *testing.T) {
	h := NewHub(nil)
	srv := wsServer(t, h)

	alice := dial(t, srv, "alice")
	bob := dial(t, srv, "bob")
	waitClients(t, h, 2)

	n := model.Notification{ID: "n1", Kind: model.KindRaceSettled, PlayerID: "alice", RaceID: "r1", At: time.Now().UTC()}
	require.NoError(t, h.Deliver(context.Background(), n))

	require.NoError(t, alice.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := alice.ReadMessage()
	require.NoError(t, err)
	var got model.Notification
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, "n1", got.ID)
	assert.Equal(t, model.KindRaceSettled, got.Kind)

	require.NoError(t, bob.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = bob.ReadMessage()
	assert.Error(t, err, "bob must not receive alice's notification")
}

func TestHubDetachAndClose(t *testing.T) {
	h := NewHub(nil)
	srv := wsServer(t, h)

	c := dial(t, srv, "alice")
	waitClients(t, h, 1)
	require.NoError(t, c.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	waitClients(t, h, 0)

	assert.NoError(t, h.Deliver(context.Background(), model.Notification{PlayerID: "nobody"}))

	h.Close()
	err := h.Serve(context.Background(), "late", nil)
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestAuditLogAppendsPerDay(t *testing.T) {
	root := filepath.Join(t.TempDir(), "audit")
	a, err := NewAuditLog(root)
	require.NoError(t, err)
	assert.Equal(t, "audit", a.Name())

	day := time.Date(2026, 10, 14, 23, 0, 0, 0, time.UTC)
	for _, id := range []string{"a", "b"} {
		require.NoError(t, a.Deliver(context.Background(), model.Notification{ID: id, Kind: model.KindRewardClaimed, PlayerID: "p1", At: day}))
	}
	require.NoError(t, a.Deliver(context.Background(), model.Notification{ID: "c", PlayerID: "p1", At: day.Add(2 * time.Hour)}))

	lines := readLines(t, filepath.Join(root, "2026-10-14", "notifications.jsonl"))
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], `"id":"b"`)
	assert.Len(t, readLines(t, filepath.Join(root, "2026-10-15", "notifications.jsonl")), 1)

	_, err = NewAuditLog("")
	assert.Error(t, err)
}

func TestLogSink(t *testing.T) {
	s := NewLogSink(nil)
	assert.Equal(t, "log", s.Name())
	assert.NoError(t, s.Deliver(context.Background(), model.Notification{ID: "x"}))
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var out []string
	s := bufio.NewScanner(f)
	for s.Scan() {
		out = append(out, s.Text())
	}
	require.NoError(t, s.Err())
	return out
}
