package web

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-brawler/pkg/arbiter"
	"github.com/teslashibe/go-brawler/pkg/channels"
	"github.com/teslashibe/go-brawler/pkg/control"
	"github.com/teslashibe/go-brawler/pkg/ibus"
	"github.com/teslashibe/go-brawler/pkg/receiver"
)

type fixedStatus struct{ st control.Status }

func (f fixedStatus) Status() control.Status { return f.st }

func newTestServer(t *testing.T) (*Server, *arbiter.Arbiter, *channels.Store) {
	t.Helper()
	store := channels.NewStore(ibus.DefaultChannels)
	arb := arbiter.New(arbiter.DefaultConfig())
	s := NewServer("127.0.0.1:0", Deps{
		Status: fixedStatus{control.Status{RunID: "run-1", Tick: 42, State: control.Searching}},
		Store:  store,
		Killer: arb,
		LinkStats: func() receiver.LinkStats {
			return receiver.LinkStats{Bytes: 320, TransportErrors: 2}
		},
	})
	return s, arb, store
}

func getJSON(t *testing.T, s *Server, method, path string, out any) int {
	t.Helper()
	resp, err := s.App().Test(httptest.NewRequest(method, path, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil && resp.StatusCode == 200 {
		require.NoError(t, json.Unmarshal(body, out), string(body))
	}
	return resp.StatusCode
}

func TestStatus(t *testing.T) {
	s, _, _ := newTestServer(t)

	var got map[string]any
	require.Equal(t, 200, getJSON(t, s, "GET", "/api/status", &got))
	assert.Equal(t, "run-1", got["run_id"])
	assert.Equal(t, "SEARCHING", got["state"])
	assert.EqualValues(t, 42, got["tick"])
}

func TestChannels(t *testing.T) {
	s, _, store := newTestServer(t)
	values := []uint16{1500, 1600, 1000, 1500, 2000, 1000, 1500, 1500, 1500, 1500, 1500, 1500, 1500, 1500}
	require.True(t, store.Apply(ibus.Frame{Channels: values}))
	store.Tick()

	// Frames applied after the tick are not reported until the next one.
	require.True(t, store.Apply(ibus.Frame{Channels: make([]uint16, len(values))}))

	var got ChannelsResponse
	require.Equal(t, 200, getJSON(t, s, "GET", "/api/channels", &got))
	assert.Equal(t, values, got.Values)
	assert.Equal(t, uint64(1), got.Seq)
	assert.Equal(t, channels.Fresh, got.Freshness)
}

func TestLink(t *testing.T) {
	s, _, _ := newTestServer(t)

	var got map[string]any
	require.Equal(t, 200, getJSON(t, s, "GET", "/api/link", &got))
	assert.EqualValues(t, 320, got["bytes"])

	s.deps.LinkStats = nil
	assert.Equal(t, 404, getJSON(t, s, "GET", "/api/link", nil))
}

func TestEStop_LatchesKill(t *testing.T) {
	s, arb, _ := newTestServer(t)

	var got EStopResponse
	require.Equal(t, 200, getJSON(t, s, "POST", "/api/estop", &got))
	assert.True(t, got.Killed)
	assert.Equal(t, EStopReason, got.Reason)

	killed, reason := arb.Killed()
	assert.True(t, killed)
	assert.Equal(t, EStopReason, reason)

	// A second press keeps the first reason.
	arb.ForceKill("something else")
	require.Equal(t, 200, getJSON(t, s, "POST", "/api/estop", &got))
	assert.Equal(t, EStopReason, got.Reason)
}

func TestEStop_RequiresPost(t *testing.T) {
	s, arb, _ := newTestServer(t)
	assert.Equal(t, 405, getJSON(t, s, "GET", "/api/estop", nil))
	killed, _ := arb.Killed()
	assert.False(t, killed)
}

func TestMissingDeps(t *testing.T) {
	s := NewServer(":0", Deps{})
	assert.Equal(t, 503, getJSON(t, s, "GET", "/api/status", nil))
	assert.Equal(t, 503, getJSON(t, s, "GET", "/api/channels", nil))
	assert.Equal(t, 503, getJSON(t, s, "POST", "/api/estop", nil))

	var health map[string]any
	require.Equal(t, 200, getJSON(t, s, "GET", "/api/health", &health))
	assert.Equal(t, true, health["ok"])
}

func TestWS_RequiresUpgrade(t *testing.T) {
	s, _, _ := newTestServer(t)
	assert.Equal(t, 426, getJSON(t, s, "GET", "/ws/status", nil))
}

func TestWS_StatusFeed(t *testing.T) {
	s, _, _ := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := "ws://" + ln.Addr().String() + "/ws/status"
	var conn *websocket.Conn
	require.Eventually(t, func() bool {
		conn, _, err = websocket.DefaultDialer.Dial(url, nil)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return s.statusHub.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	s.PublishStatus(control.Status{RunID: "run-1", State: control.Killed, KillReason: "kill switch"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "KILLED", got["state"])
	assert.Equal(t, "kill switch", got["kill_reason"])

	conn.Close()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestListen_BusyPort(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	s := NewServer(busy.Addr().String(), Deps{})
	_, err = s.Listen()
	require.Error(t, err)
	assert.Contains(t, err.Error(), busy.Addr().String())

	assert.Error(t, s.Run(context.Background()), "Run fails at bind, before serving")
}
