package hub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// fakeConn records writes and blocks reads until closed
type fakeConn struct {
	mu      sync.Mutex
	written []Message
	closed  chan struct{}
	once    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{closed: make(chan struct{})}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	<-f.closed
	return 0, nil, errors.New("closed")
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch messageType {
	case websocket.TextMessage:
		f.written = append(f.written, Message{Kind: Snapshot, Data: data})
	case websocket.BinaryMessage:
		f.written = append(f.written, Message{Kind: Frame, Data: data})
	}
	return nil
}

func (f *fakeConn) SetReadLimit(int64)                {}
func (f *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}
func (f *fakeConn) Close() error                      { f.once.Do(func() { close(f.closed) }); return nil }

func (f *fakeConn) messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.written...)
}

func TestHub_BroadcastReachesClients(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := New("status")
	ctx, cancel := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() { h.Run(ctx); close(hubDone) }()

	conn := newFakeConn()
	client := NewClient(h, conn)
	require.NotNil(t, client)
	clientDone := make(chan struct{})
	go func() { client.Run(); close(clientDone) }()

	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, h.IsRunning())

	require.NoError(t, h.BroadcastJSON(map[string]string{"state": "SEARCHING"}))
	h.BroadcastBinary([]byte{0xFF, 0xD8})

	require.Eventually(t, func() bool { return len(conn.messages()) == 2 }, time.Second, 5*time.Millisecond)
	msgs := conn.messages()
	assert.Equal(t, Snapshot, msgs[0].Kind)
	assert.JSONEq(t, `{"state":"SEARCHING"}`, string(msgs[0].Data))
	assert.Equal(t, Frame, msgs[1].Kind)

	cancel()
	<-hubDone
	<-clientDone
	assert.False(t, h.IsRunning())
	assert.Equal(t, 0, h.ClientCount())
}

func TestHub_ReplaysLastStatusToNewClient(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := New("status")
	ctx, cancel := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() { h.Run(ctx); close(hubDone) }()

	require.NoError(t, h.BroadcastJSON(map[string]int{"tick": 7}))

	conn := newFakeConn()
	client := NewClient(h, conn)
	require.NotNil(t, client)
	clientDone := make(chan struct{})
	go func() { client.Run(); close(clientDone) }()

	require.Eventually(t, func() bool { return len(conn.messages()) >= 1 }, time.Second, 5*time.Millisecond)
	assert.JSONEq(t, `{"tick":7}`, string(conn.messages()[0].Data))

	// Client hangs up first.
	conn.Close()
	<-clientDone
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	<-hubDone
}

func TestNewClient_AfterHubStopped(t *testing.T) {
	h := New("camera")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, h.Run(ctx))

	assert.Nil(t, NewClient(h, newFakeConn()))
}
