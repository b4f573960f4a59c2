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
)

// fakeConn records writes and blocks reads until closed.
type fakeConn struct {
	mu     sync.Mutex
	writes []Message
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	<-c.closed
	return 0, nil, errors.New("closed")
}

func (c *fakeConn) WriteMessage(t int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t == websocket.TextMessage || t == websocket.BinaryMessage {
		c.writes = append(c.writes, Message{Frame: t, Data: data})
	}
	return nil
}

func (c *fakeConn) SetReadLimit(int64) {}
func (c *fakeConn) SetReadDeadline(time.Time) error { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (c *fakeConn) SetPongHandler(func(string) error) {}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) Writes() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.writes...)
}

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := New("test")
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	require.Eventually(t, h.IsRunning, time.Second, time.Millisecond)
	t.Cleanup(func() {
		cancel()
		<-h.Done()
	})
	return h, cancel
}

func TestHub_BroadcastReachesClients(t *testing.T) {
	h, _ := startHub(t)

	a, b := newFakeConn(), newFakeConn()
	go NewClient(h, a).Run()
	go NewClient(h, b).Run()
	require.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, time.Millisecond)

	require.NoError(t, h.BroadcastJSON(map[string]string{"state": "live"}))
	h.BroadcastBinary([]byte{0xFF, 0xD8})

	for _, conn := range []*fakeConn{a, b} {
		require.Eventually(t, func() bool { return len(conn.Writes()) == 2 }, time.Second, time.Millisecond)
		w := conn.Writes()
		assert.True(t, w[0].Status())
		assert.JSONEq(t, `{"state":"live"}`, string(w[0].Data))
		assert.Equal(t, websocket.BinaryMessage, w[1].Frame)
	}
}

func TestHub_ReplaysLastStatus(t *testing.T) {
	h, _ := startHub(t)

	require.NoError(t, h.BroadcastJSON(map[string]int{"n": 1}))
	require.NoError(t, h.BroadcastJSON(map[string]int{"n": 2}))
	h.BroadcastBinary([]byte("frame"))
	time.Sleep(10 * time.Millisecond)

	conn := newFakeConn()
	go NewClient(h, conn).Run()

	require.Eventually(t, func() bool { return len(conn.Writes()) == 1 }, time.Second, time.Millisecond)
	assert.JSONEq(t, `{"n":2}`, string(conn.Writes()[0].Data))
}

func TestHub_Disconnect(t *testing.T) {
	h, _ := startHub(t)

	conn := newFakeConn()
	go NewClient(h, conn).Run()
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, time.Millisecond)
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	h := New("shutdown")
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	conn := newFakeConn()
	go NewClient(h, conn).Run()
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	cancel()
	<-h.Done()
	assert.False(t, h.IsRunning())
	assert.Zero(t, h.ClientCount())

	select {
	case <-conn.closed:
	case <-time.After(time.Second):
		t.Fatal("connection not closed on shutdown")
	}
}
