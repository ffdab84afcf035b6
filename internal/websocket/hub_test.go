package websocket

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"decor-ai-be/internal/dto"
	"decor-ai-be/internal/pkg/logger"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := NewHub(nil, logger.NewNopLogger())
	go hub.Run(ctx)
	return hub
}

func register(hub *Hub, workspaceId string, buffer int) *Client {
	c := &Client{Hub: hub, WorkspaceId: workspaceId, Send: make(chan []byte, buffer)}
	hub.register <- c
	return c
}

func TestHub_SendReachesOnlyWorkspaceClients(t *testing.T) {
	hub := startHub(t)
	a := register(hub, "ws-a", 4)
	b := register(hub, "ws-b", 4)
	require.Eventually(t, func() bool { return hub.ClientCount("ws-a") == 1 && hub.ClientCount("ws-b") == 1 }, time.Second, 5*time.Millisecond)

	hub.Send("ws-a", "chat", json.RawMessage(`{"x":1}`))

	select {
	case raw := <-a.Send:
		var msg dto.PushMessage
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, "chat", msg.Type)
		assert.JSONEq(t, `{"x":1}`, string(msg.Data))
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}
	assert.Empty(t, b.Send)
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub := startHub(t)
	slow := register(hub, "ws-a", 1)
	require.Eventually(t, func() bool { return hub.ClientCount("ws-a") == 1 }, time.Second, 5*time.Millisecond)

	hub.Send("ws-a", "chat", json.RawMessage(`1`))
	hub.Send("ws-a", "chat", json.RawMessage(`2`))

	require.Eventually(t, func() bool { return hub.ClientCount("ws-a") == 0 }, time.Second, 5*time.Millisecond)

	<-slow.Send
	_, open := <-slow.Send
	assert.False(t, open)
}

func TestHub_UnregisterTwiceIsSafe(t *testing.T) {
	hub := startHub(t)
	c := register(hub, "ws-a", 1)
	require.Eventually(t, func() bool { return hub.ClientCount("ws-a") == 1 }, time.Second, 5*time.Millisecond)

	hub.unregister <- c
	hub.unregister <- c

	require.Eventually(t, func() bool { return hub.ClientCount("ws-a") == 0 }, time.Second, 5*time.Millisecond)
}

// silentRedis accepts connections and never answers.
func silentRedis(t *testing.T) *redis.Client {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()

	rdb := redis.NewClient(&redis.Options{
		Addr:         ln.Addr().String(),
		DialTimeout:  time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		MaxRetries:   -1,
	})
	t.Cleanup(func() {
		rdb.Close()
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})
	return rdb
}

func TestHub_SendDoesNotWaitOnUnresponsiveRedis(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := NewHub(silentRedis(t), logger.NewNopLogger())
	go hub.Run(ctx)

	local := register(hub, "ws-a", 4)
	require.Eventually(t, func() bool { return hub.ClientCount("ws-a") == 1 }, time.Second, 5*time.Millisecond)

	start := time.Now()
	hub.Send("ws-a", "workflow_state", json.RawMessage(`{"step":"preferences"}`))
	// Overflowing the outbox drops cluster messages instead of blocking.
	for i := 0; i < 2*clusterOutboxSize; i++ {
		hub.Send("ws-idle", "chat", json.RawMessage(`{}`))
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	select {
	case raw := <-local.Send:
		var msg dto.PushMessage
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, "workflow_state", msg.Type)
	case <-time.After(time.Second):
		t.Fatal("local delivery waited on redis")
	}
}
