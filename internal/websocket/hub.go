package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"decor-ai-be/internal/dto"
	"decor-ai-be/internal/pkg/logger"
	"decor-ai-be/pkg/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	clusterChannel = "workspace_events"
	// clusterOutboxSize bounds the messages waiting for Redis; overflow is dropped.
	clusterOutboxSize     = 256
	clusterPublishTimeout = 2 * time.Second
)

type clusterMessage struct {
	Origin      string          `json:"origin"`
	WorkspaceId string          `json:"workspace_id"`
	Message     json.RawMessage `json:"message"`
}

type Hub struct {
	// Registered clients map: WorkspaceId -> clients (several tabs may watch one workspace)
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	// Redis connection for cross-instance communication, optional
	rdb *redis.Client
	// instanceId tags our own Redis publications so they are not delivered twice
	instanceId string
	// outbox feeds the single Redis publisher, so Send never waits on Redis
	// and publications keep their order.
	outbox chan []byte

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client, 64),
		clients:    make(map[string][]*Client),
		rdb:        rdb,
		instanceId: uuid.NewString(),
		outbox:     make(chan []byte, clusterOutboxSize),
		logger:     log,
	}
}

// Run serves registrations until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
		go h.publishToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.WorkspaceId] = append(h.clients[client.WorkspaceId], client)
			h.mu.Unlock()
			metrics.ActiveWebSockets.Inc()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"workspace_id": client.WorkspaceId})

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[client.WorkspaceId]
	if !ok {
		return
	}
	for i, c := range clients {
		if c == client {
			h.clients[client.WorkspaceId] = append(clients[:i], clients[i+1:]...)
			close(client.Send)
			metrics.ActiveWebSockets.Dec()
			break
		}
	}
	if len(h.clients[client.WorkspaceId]) == 0 {
		delete(h.clients, client.WorkspaceId)
		h.logger.Info("Hub", "Workspace has no more clients", map[string]interface{}{"workspace_id": client.WorkspaceId})
	}
}

// Send pushes a typed message to every socket watching workspaceId, here
// and, through Redis, on the other instances.
func (h *Hub) Send(workspaceId, msgType string, data json.RawMessage) {
	payload, err := json.Marshal(dto.PushMessage{Type: msgType, Data: data})
	if err != nil {
		h.logger.Error("Hub", "Failed to encode push message", map[string]interface{}{"error": err.Error()})
		return
	}

	h.deliverLocal(workspaceId, payload)

	if h.rdb != nil {
		clusterPayload, _ := json.Marshal(clusterMessage{
			Origin:      h.instanceId,
			WorkspaceId: workspaceId,
			Message:     payload,
		})
		select {
		case h.outbox <- clusterPayload:
		default:
			h.logger.Warn("Hub", "Redis outbox full, dropping cluster message", map[string]interface{}{"workspace_id": workspaceId})
		}
	}
}

func (h *Hub) publishToRedis(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-h.outbox:
			pubCtx, cancel := context.WithTimeout(ctx, clusterPublishTimeout)
			err := h.rdb.Publish(pubCtx, clusterChannel, payload).Err()
			cancel()
			if err != nil {
				h.logger.Warn("Hub", "Redis publish failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

// ClientCount returns the local sockets watching workspaceId.
func (h *Hub) ClientCount(workspaceId string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[workspaceId])
}

func (h *Hub) deliverLocal(workspaceId string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients[workspaceId] {
		select {
		case client.Send <- payload:
		default:
			h.logger.Warn("Hub", "Client Send buffer full, dropping client", map[string]interface{}{"workspace_id": workspaceId})
			// Removal needs the write lock; hand it to Run.
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var payload clusterMessage
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				h.logger.Warn("Hub", "Redis msg parse error", map[string]interface{}{"error": err.Error()})
				continue
			}
			if payload.Origin == h.instanceId {
				continue
			}
			h.deliverLocal(payload.WorkspaceId, payload.Message)
		}
	}
}
