package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"iso-risk-agent-be/internal/dto"
	"iso-risk-agent-be/internal/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// clusterChannel fans activity out to every instance holding a socket for the user.
const clusterChannel = "agent_activity"

// Hub tracks open activity sockets per user. Several devices may be connected at once.
type Hub struct {
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu sync.RWMutex

	// optional; nil keeps delivery local to this instance
	rdb redis.UniversalClient

	logger logger.ILogger
}

func NewHub(rdb redis.UniversalClient, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[string][]*Client),
		rdb:        rdb,
		logger:     log,
	}
}

// Run serves register and unregister requests until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for userId, clients := range h.clients {
				for _, c := range clients {
					close(c.send)
				}
				delete(h.clients, userId)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.userId] = append(h.clients[client.userId], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"user_id": client.userId})

		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clients[client.userId]
	for i, c := range clients {
		if c == client {
			h.clients[client.userId] = append(clients[:i], clients[i+1:]...)
			close(client.send)
			break
		}
	}
	if len(h.clients[client.userId]) == 0 {
		delete(h.clients, client.userId)
		h.logger.Info("Hub", "Client completely unregistered", map[string]interface{}{"user_id": client.userId})
	}
}

// Connected reports how many sockets the user has open on this instance.
func (h *Hub) Connected(userId string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userId])
}

// Deliver pushes one activity entry to the user's sockets here and, when
// Redis is configured, on every other instance.
func (h *Hub) Deliver(userId string, activity *dto.ActivityResponse) {
	data, err := json.Marshal(map[string]interface{}{
		"type": "activity",
		"data": activity,
	})
	if err != nil {
		return
	}

	if h.rdb == nil {
		h.deliverLocal(userId, data)
		return
	}

	payload, _ := json.Marshal(clusterMessage{TargetUserId: userId, Message: data})
	if err := h.rdb.Publish(context.Background(), clusterChannel, payload).Err(); err != nil {
		h.logger.Warn("Hub", "Cluster publish failed, delivering locally", map[string]interface{}{"error": err.Error()})
		h.deliverLocal(userId, data)
	}
}

func (h *Hub) deliverLocal(userId string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients[userId] {
		select {
		case client.send <- data:
		default:
			// slow reader; the feed can be re-read over HTTP
			h.logger.Warn("Hub", "Client send buffer full, dropping message", map[string]interface{}{"user_id": userId})
		}
	}
}

type clusterMessage struct {
	TargetUserId string          `json:"target_user_id"`
	Message      json.RawMessage `json:"message"`
}

// subscribeToRedis delivers messages published by any instance, this one included.
func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var payload clusterMessage
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			h.logger.Warn("Hub", "Undecodable cluster message", map[string]interface{}{"error": err.Error()})
			continue
		}
		h.deliverLocal(payload.TargetUserId, payload.Message)
	}
}
