package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"

	"docubot-be/internal/pkg/logger"
	"docubot-be/pkg/listening"
)

// ClusterChannel carries {target_user_id, message} between instances.
const ClusterChannel = "cluster_events"

type clusterPayload struct {
	TargetUserID string          `json:"target_user_id"`
	Message      json.RawMessage `json:"message"`
}

type Hub struct {
	// UserID -> connections (one per open tab or device)
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu sync.RWMutex

	// Optional. When set, every delivery goes through redis so all
	// instances see it, including this one.
	rdb *redis.Client

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		clients:    make(map[string][]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		rdb:        rdb,
		logger:     log,
	}
}

// Run processes registrations until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = append(h.clients[client.UserID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"user_id": client.UserID})

		case client := <-h.unregister:
			h.remove(client)

		case <-ctx.Done():
			h.mu.Lock()
			for userID, clients := range h.clients {
				for _, c := range clients {
					close(c.Send)
				}
				delete(h.clients, userID)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[client.UserID]
	if !ok {
		return
	}
	for i, c := range clients {
		if c == client {
			h.clients[client.UserID] = append(clients[:i], clients[i+1:]...)
			close(client.Send)
			break
		}
	}
	if len(h.clients[client.UserID]) == 0 {
		delete(h.clients, client.UserID)
		h.logger.Info("Hub", "Client completely unregistered", map[string]interface{}{"user_id": client.UserID})
	}
}

func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount reports the open connections of userID on this instance.
func (h *Hub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Send delivers data to every connection of userID across the cluster.
func (h *Hub) Send(ctx context.Context, userID string, data []byte) {
	if h.rdb == nil {
		h.deliverLocal(userID, data)
		return
	}

	payload, _ := json.Marshal(clusterPayload{TargetUserID: userID, Message: data})
	if err := h.rdb.Publish(ctx, ClusterChannel, payload).Err(); err != nil {
		h.logger.Warn("Hub", "Redis publish failed, delivering locally", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		h.deliverLocal(userID, data)
	}
}

// DeliverCapture forwards a capture tick to the user's websocket clients.
func (h *Hub) DeliverCapture(ev listening.CaptureEvent) {
	data, err := json.Marshal(map[string]interface{}{
		"type": "capture",
		"data": ev,
	})
	if err != nil {
		return
	}
	h.Send(context.Background(), ev.UserID, data)
}

// deliverLocal never blocks; a client with a full buffer misses the message.
func (h *Hub) deliverLocal(userID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients[userID] {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("Hub", "Client Send buffer full, dropping message", map[string]interface{}{"user_id": userID})
		}
	}
}

// SubscribeCluster listens on the redis channel until ctx is cancelled. It
// returns once the subscription is confirmed.
func (h *Hub) SubscribeCluster(ctx context.Context) error {
	if h.rdb == nil {
		return nil
	}

	pubsub := h.rdb.Subscribe(ctx, ClusterChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return err
	}

	go func() {
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
				var payload clusterPayload
				if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
					h.logger.Warn("Hub", "Redis msg parse error", map[string]interface{}{"error": err.Error()})
					continue
				}
				h.deliverLocal(payload.TargetUserID, payload.Message)
			}
		}
	}()
	return nil
}
