package websocket

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"momolearn-backend/internal/services"
)

const writeWait = 10 * time.Second

// TicketVerifier resolves a websocket ticket to the user it was issued to.
type TicketVerifier interface {
	Verify(ticket string) (uuid.UUID, error)
}

// feedFunc streams raw messages for one user until ctx is done.
type feedFunc func(ctx context.Context, userID uuid.UUID) <-chan []byte

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub fans study-set status events out to each user's open sockets. One
// pub/sub subscription is held per user while at least one socket is open.
type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID][]*client
	cancelFuncs map[uuid.UUID]context.CancelFunc
	tickets     TicketVerifier
	feed        feedFunc
	upgrader    websocket.Upgrader
	log         *zap.Logger
}

func NewHub(redisClient *redis.Client, tickets TicketVerifier, frontendURL string, log *zap.Logger) *Hub {
	h := newHub(tickets, frontendURL, log)
	h.feed = redisFeed(redisClient, h.log)
	return h
}

func newHub(tickets TicketVerifier, frontendURL string, log *zap.Logger) *Hub {
	allowed := strings.TrimRight(frontendURL, "/")
	return &Hub{
		connections: make(map[uuid.UUID][]*client),
		cancelFuncs: make(map[uuid.UUID]context.CancelFunc),
		tickets:     tickets,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowed
			},
		},
		log: log.Named("ws"),
	}
}

func redisFeed(rdb *redis.Client, log *zap.Logger) feedFunc {
	return func(ctx context.Context, userID uuid.UUID) <-chan []byte {
		out := make(chan []byte, 16)
		go func() {
			defer close(out)
			pubsub := rdb.Subscribe(ctx, services.UserChannel(userID))
			defer pubsub.Close()

			ch := pubsub.Channel()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-ch:
					if !ok {
						log.Warn("pubsub channel closed", zap.String("user_id", userID.String()))
						return
					}
					select {
					case out <- []byte(msg.Payload):
					case <-ctx.Done():
						return
					}
				}
			}
		}()
		return out
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Authenticate via ticket query param
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	userID, err := h.tickets.Verify(ticket)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn}
	h.registerConnection(userID, c)

	// Keep connection alive and handle disconnect
	go func() {
		defer h.unregisterConnection(userID, c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) registerConnection(userID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[userID] = append(h.connections[userID], c)

	// Start pub/sub subscription if this is the first connection for this user
	if len(h.connections[userID]) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[userID] = cancel
		go h.forward(ctx, userID, h.feed(ctx, userID))
	}

	h.log.Info("websocket connected",
		zap.String("user_id", userID.String()),
		zap.Int("connections", len(h.connections[userID])),
	)
}

func (h *Hub) unregisterConnection(userID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.conn.Close()

	conns := h.connections[userID]
	for i, existing := range conns {
		if existing == c {
			h.connections[userID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	// If no more connections, cancel pub/sub
	if len(h.connections[userID]) == 0 {
		delete(h.connections, userID)
		if cancel, ok := h.cancelFuncs[userID]; ok {
			cancel()
			delete(h.cancelFuncs, userID)
		}
	}

	h.log.Info("websocket disconnected", zap.String("user_id", userID.String()))
}

func (h *Hub) forward(ctx context.Context, userID uuid.UUID, msgs <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgs:
			if !ok {
				return
			}
			h.broadcast(userID, data)
		}
	}
}

func (h *Hub) broadcast(userID uuid.UUID, data []byte) {
	h.mu.RLock()
	clients := append([]*client(nil), h.connections[userID]...)
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(data); err != nil {
			h.log.Debug("websocket write failed", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}
}

// connectionCount reports how many sockets userID has open.
func (h *Hub) connectionCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[userID])
}

// Close drops every socket and subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, conns := range h.connections {
		for _, c := range conns {
			c.conn.Close()
		}
		if cancel, ok := h.cancelFuncs[userID]; ok {
			cancel()
		}
	}
	h.connections = make(map[uuid.UUID][]*client)
	h.cancelFuncs = make(map[uuid.UUID]context.CancelFunc)
}
