package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/c2c-marketplace/backend/internal/auth"
	"github.com/c2c-marketplace/backend/internal/config"
	"github.com/c2c-marketplace/backend/internal/events"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WSHub pushes order, negotiation and payout events to the users they concern.
type WSHub struct {
	cfg         *config.Config
	subscriber  events.Subscriber
	log         *zap.Logger
	mu          sync.RWMutex
	connections map[uuid.UUID][]*wsClient
}

type messageWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// wsClient serializes writes; a websocket connection allows one writer at a
// time and every subscribed stream delivers on its own goroutine.
type wsClient struct {
	mu   sync.Mutex
	conn messageWriter
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func NewWSHub(cfg *config.Config, subscriber events.Subscriber, log *zap.Logger) *WSHub {
	return &WSHub{
		cfg:         cfg,
		subscriber:  subscriber,
		log:         log,
		connections: make(map[uuid.UUID][]*wsClient),
	}
}

func (h *WSHub) Start(ctx context.Context) {
	for _, stream := range []string{events.StreamOrders, events.StreamNegotiations, events.StreamPayouts} {
		if err := h.subscriber.Subscribe(ctx, stream, h.route); err != nil {
			h.log.Error("ws hub subscribe failed", zap.String("stream", stream), zap.Error(err))
		}
	}
}

func (h *WSHub) route(event events.Event) {
	for _, userID := range recipients(event) {
		h.SendToUser(userID, event)
	}
}

// recipients reads the party ids carried in the payload.
func recipients(event events.Event) []uuid.UUID {
	var out []uuid.UUID
	for _, key := range []string{"buyer_id", "seller_id"} {
		s, _ := event.Payload[key].(string)
		id, err := uuid.Parse(s)
		if err != nil {
			continue
		}
		dup := false
		for _, seen := range out {
			dup = dup || seen == id
		}
		if !dup {
			out = append(out, id)
		}
	}
	return out
}

func (h *WSHub) SendToUser(userID uuid.UUID, event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.connections[userID] {
		if err := client.write(data); err != nil {
			h.log.Debug("ws write failed", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}
}

func (h *WSHub) register(userID uuid.UUID, conn messageWriter) *wsClient {
	client := &wsClient{conn: conn}
	h.mu.Lock()
	h.connections[userID] = append(h.connections[userID], client)
	h.mu.Unlock()
	return client
}

func (h *WSHub) unregister(userID uuid.UUID, client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients := h.connections[userID]
	for i, c := range clients {
		if c == client {
			h.connections[userID] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(h.connections[userID]) == 0 {
		delete(h.connections, userID)
	}
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *WSHub) HandleWS(conn *websocket.Conn) {
	tokenStr := conn.Query("token")
	if tokenStr == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing token"}`))
		conn.Close()
		return
	}

	claims, err := auth.ParseJWT(h.cfg.JWTSecret, tokenStr)
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
		conn.Close()
		return
	}

	userID := claims.UserID

	client := h.register(userID, conn)
	defer func() {
		h.unregister(userID, client)
		conn.Close()
	}()

	// Read loop (keep alive / pings)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
