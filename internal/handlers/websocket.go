package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"fairplay-backend/internal/services"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Client struct {
	UserID string
	Conn   *websocket.Conn
	send   chan *Message
}

type Message struct {
	Type    string      `json:"type"`
	RoundID string      `json:"round_id,omitempty"`
	Data    interface{} `json:"data"`
}

// WebSocketHub pushes ledger and fairness events to the connections of the
// player they concern. A player may hold several connections.
type WebSocketHub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan services.Event
	done       chan struct{}
	log        *zap.Logger
}

func NewWebSocketHub(log *zap.Logger) *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan services.Event, 256),
		done:       make(chan struct{}),
		log:        log.Named("ws"),
	}
}

// Deliver queues e for the hub; it drops the event when the hub is backed up.
func (hub *WebSocketHub) Deliver(_ context.Context, e services.Event) error {
	select {
	case hub.broadcast <- e:
	default:
		hub.log.Warn("hub buffer full, dropping event", zap.String("type", string(e.Type)))
	}
	return nil
}

func (hub *WebSocketHub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			close(hub.done)
			return nil

		case client := <-hub.register:
			conns, ok := hub.clients[client.UserID]
			if !ok {
				conns = make(map[*Client]struct{})
				hub.clients[client.UserID] = conns
			}
			conns[client] = struct{}{}
			hub.log.Debug("client registered", zap.String("user_id", client.UserID))

		case client := <-hub.unregister:
			if conns, ok := hub.clients[client.UserID]; ok {
				if _, ok := conns[client]; ok {
					delete(conns, client)
					close(client.send)
					if len(conns) == 0 {
						delete(hub.clients, client.UserID)
					}
					hub.log.Debug("client unregistered", zap.String("user_id", client.UserID))
				}
			}

		case e := <-hub.broadcast:
			hub.broadcastMessage(e)
		}
	}
}

func (hub *WebSocketHub) broadcastMessage(e services.Event) {
	if e.UserID == "" {
		return
	}
	msg := &Message{Type: string(e.Type), RoundID: e.RoundID, Data: e.Data}
	for client := range hub.clients[e.UserID] {
		select {
		case client.send <- msg:
		default:
			hub.log.Warn("client too slow, dropping message", zap.String("user_id", client.UserID))
		}
	}
}

type WebSocketHandler struct {
	hub    *WebSocketHub
	ledger *services.BettingLedger
	log    *zap.Logger
}

func NewWebSocketHandler(hub *WebSocketHub, ledger *services.BettingLedger, log *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hub,
		ledger: ledger,
		log:    log.Named("ws"),
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID := c.GetString("user_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("failed to upgrade to websocket", zap.Error(err))
		return
	}

	client := &Client{
		UserID: userID,
		Conn:   conn,
		send:   make(chan *Message, sendBuffer),
	}

	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		conn.Close()
		return
	}
	go h.writePump(client)

	h.sendBalance(c.Request.Context(), client)
	h.readPump(client)
}

func (h *WebSocketHandler) readPump(client *Client) {
	defer func() {
		select {
		case h.hub.unregister <- client:
		case <-h.hub.done:
		}
		client.Conn.Close()
	}()

	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		return client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := client.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn("websocket error", zap.String("user_id", client.UserID), zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case "PING":
			h.queue(client, &Message{
				Type: "PONG",
				Data: gin.H{"timestamp": time.Now().Unix()},
			})
		}
	}
}

// writePump is the only writer of client.Conn.
func (h *WebSocketHandler) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteJSON(msg); err != nil {
				return
			}
		case <-h.hub.done:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHandler) queue(client *Client, msg *Message) {
	select {
	case client.send <- msg:
	default:
	}
}

func (h *WebSocketHandler) sendBalance(ctx context.Context, client *Client) {
	account, err := h.ledger.Balances(ctx, client.UserID)
	if err != nil {
		h.log.Warn("failed to get balance for websocket", zap.String("user_id", client.UserID), zap.Error(err))
		return
	}

	h.queue(client, &Message{
		Type: "BALANCE_UPDATE",
		Data: account,
	})
}
