package realtime

import (
	"time"

	"github.com/gofiber/contrib/v3/websocket"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/seuros/scout/internal/logging"
)

// Hub fans filter events out to the WebSocket clients watching a session.
// Clients subscribe to one topic, the session id.
type Hub struct {
	register    chan *Client
	unregister  chan *Client
	broadcast   chan message
	clientCount chan countRequest
	topics      map[string]map[*Client]struct{}
}

type message struct {
	topic   string
	payload []byte
}

type countRequest struct {
	topic    string
	response chan int
}

type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(int, []byte) error
	Close() error
}

type Client struct {
	hub   *Hub
	conn  wsConn
	topic string
	send  chan []byte
}

type pingTicker interface {
	C() <-chan time.Time
	Stop()
}

type realPingTicker struct {
	*time.Ticker
}

func (t *realPingTicker) C() <-chan time.Time {
	return t.Ticker.C
}

var pingTickerFactory = func() pingTicker {
	return &realPingTicker{time.NewTicker(30 * time.Second)}
}

func NewHub() *Hub {
	h := &Hub{
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan message, 512),
		clientCount: make(chan countRequest),
		topics:      make(map[string]map[*Client]struct{}),
	}

	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			clients, ok := h.topics[client.topic]
			if !ok {
				clients = make(map[*Client]struct{})
				h.topics[client.topic] = clients
			}
			clients[client] = struct{}{}
		case client := <-h.unregister:
			if h.remove(client) {
				_ = client.conn.Close()
			}
		case msg := <-h.broadcast:
			for client := range h.topics[msg.topic] {
				select {
				case client.send <- msg.payload:
				default:
					h.remove(client)
				}
			}
		case req := <-h.clientCount:
			if req.topic == "" {
				total := 0
				for _, clients := range h.topics {
					total += len(clients)
				}
				req.response <- total
				continue
			}
			req.response <- len(h.topics[req.topic])
		}
	}
}

// remove drops a client and closes its send channel. It reports whether the
// client was still registered.
func (h *Hub) remove(client *Client) bool {
	clients, ok := h.topics[client.topic]
	if !ok {
		return false
	}
	if _, ok := clients[client]; !ok {
		return false
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.topics, client.topic)
	}
	close(client.send)
	return true
}

// Broadcast queues msg for every client of topic.
func (h *Hub) Broadcast(topic string, msg []byte) {
	select {
	case h.broadcast <- message{topic: topic, payload: msg}:
	default:
		logging.L().Warn("dropping realtime payload",
			zap.String("topic", topic),
			zap.String("reason", "slow consumers"))
	}
}

// ClientCount returns the clients watching topic, or all clients when topic
// is empty.
func (h *Hub) ClientCount(topic string) int {
	response := make(chan int)
	h.clientCount <- countRequest{topic: topic, response: response}
	return <-response
}

// Handler upgrades the request and subscribes the socket to the
// :session_id route parameter.
func (h *Hub) Handler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		client := &Client{
			hub:   h,
			conn:  conn,
			topic: conn.Params("session_id"),
			send:  make(chan []byte, 512),
		}

		h.register <- client

		go client.writePump()
		client.readPump()
	})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *Client) writePump() {
	ticker := pingTickerFactory()
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C():
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
