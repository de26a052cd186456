package ws

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/kilianp07/smartcharge/infra/logger"
)

// Handler upgrades dashboard connections and keeps them registered on the
// hub until they disconnect. Traffic is one-way; commands go through the
// REST API.
type Handler struct {
	hub *Hub
	log logger.Logger

	// Hello, when set, produces the first message sent to a new client,
	// typically the current cycle snapshot.
	Hello func() ([]byte, error)

	upgrader websocket.Upgrader
}

// NewHandler returns a handler broadcasting through the given hub. Origins
// are checked against the provided list; an empty list allows all.
func NewHandler(hub *Hub, allowedOrigins []string) *Handler {
	return &Handler{
		hub: hub,
		log: logger.New("ws"),
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set["*"] || set[origin]
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("websocket upgrade: %v", err)
		return
	}

	client := &Client{
		hub:  h.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}

	h.hub.Register(client)
	go client.writePump()

	if h.Hello != nil {
		if msg, err := h.Hello(); err == nil {
			select {
			case client.send <- msg:
			default:
			}
		} else {
			h.log.Warnf("hello message: %v", err)
		}
	}

	h.readPump(client)
}

// readPump drains the connection so close and ping frames are processed; any
// inbound payload is ignored.
func (h *Handler) readPump(c *Client) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debugf("websocket read: %v", err)
			}
			return
		}
	}
}
