package devserver

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"flocksync/internal/domain"
	"flocksync/internal/remote"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The emulator trusts its dev origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// hub fans change events out to every feed connection subscribed to the
// event's table.
type hub struct {
	log *zap.Logger

	mu      sync.Mutex
	clients map[*feedClient]struct{}
}

type feedClient struct {
	conn *websocket.Conn
	send chan remote.Event

	mu     sync.Mutex
	tables map[domain.Collection]struct{}
}

func newHub(log *zap.Logger) *hub {
	return &hub{log: log, clients: make(map[*feedClient]struct{})}
}

func (h *hub) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("feed upgrade failed", zap.Error(err))
		return
	}

	client := &feedClient{
		conn:   conn,
		send:   make(chan remote.Event, 64),
		tables: make(map[domain.Collection]struct{}),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	go client.writeLoop()
	client.readLoop()

	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
	close(client.send)
	conn.Close()
}

// broadcast delivers one event to every connection watching the table. A
// client that cannot keep up has the event dropped rather than stalling the
// hub; the client's focus correction pass covers the gap.
func (h *hub) broadcast(ev remote.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if !client.watching(ev.Table) {
			continue
		}
		select {
		case client.send <- ev:
		default:
			h.log.Warn("dropping feed event for slow client",
				zap.String("table", ev.Table.String()))
		}
	}
}

type subscribeRequest struct {
	Tables []domain.Collection `json:"tables"`
}

// readLoop consumes subscribe frames until the connection drops.
func (c *feedClient) readLoop() {
	for {
		var req subscribeRequest
		if err := c.conn.ReadJSON(&req); err != nil {
			return
		}
		c.mu.Lock()
		c.tables = make(map[domain.Collection]struct{}, len(req.Tables))
		for _, t := range req.Tables {
			c.tables[t] = struct{}{}
		}
		c.mu.Unlock()
	}
}

func (c *feedClient) writeLoop() {
	for ev := range c.send {
		if err := c.conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

func (c *feedClient) watching(table domain.Collection) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.tables[table]
	return ok
}
