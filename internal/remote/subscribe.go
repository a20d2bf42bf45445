package remote

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"flocksync/internal/domain"
)

// Event actions, INSERT granularity being all the sync core depends on.
const (
	ActionInsert = "INSERT"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// Event is one change pushed over the feed.
type Event struct {
	Table  domain.Collection `json:"table"`
	Action string            `json:"action"`
	Record json.RawMessage   `json:"record"`
}

// Subscription is a handle on one duplex change-feed connection. The caller
// owns it: forgotten subscriptions are not garbage collected, Close must be
// called to release the connection.
type Subscription struct {
	key    string
	conn   *websocket.Conn
	events chan Event
	log    *zap.Logger

	closeOnce sync.Once
	done      chan struct{}
}

type subscribeFrame struct {
	Tables []domain.Collection `json:"tables"`
}

// Subscribe opens exactly one websocket connection keyed by key and asks the
// backend to push insert/update/delete events for the given tables.
// Subscription drops are not detected or retried here; the transport's own
// reconnect behavior is treated as opaque and the focus-triggered baseline
// refetch is the safety net for missed events.
func (c *Client) Subscribe(ctx context.Context, key string, tables []domain.Collection) (*Subscription, error) {
	wsURL, err := realtimeURL(c.baseURL)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Op: "subscribe", Err: err}
	}

	q := url.Values{}
	c.mu.RLock()
	if c.token != "" {
		q.Set("token", c.token)
	}
	c.mu.RUnlock()
	q.Set("key", key)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL+"?"+q.Encode(), nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		kind := KindNetwork
		if status == 401 || status == 403 {
			kind = KindAuth
		}
		return nil, &Error{Kind: kind, Op: "subscribe", Status: status, Err: err}
	}

	if err := conn.WriteJSON(subscribeFrame{Tables: tables}); err != nil {
		conn.Close()
		return nil, &Error{Kind: KindNetwork, Op: "subscribe", Err: err}
	}

	sub := &Subscription{
		key:    key,
		conn:   conn,
		events: make(chan Event, 64),
		log:    c.log.With(zap.String("subscription", key)),
		done:   make(chan struct{}),
	}
	go sub.readLoop()
	return sub, nil
}

// Events yields feed events until the connection drops or Close is called,
// after which the channel is closed.
func (s *Subscription) Events() <-chan Event { return s.events }

func (s *Subscription) Key() string { return s.key }

// Close releases the connection. Safe to call more than once.
func (s *Subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

func (s *Subscription) readLoop() {
	defer close(s.events)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.log.Warn("change feed closed", zap.Error(err))
			}
			return
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil || ev.Table == "" || ev.Action == "" {
			// Malformed payloads are logged and dropped; they never
			// crash the subscription.
			s.log.Warn("dropping malformed feed event", zap.ByteString("payload", data), zap.Error(err))
			continue
		}

		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

func realtimeURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/v1/realtime"
	return u.String(), nil
}
