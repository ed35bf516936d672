// Package notify maintains the live notification channel: a WebSocket the
// backend uses to announce newly created message ids. The channel is
// independent of the request gateway; it carries the access token in its
// path and is re-dialed by its owner after a token refresh.
package notify

import (
	"context"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"venturechat/internal/logging"
)

// legacyMarker is the substring convention older backends embed the message
// id behind inside the human-readable notification text.
const legacyMarker = "Message: "

// Event is one inbound notification frame. message_id is the authoritative
// field; Message exists for display and for legacy frames that carry the id
// only inside the text.
type Event struct {
	Type           string `json:"type"`
	Message        string `json:"message"`
	NotificationID string `json:"notification_id"`
	MessageID      string `json:"message_id"`
}

// ResolveMessageID returns the announced message id, falling back to the
// legacy marker extraction when the structured field is absent. Empty means
// the frame announced nothing fetchable.
func (e Event) ResolveMessageID() string {
	if e.MessageID != "" {
		return e.MessageID
	}
	_, rest, found := strings.Cut(e.Message, legacyMarker)
	if !found {
		return ""
	}
	id, _, _ := strings.Cut(rest, " ")
	return id
}

type ack struct {
	Type           string `json:"type"`
	NotificationID string `json:"notification_id"`
}

// Channel owns one WebSocket connection and its read pump. Events are
// delivered on Events() until Close; frames arriving after Close are
// dropped, never delivered.
type Channel struct {
	conn   *websocket.Conn
	events chan Event
	done   chan struct{}
	once   sync.Once
	log    *zap.Logger
}

// Dial opens the notification channel for the given access token.
// wsBaseURL is e.g. "ws://localhost:8000".
func Dial(ctx context.Context, wsBaseURL, token string) (*Channel, error) {
	endpoint := strings.TrimRight(wsBaseURL, "/") + "/ws/notifications/" + token

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	ch := &Channel{
		conn:   conn,
		events: make(chan Event, 16),
		done:   make(chan struct{}),
		log:    logging.Get(logging.CategoryNotify),
	}
	go ch.readPump()
	return ch, nil
}

// Events returns the inbound event stream. The channel is closed when the
// connection drops or Close is called.
func (c *Channel) Events() <-chan Event {
	return c.events
}

// Close stops the read pump and closes the socket. Idempotent.
func (c *Channel) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// readPump reads frames until the connection dies or Close is called.
// Notifications carrying an id are acknowledged so the backend stops
// redelivering them. The pump is the connection's only writer.
func (c *Channel) readPump() {
	defer close(c.events)

	for {
		var ev Event
		if err := c.conn.ReadJSON(&ev); err != nil {
			select {
			case <-c.done:
				// Deliberate close, not an error.
			default:
				c.log.Warn("notification channel dropped", zap.Error(err))
			}
			return
		}

		if ev.MessageID == "" && strings.Contains(ev.Message, legacyMarker) {
			c.log.Debug("legacy notification frame, extracting id from text")
		}

		if ev.NotificationID != "" {
			if err := c.conn.WriteJSON(ack{Type: "notification_ack", NotificationID: ev.NotificationID}); err != nil {
				c.log.Warn("notification ack failed", zap.Error(err))
			}
		}

		select {
		case c.events <- ev:
		case <-c.done:
			return
		}
	}
}
