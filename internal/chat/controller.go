// Package chat implements the conversation controller: per-room state
// machine that loads history, follows the live notification channel, and
// submits outgoing messages. One controller owns one room's in-memory
// message sequence for the lifetime of an open conversation view.
package chat

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"venturechat/internal/auth"
	"venturechat/internal/forum"
	"venturechat/internal/gateway"
	"venturechat/internal/logging"
	"venturechat/internal/notify"
)

// State of the conversation view. Transitions:
// Closed → Loading → Idle ⇄ Sending, terminal Closed.
type State int

const (
	StateClosed State = iota
	StateLoading
	StateIdle
	StateSending
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateLoading:
		return "loading"
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	default:
		return "unknown"
	}
}

var (
	// ErrNotAuthorized means the caller has no chat-authoring identity;
	// no network call was made.
	ErrNotAuthorized = errors.New("no active cabinet identity for authoring")

	// ErrSendInFlight rejects a second send while one is outstanding.
	ErrSendInFlight = errors.New("a send is already in flight")

	// ErrClosed rejects operations on a closed conversation.
	ErrClosed = errors.New("conversation is closed")
)

// UpdateKind tags controller updates delivered to the owning view.
type UpdateKind int

const (
	UpdateReady         UpdateKind = iota // history load finished, view usable
	UpdateAppended                        // a message joined the sequence
	UpdateHistoryFailed                   // history fetch failed, sequence empty
	UpdateSendFailed                      // outgoing message rejected
)

// Update is one view-facing notification from the controller.
type Update struct {
	Kind    UpdateKind
	Message forum.Message
	Err     error
}

// Config wires a Controller to its room and collaborators.
type Config struct {
	Room      forum.Room
	API       *forum.Client
	Guard     *auth.Guard
	Store     *auth.Store
	Gateway   *gateway.Gateway
	WSBaseURL string
}

// Controller drives one open conversation.
type Controller struct {
	room   forum.Room
	api    *forum.Client
	guard  *auth.Guard
	store  *auth.Store
	gw     *gateway.Gateway
	wsBase string
	log    *zap.Logger

	mu       sync.Mutex
	state    State
	messages []forum.Message
	seen     map[forum.OID]struct{}
	channel  *notify.Channel
	chanGen  uint64

	ctx    context.Context
	cancel context.CancelFunc

	updates chan Update
}

// New returns a closed controller for the given room. Call Open to start.
func New(cfg Config) *Controller {
	return &Controller{
		room:    cfg.Room,
		api:     cfg.API,
		guard:   cfg.Guard,
		store:   cfg.Store,
		gw:      cfg.Gateway,
		wsBase:  cfg.WSBaseURL,
		log:     logging.Get(logging.CategoryChat),
		state:   StateClosed,
		seen:    make(map[forum.OID]struct{}),
		updates: make(chan Update, 64),
	}
}

// Updates is the stream the owning view consumes. Never closed; the view
// stops reading once it has seen the conversation close.
func (c *Controller) Updates() <-chan Update {
	return c.updates
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Messages returns a snapshot of the append-only sequence.
func (c *Controller) Messages() []forum.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]forum.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Room returns the conversation this controller drives.
func (c *Controller) Room() forum.Room {
	return c.room
}

// Open loads history and establishes the live channel. A failed history
// fetch is non-fatal: the conversation comes up Idle with an empty
// sequence and stays usable for new messages.
func (c *Controller) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateClosed {
		c.mu.Unlock()
		return errors.New("conversation already open")
	}
	c.state = StateLoading
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	go c.dialChannel()

	history, err := c.api.Messages(c.ctx, c.room.ID)

	c.mu.Lock()
	if c.state == StateClosed {
		// Closed while loading; the late result must not touch freed state.
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		c.log.Warn("history fetch failed, starting empty",
			zap.String("room", string(c.room.ID)), zap.Error(err))
		c.state = StateIdle
		c.mu.Unlock()
		c.emit(Update{Kind: UpdateHistoryFailed, Err: err})
		c.emit(Update{Kind: UpdateReady})
		return nil
	}

	for _, msg := range history {
		c.appendLocked(msg)
	}
	c.state = StateIdle
	c.mu.Unlock()

	c.emit(Update{Kind: UpdateReady})
	c.maybeRedial()
	return nil
}

// Send submits one outgoing message. Exactly one send may be in flight per
// conversation; the view must not offer the action while Sending.
func (c *Controller) Send(ctx context.Context, text string) error {
	c.mu.Lock()
	switch c.state {
	case StateClosed:
		c.mu.Unlock()
		return ErrClosed
	case StateSending:
		c.mu.Unlock()
		return ErrSendInFlight
	}
	c.state = StateSending
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.state == StateSending {
			c.state = StateIdle
		}
		c.mu.Unlock()
	}()

	identity, ok := c.guard.CurrentIdentity()
	if !ok {
		// Aborted locally; no round trip is wasted on a doomed request.
		c.emit(Update{Kind: UpdateSendFailed, Err: ErrNotAuthorized})
		return ErrNotAuthorized
	}

	msg, err := c.api.SendMessage(ctx, c.room.ID, identity, text)
	c.maybeRedial()
	if err != nil {
		c.emit(Update{Kind: UpdateSendFailed, Err: err})
		return err
	}

	c.append(msg)
	return nil
}

// Close tears the conversation down: the live channel stops, late
// responses are discarded, and the in-memory sequence is abandoned.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	channel := c.channel
	c.channel = nil
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if channel != nil {
		channel.Close()
	}
}

// append adds a message unless the conversation closed or the id was
// already seen. Duplicate delivery happens legitimately: a sent message
// comes back on the 201 response and again over the channel.
func (c *Controller) append(msg forum.Message) {
	c.mu.Lock()
	ok := c.appendLocked(msg)
	c.mu.Unlock()
	if ok {
		c.emit(Update{Kind: UpdateAppended, Message: msg})
	}
}

func (c *Controller) appendLocked(msg forum.Message) bool {
	if c.state == StateClosed {
		return false
	}
	if msg.ID != "" {
		if _, dup := c.seen[msg.ID]; dup {
			return false
		}
		c.seen[msg.ID] = struct{}{}
	}
	c.messages = append(c.messages, msg)
	return true
}

// dialChannel opens the notification channel with the current token and
// starts its pump. Runs concurrently with the history fetch.
func (c *Controller) dialChannel() {
	// Generation before token: if a refresh lands in between, the stale
	// generation forces a redundant redial instead of a stale connection.
	gen := c.gw.Generation()
	token, ok := c.store.Token()
	if !ok {
		c.log.Warn("no credential for notification channel")
		return
	}
	channel, err := notify.Dial(c.ctx, c.wsBase, token)
	if err != nil {
		c.log.Warn("notification channel dial failed", zap.Error(err))
		return
	}

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		channel.Close()
		return
	}
	if c.channel != nil {
		c.channel.Close()
	}
	c.channel = channel
	c.chanGen = gen
	c.mu.Unlock()

	go c.pump(channel)

	// A refresh may have landed while the dial was in flight; the stale
	// generation self-corrects here instead of waiting for the next call.
	c.maybeRedial()
}

// pump fetches each announced message through the gateway and appends it.
// It exits when its channel's event stream closes.
func (c *Controller) pump(channel *notify.Channel) {
	for ev := range channel.Events() {
		id := ev.ResolveMessageID()
		if id == "" {
			continue
		}

		msg, err := c.api.Message(c.ctx, forum.OID(id))
		c.maybeRedial()
		if err != nil {
			c.log.Warn("announced message fetch failed",
				zap.String("message_id", id), zap.Error(err))
			continue
		}
		c.append(msg)
	}
}

// maybeRedial re-opens the live channel after the gateway rotated the
// token. The channel carries the token in its path, so a refresh leaves it
// authenticated as a stale session; re-dialing with the fresh credential
// is the reconnect policy.
func (c *Controller) maybeRedial() {
	c.mu.Lock()
	stale := c.state != StateClosed && c.channel != nil && c.chanGen != c.gw.Generation()
	c.mu.Unlock()

	if stale {
		c.log.Info("token rotated, re-dialing notification channel")
		c.dialChannel()
	}
}

// emit delivers an update without ever blocking controller progress.
func (c *Controller) emit(u Update) {
	select {
	case c.updates <- u:
	default:
		c.log.Warn("update dropped, view not draining", zap.Int("kind", int(u.Kind)))
	}
}
