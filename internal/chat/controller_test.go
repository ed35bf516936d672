package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venturechat/internal/auth"
	"venturechat/internal/forum"
	"venturechat/internal/gateway"
	"venturechat/internal/notify"
)

// harness is a fake backend: REST endpoints plus the notification socket,
// all on one httptest server.
type harness struct {
	srv *httptest.Server

	mu       sync.Mutex
	history  []forum.Message
	byID     map[forum.OID]forum.Message
	conns    []*websocket.Conn
	wsTokens []string

	historyStatus int
	sendDelay     time.Duration
	sendCalls     atomic.Int32
	refreshCalls  atomic.Int32
	rotatedToken  string
}

func signToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":         int64(7),
		"name_space_id":   int64(42),
		"name_space_name": "investor",
		"exp":             exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		byID:          make(map[forum.OID]forum.Message),
		historyStatus: http.StatusOK,
	}
	h.rotatedToken = signToken(t, time.Now().Add(time.Hour))

	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()

	mux.HandleFunc(gateway.RefreshPath, func(w http.ResponseWriter, r *http.Request) {
		h.refreshCalls.Add(1)
		http.SetCookie(w, &http.Cookie{Name: auth.AccessTokenCookie, Value: h.rotatedToken, Path: "/"})
		_ = json.NewEncoder(w).Encode(map[string]string{"access": h.rotatedToken})
	})

	mux.HandleFunc("/communications/conversations/", func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.historyStatus != http.StatusOK {
			w.WriteHeader(h.historyStatus)
			return
		}
		_ = json.NewEncoder(w).Encode(h.history)
	})

	mux.HandleFunc("/communications/messages/send", func(w http.ResponseWriter, r *http.Request) {
		h.sendCalls.Add(1)
		if h.sendDelay > 0 {
			time.Sleep(h.sendDelay)
		}

		var sent struct {
			Room    forum.OID     `json:"room"`
			Author  auth.Identity `json:"author"`
			Content string        `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&sent); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		msg := forum.Message{
			ID:      forum.OID(fmt.Sprintf("sent-%d", h.sendCalls.Load())),
			Room:    sent.Room,
			Author:  sent.Author,
			Content: sent.Content,
		}
		h.mu.Lock()
		h.byID[msg.ID] = msg
		h.mu.Unlock()

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(msg)
	})

	mux.HandleFunc("/communications/messages/", func(w http.ResponseWriter, r *http.Request) {
		id := forum.OID(strings.TrimPrefix(r.URL.Path, "/communications/messages/"))
		h.mu.Lock()
		msg, ok := h.byID[id]
		h.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(msg)
	})

	mux.HandleFunc("/ws/notifications/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.mu.Lock()
		h.conns = append(h.conns, conn)
		h.wsTokens = append(h.wsTokens, strings.TrimPrefix(r.URL.Path, "/ws/notifications/"))
		h.mu.Unlock()
		// Keep the connection until the client hangs up; acks land here too.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	h.srv = httptest.NewServer(mux)
	t.Cleanup(func() {
		h.mu.Lock()
		conns := h.conns
		h.mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
		h.srv.Close()
	})
	return h
}

func (h *harness) addKnownMessage(msg forum.Message) {
	h.mu.Lock()
	h.byID[msg.ID] = msg
	h.mu.Unlock()
}

// announce pushes a notification frame over the most recent socket.
func (h *harness) announce(t *testing.T, ev notify.Event) {
	t.Helper()
	h.mu.Lock()
	require.NotEmpty(t, h.conns, "no websocket connection established")
	conn := h.conns[len(h.conns)-1]
	h.mu.Unlock()
	require.NoError(t, conn.WriteJSON(ev))
}

func (h *harness) connCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *harness) lastWSToken() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.wsTokens) == 0 {
		return ""
	}
	return h.wsTokens[len(h.wsTokens)-1]
}

func newController(t *testing.T, h *harness, seedToken string) *Controller {
	t.Helper()

	jar, err := auth.NewCookieJar()
	require.NoError(t, err)
	if seedToken != "" {
		base, err := url.Parse(h.srv.URL)
		require.NoError(t, err)
		jar.SetCookies(base, []*http.Cookie{{Name: auth.AccessTokenCookie, Value: seedToken, Path: "/"}})
	}

	store, err := auth.NewStore(jar, h.srv.URL)
	require.NoError(t, err)
	guard := auth.NewGuard(store)

	httpClient := &http.Client{Jar: jar, Timeout: 5 * time.Second}
	gw := gateway.New(gateway.Config{
		BaseURL: h.srv.URL,
		Client:  httpClient,
		Store:   store,
		Guard:   guard,
	})

	ctrl := New(Config{
		Room:      forum.Room{ID: "r1", Name: "Deal room"},
		API:       forum.NewClient(h.srv.URL, httpClient, gw),
		Guard:     guard,
		Store:     store,
		Gateway:   gw,
		WSBaseURL: "ws" + strings.TrimPrefix(h.srv.URL, "http"),
	})
	t.Cleanup(ctrl.Close)
	return ctrl
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestOpenLoadsHistory(t *testing.T) {
	h := newHarness(t)
	h.history = []forum.Message{
		{ID: "m1", Room: "r1", Content: "hello"},
		{ID: "m2", Room: "r1", Content: "world"},
	}

	ctrl := newController(t, h, signToken(t, time.Now().Add(time.Hour)))
	require.Equal(t, StateClosed, ctrl.State())

	require.NoError(t, ctrl.Open(context.Background()))

	assert.Equal(t, StateIdle, ctrl.State())
	msgs := ctrl.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, forum.OID("m1"), msgs[0].ID)
	assert.Equal(t, forum.OID("m2"), msgs[1].ID)
}

func TestOpenHistoryFailureIsNonFatal(t *testing.T) {
	h := newHarness(t)
	h.historyStatus = http.StatusInternalServerError

	ctrl := newController(t, h, signToken(t, time.Now().Add(time.Hour)))
	require.NoError(t, ctrl.Open(context.Background()))

	assert.Equal(t, StateIdle, ctrl.State())
	assert.Empty(t, ctrl.Messages())

	// Conversation stays usable: sends still go through.
	require.NoError(t, ctrl.Send(context.Background(), "still works"))
	msgs := ctrl.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "still works", msgs[0].Content)
}

func TestChannelAnnouncedMessagesAppend(t *testing.T) {
	h := newHarness(t)
	h.history = []forum.Message{{ID: "m1", Room: "r1", Content: "old"}}
	h.addKnownMessage(forum.Message{ID: "m2", Room: "r1", Content: "live one"})
	h.addKnownMessage(forum.Message{ID: "m3", Room: "r1", Content: "live two"})

	ctrl := newController(t, h, signToken(t, time.Now().Add(time.Hour)))
	require.NoError(t, ctrl.Open(context.Background()))

	waitFor(t, func() bool { return h.connCount() >= 1 }, "websocket connection")

	h.announce(t, notify.Event{Type: "chat_message", MessageID: "m2", NotificationID: "n1"})
	h.announce(t, notify.Event{Message: "Message: m3 was sent by startup with id 5"})

	waitFor(t, func() bool { return len(ctrl.Messages()) == 3 }, "channel appends")

	msgs := ctrl.Messages()
	assert.Equal(t, forum.OID("m1"), msgs[0].ID)
	assert.Equal(t, forum.OID("m2"), msgs[1].ID)
	assert.Equal(t, forum.OID("m3"), msgs[2].ID)
}

func TestDuplicateAnnouncementNotDoubled(t *testing.T) {
	h := newHarness(t)
	h.addKnownMessage(forum.Message{ID: "m2", Room: "r1", Content: "once"})

	ctrl := newController(t, h, signToken(t, time.Now().Add(time.Hour)))
	require.NoError(t, ctrl.Open(context.Background()))
	waitFor(t, func() bool { return h.connCount() >= 1 }, "websocket connection")

	h.announce(t, notify.Event{MessageID: "m2"})
	h.announce(t, notify.Event{MessageID: "m2"})
	h.announce(t, notify.Event{MessageID: "m2"})

	waitFor(t, func() bool { return len(ctrl.Messages()) == 1 }, "first append")

	// Give redeliveries a chance to (wrongly) land.
	time.Sleep(150 * time.Millisecond)
	assert.Len(t, ctrl.Messages(), 1, "redelivered id must not append twice")
}

func TestSendAppendsReturnedMessage(t *testing.T) {
	h := newHarness(t)

	ctrl := newController(t, h, signToken(t, time.Now().Add(time.Hour)))
	require.NoError(t, ctrl.Open(context.Background()))

	require.NoError(t, ctrl.Send(context.Background(), "hi"))

	msgs := ctrl.Messages()
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	assert.Equal(t, "hi", last.Content)
	assert.Equal(t, forum.OID("r1"), last.Room)
	assert.Equal(t, StateIdle, ctrl.State())
}

func TestSendEchoOverChannelNotDoubled(t *testing.T) {
	h := newHarness(t)

	ctrl := newController(t, h, signToken(t, time.Now().Add(time.Hour)))
	require.NoError(t, ctrl.Open(context.Background()))
	waitFor(t, func() bool { return h.connCount() >= 1 }, "websocket connection")

	require.NoError(t, ctrl.Send(context.Background(), "hi"))
	require.Len(t, ctrl.Messages(), 1)

	// The backend also announces the message we just sent.
	h.announce(t, notify.Event{MessageID: "sent-1", NotificationID: "n1"})

	time.Sleep(150 * time.Millisecond)
	assert.Len(t, ctrl.Messages(), 1, "201 echo plus channel copy is one message")
}

func TestSecondSendRejectedWhileInFlight(t *testing.T) {
	h := newHarness(t)
	h.sendDelay = 200 * time.Millisecond

	ctrl := newController(t, h, signToken(t, time.Now().Add(time.Hour)))
	require.NoError(t, ctrl.Open(context.Background()))

	firstDone := make(chan error, 1)
	go func() { firstDone <- ctrl.Send(context.Background(), "first") }()

	waitFor(t, func() bool { return ctrl.State() == StateSending }, "send in flight")

	err := ctrl.Send(context.Background(), "second")
	assert.ErrorIs(t, err, ErrSendInFlight)

	require.NoError(t, <-firstDone)
	assert.Equal(t, int32(1), h.sendCalls.Load(), "rejected send must not reach the network")
}

func TestSendWithoutIdentityAbortsLocally(t *testing.T) {
	h := newHarness(t)

	ctrl := newController(t, h, "")
	require.NoError(t, ctrl.Open(context.Background()))

	err := ctrl.Send(context.Background(), "doomed")

	assert.ErrorIs(t, err, ErrNotAuthorized)
	assert.Equal(t, int32(0), h.sendCalls.Load())
	assert.Empty(t, ctrl.Messages())
}

func TestCloseDiscardsLateEvents(t *testing.T) {
	h := newHarness(t)
	h.addKnownMessage(forum.Message{ID: "late", Room: "r1", Content: "too late"})

	ctrl := newController(t, h, signToken(t, time.Now().Add(time.Hour)))
	require.NoError(t, ctrl.Open(context.Background()))
	waitFor(t, func() bool { return h.connCount() >= 1 }, "websocket connection")

	ctrl.Close()
	assert.Equal(t, StateClosed, ctrl.State())

	assert.ErrorIs(t, ctrl.Send(context.Background(), "nope"), ErrClosed)
	assert.Empty(t, ctrl.Messages())
}

func TestRefreshRotatesChannelToken(t *testing.T) {
	h := newHarness(t)
	h.addKnownMessage(forum.Message{ID: "m2", Room: "r1", Content: "after refresh"})

	// Seed an expired token: the history fetch forces a refresh.
	ctrl := newController(t, h, signToken(t, time.Now().Add(-time.Minute)))
	require.NoError(t, ctrl.Open(context.Background()))

	assert.GreaterOrEqual(t, h.refreshCalls.Load(), int32(1))

	// Whatever the dial/refresh interleaving, the surviving channel must
	// carry the rotated credential.
	waitFor(t, func() bool { return h.lastWSToken() == h.rotatedToken }, "channel on rotated token")

	h.announce(t, notify.Event{MessageID: "m2"})
	waitFor(t, func() bool { return len(ctrl.Messages()) == 1 }, "append over rotated channel")
}

func TestAppendCountOrderIndependent(t *testing.T) {
	h := newHarness(t)
	h.history = []forum.Message{
		{ID: "h1", Room: "r1"}, {ID: "h2", Room: "r1"}, {ID: "h3", Room: "r1"},
	}
	for i := 1; i <= 4; i++ {
		h.addKnownMessage(forum.Message{ID: forum.OID(fmt.Sprintf("c%d", i)), Room: "r1"})
	}

	ctrl := newController(t, h, signToken(t, time.Now().Add(time.Hour)))
	require.NoError(t, ctrl.Open(context.Background()))
	waitFor(t, func() bool { return h.connCount() >= 1 }, "websocket connection")

	for i := 1; i <= 4; i++ {
		h.announce(t, notify.Event{MessageID: fmt.Sprintf("c%d", i)})
	}

	// N channel + M history arrivals, any interleaving: length N+M.
	waitFor(t, func() bool { return len(ctrl.Messages()) == 7 }, "all appends")
	assert.Len(t, ctrl.Messages(), 7)
}
