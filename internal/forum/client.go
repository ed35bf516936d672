package forum

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"venturechat/internal/auth"
	"venturechat/internal/gateway"
	"venturechat/internal/logging"
)

const maxBodyBytes = 4 << 20

// Client is the typed forum API client. Authenticated calls flow through
// the gateway; login and the other anonymous endpoints use the plain HTTP
// client, which must share the gateway's cookie jar so session cookies land
// in one place.
type Client struct {
	base string
	http *http.Client
	gw   *gateway.Gateway
	log  *zap.Logger
}

// NewClient builds a Client. httpClient must carry the same jar as gw.
func NewClient(baseURL string, httpClient *http.Client, gw *gateway.Gateway) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: httpClient,
		gw:   gw,
		log:  logging.Get(logging.CategoryAPI),
	}
}

// Login authenticates with email and password. On success the backend sets
// the access and refresh cookies; the returned Session mirrors the body.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return Session{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/users/login/", bytes.NewReader(body))
	if err != nil {
		return Session{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Session{}, &gateway.TransportError{Err: err}
	}
	defer resp.Body.Close()

	payload, err := readBody(resp)
	if err != nil {
		return Session{}, err
	}

	var session Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return Session{}, fmt.Errorf("decode login response: %w", err)
	}
	c.log.Info("logged in", zap.String("email", session.Email))
	return session, nil
}

// Logout blacklists the refresh token server-side and ends the session.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.gw.Do(ctx, http.MethodPost, "/users/logout/", nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, err = readBody(resp)
	return err
}

// Register submits a registration request; the backend answers by mailing a
// verification link, so success carries no session.
func (c *Client) Register(ctx context.Context, email, password, firstName, lastName string) error {
	body, err := json.Marshal(map[string]string{
		"email":      email,
		"password":   password,
		"first_name": firstName,
		"last_name":  lastName,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/users/register/", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &gateway.TransportError{Err: err}
	}
	defer resp.Body.Close()
	_, err = readBody(resp)
	return err
}

// RequestPasswordReset asks the backend to mail a reset link.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	body, err := json.Marshal(map[string]string{"email": email})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/users/password/reset", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &gateway.TransportError{Err: err}
	}
	defer resp.Body.Close()
	_, err = readBody(resp)
	return err
}

// Startups lists the startup catalog, optionally filtered by a search
// string matched against name, location and description server-side.
func (c *Client) Startups(ctx context.Context, search string) ([]Startup, error) {
	path := "/startups/"
	if search != "" {
		path += "?search=" + url.QueryEscape(search)
	}

	var startups []Startup
	if err := c.getJSON(ctx, path, &startups); err != nil {
		return nil, err
	}
	return startups, nil
}

// Startup fetches one catalog entry by id.
func (c *Client) Startup(ctx context.Context, id int64) (Startup, error) {
	var startup Startup
	err := c.getJSON(ctx, fmt.Sprintf("/startups/%d", id), &startup)
	return startup, err
}

// Conversations lists the caller's rooms.
func (c *Client) Conversations(ctx context.Context) ([]Room, error) {
	var rooms []Room
	if err := c.getJSON(ctx, "/communications/conversations", &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// Messages returns the ordered history of a room.
func (c *Client) Messages(ctx context.Context, roomID OID) ([]Message, error) {
	var messages []Message
	path := fmt.Sprintf("/communications/conversations/%s/messages", roomID)
	if err := c.getJSON(ctx, path, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// Message fetches a single message by id; the notification channel only
// announces ids, the payload comes from here.
func (c *Client) Message(ctx context.Context, id OID) (Message, error) {
	var message Message
	err := c.getJSON(ctx, "/communications/messages/"+string(id), &message)
	return message, err
}

// SendMessage posts a new message authored by identity. Anything but 201
// is surfaced as an HTTPError; the local sequence is the caller's to
// mutate only on success.
func (c *Client) SendMessage(ctx context.Context, roomID OID, author auth.Identity, content string) (Message, error) {
	body, err := json.Marshal(map[string]any{
		"room":    roomID,
		"author":  author,
		"content": content,
	})
	if err != nil {
		return Message{}, err
	}

	resp, err := c.gw.Do(ctx, http.MethodPost, "/communications/messages/send", body, nil)
	if err != nil {
		return Message{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Message{}, &gateway.TransportError{Err: err}
	}
	if resp.StatusCode != http.StatusCreated {
		return Message{}, &gateway.HTTPError{Status: resp.StatusCode, Body: payload}
	}

	var message Message
	if err := unmarshalPossiblyNested(payload, &message); err != nil {
		return Message{}, fmt.Errorf("decode sent message: %w", err)
	}
	if message.Room == "" {
		message.Room = roomID
	}
	return message, nil
}

// CreateConversation opens a room between two participants. The forum only
// pairs an investor with a startup; the check runs client-side before any
// round trip.
func (c *Client) CreateConversation(ctx context.Context, a, b auth.Identity) (Room, error) {
	if !a.Namespace.Valid() || !b.Namespace.Valid() || a.Namespace == b.Namespace {
		return Room{}, fmt.Errorf("a room pairs one investor with one startup, got %q and %q", a.Namespace, b.Namespace)
	}

	body, err := json.Marshal(map[string]any{
		"participants": []auth.Identity{a, b},
	})
	if err != nil {
		return Room{}, err
	}

	resp, err := c.gw.Do(ctx, http.MethodPost, "/communications/conversations/create", body, nil)
	if err != nil {
		return Room{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Room{}, &gateway.TransportError{Err: err}
	}
	if resp.StatusCode != http.StatusCreated {
		return Room{}, &gateway.HTTPError{Status: resp.StatusCode, Body: payload}
	}

	var room Room
	if err := unmarshalPossiblyNested(payload, &room); err != nil {
		return Room{}, fmt.Errorf("decode created room: %w", err)
	}
	return room, nil
}

// UserInvestors lists the investor cabinets a user holds.
func (c *Client) UserInvestors(ctx context.Context, userID int64) ([]InvestorCabinet, error) {
	var cabinets []InvestorCabinet
	err := c.getJSON(ctx, fmt.Sprintf("/users/%d/investors/", userID), &cabinets)
	return cabinets, err
}

// UserStartups lists the startup cabinets a user holds.
func (c *Client) UserStartups(ctx context.Context, userID int64) ([]StartupCabinet, error) {
	var cabinets []StartupCabinet
	err := c.getJSON(ctx, fmt.Sprintf("/users/%d/startups/", userID), &cabinets)
	return cabinets, err
}

// SelectNamespace switches the caller's active cabinet. The backend bakes
// the selection into freshly issued tokens.
func (c *Client) SelectNamespace(ctx context.Context, kind auth.Namespace, id int64) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown namespace kind %q", kind)
	}

	body, err := json.Marshal(map[string]any{
		"name_space_id":   id,
		"name_space_name": kind,
	})
	if err != nil {
		return err
	}

	resp, err := c.gw.Do(ctx, http.MethodPost, "/users/select-namespace/", body, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, err = readBody(resp)
	return err
}

// getJSON issues an authenticated GET and decodes the 2xx body into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.gw.Do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := readBody(resp)
	if err != nil {
		return err
	}
	if err := unmarshalPossiblyNested(payload, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// readBody drains a response, mapping non-2xx statuses to HTTPError with
// the body passed through unmodified.
func readBody(resp *http.Response) ([]byte, error) {
	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &gateway.TransportError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &gateway.HTTPError{Status: resp.StatusCode, Body: payload}
	}
	return payload, nil
}

// unmarshalPossiblyNested tolerates the backend's double-encoded replies:
// some list endpoints return a JSON string that itself contains JSON.
func unmarshalPossiblyNested(payload []byte, out any) error {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err == nil {
			return json.Unmarshal([]byte(inner), out)
		}
	}
	return json.Unmarshal(trimmed, out)
}
