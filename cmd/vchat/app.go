package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"venturechat/internal/auth"
	"venturechat/internal/config"
	"venturechat/internal/forum"
	"venturechat/internal/gateway"
)

const sessionFile = "session.json"

// session is the on-disk credential snapshot. The backend owns the cookie;
// we only persist its last known value between invocations.
type session struct {
	Access string `json:"access"`
}

// app bundles the wired client stack for one CLI invocation.
type app struct {
	cfg   config.Config
	jar   http.CookieJar
	store *auth.Store
	guard *auth.Guard
	gw    *gateway.Gateway
	api   *forum.Client
}

func newApp(cfg config.Config) (*app, error) {
	jar, err := auth.NewCookieJar()
	if err != nil {
		return nil, err
	}

	store, err := auth.NewStore(jar, cfg.API.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api url %q: %w", cfg.API.BaseURL, err)
	}

	a := &app{
		cfg:   cfg,
		jar:   jar,
		store: store,
		guard: auth.NewGuard(store),
	}
	a.restoreSession()

	httpClient := &http.Client{Jar: jar, Timeout: cfg.HTTPTimeout()}
	a.gw = gateway.New(gateway.Config{
		BaseURL: cfg.API.BaseURL,
		Client:  httpClient,
		Store:   store,
		Guard:   a.guard,
	})
	a.api = forum.NewClient(cfg.API.BaseURL, httpClient, a.gw)
	return a, nil
}

func sessionPath() (string, error) {
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, sessionFile), nil
}

// restoreSession seeds the cookie jar from the previous invocation.
func (a *app) restoreSession() {
	path, err := sessionPath()
	if err != nil {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var s session
	if err := json.Unmarshal(data, &s); err != nil || s.Access == "" {
		return
	}

	base, err := url.Parse(a.cfg.API.BaseURL)
	if err != nil {
		return
	}
	a.jar.SetCookies(base, []*http.Cookie{{
		Name:  auth.AccessTokenCookie,
		Value: s.Access,
		Path:  "/",
	}})
}

// persistSession writes the current token for the next invocation. A missing
// token clears the file.
func (a *app) persistSession() error {
	path, err := sessionPath()
	if err != nil {
		return err
	}

	token, ok := a.store.Token()
	if !ok {
		err := os.Remove(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(session{Access: token})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func (a *app) clearSession() error {
	base, err := url.Parse(a.cfg.API.BaseURL)
	if err == nil {
		a.jar.SetCookies(base, []*http.Cookie{{
			Name:   auth.AccessTokenCookie,
			Value:  "",
			Path:   "/",
			MaxAge: -1,
		}})
	}
	path, err := sessionPath()
	if err != nil {
		return err
	}
	rmErr := os.Remove(path)
	if errors.Is(rmErr, os.ErrNotExist) {
		return nil
	}
	return rmErr
}

// wsBaseURL derives the channel endpoint from config, falling back to the
// API host with a ws scheme.
func (a *app) wsBaseURL() string {
	if a.cfg.API.WSURL != "" {
		return a.cfg.API.WSURL
	}
	base := a.cfg.API.BaseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base
}

// friendlyError maps stack errors to actionable CLI messages.
func friendlyError(err error) error {
	if errors.Is(err, gateway.ErrUnauthenticated) {
		return errors.New("not logged in, run `vchat login` first")
	}
	var httpErr *gateway.HTTPError
	if errors.As(err, &httpErr) {
		return fmt.Errorf("server rejected the request (%d): %s", httpErr.Status, strings.TrimSpace(string(httpErr.Body)))
	}
	var transportErr *gateway.TransportError
	if errors.As(err, &transportErr) {
		return fmt.Errorf("cannot reach the server: %v", transportErr.Err)
	}
	return err
}
