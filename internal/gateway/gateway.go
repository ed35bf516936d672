// Package gateway wraps every outbound API call with credential checking,
// a single token-refresh attempt, and bearer-header attachment. It returns
// raw responses: interpreting bodies is the typed client's job.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"venturechat/internal/auth"
	"venturechat/internal/logging"
)

// RefreshPath is the cookie-authenticated token rotation endpoint.
const RefreshPath = "/users/token/refresh/"

// Config wires a Gateway. Client must share its cookie jar with Store so
// Set-Cookie rotations from login and refresh land where Token() reads.
type Config struct {
	BaseURL string
	Client  *http.Client
	Store   *auth.Store
	Guard   *auth.Guard

	// OnUnauthenticated, when set, is invoked exactly once per request that
	// fails with ErrUnauthenticated. Callers use it for navigation side
	// effects (for example, dropping the user back to the login screen);
	// the error itself is still returned.
	OnUnauthenticated func()
}

// Gateway issues authenticated requests against the forum API.
// It holds no mutable application state of its own and is safe for
// concurrent use; each call evaluates its own fresh read of the credential.
type Gateway struct {
	base     string
	client   *http.Client
	store    *auth.Store
	guard    *auth.Guard
	onUnauth func()
	log      *zap.Logger

	// Concurrent expiry detections share one in-flight refresh.
	refresh    singleflight.Group
	generation atomic.Uint64
}

// New builds a Gateway from cfg.
func New(cfg Config) *Gateway {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Gateway{
		base:     strings.TrimRight(cfg.BaseURL, "/"),
		client:   client,
		store:    cfg.Store,
		guard:    cfg.Guard,
		onUnauth: cfg.OnUnauthenticated,
		log:      logging.Get(logging.CategoryGateway),
	}
}

// Generation increments every time a refresh succeeds. The conversation
// controller compares generations to know the live channel's token went
// stale and must be re-dialed.
func (g *Gateway) Generation() uint64 {
	return g.generation.Load()
}

// Do issues an authenticated request for path (joined to the base URL).
// Contract:
//
//  1. No stored credential: no network call, ErrUnauthenticated.
//  2. Expired credential: exactly one refresh attempt; on failure,
//     ErrUnauthenticated with zero calls to the target endpoint.
//  3. Otherwise the request goes out with Authorization and JSON
//     content-type headers; caller headers override per key.
//
// The raw response is returned regardless of status code.
func (g *Gateway) Do(ctx context.Context, method, path string, body []byte, headers http.Header) (*http.Response, error) {
	reqID := uuid.NewString()

	token, ok := g.store.Token()
	if !ok {
		g.log.Debug("no credential", zap.String("req", reqID), zap.String("path", path))
		return nil, g.unauthenticated()
	}

	if g.guard.IsExpired(token) {
		refreshed, err := g.refreshToken(ctx)
		if err != nil {
			g.log.Warn("token refresh failed",
				zap.String("req", reqID), zap.String("path", path), zap.Error(err))
			return nil, g.unauthenticated()
		}
		token = refreshed
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.base+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	for key, values := range headers {
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	g.log.Debug("request complete",
		zap.String("req", reqID),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode))
	return resp, nil
}

// refreshToken performs the single cookie-authenticated rotation attempt.
// Simultaneous callers coalesce behind one in-flight request and share its
// outcome.
func (g *Gateway) refreshToken(ctx context.Context) (string, error) {
	result, err, _ := g.refresh.Do("refresh", func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.base+RefreshPath, nil)
		if err != nil {
			return "", err
		}

		resp, err := g.client.Do(req)
		if err != nil {
			return "", &TransportError{Err: err}
		}
		defer resp.Body.Close()

		payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return "", &TransportError{Err: err}
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return "", &HTTPError{Status: resp.StatusCode, Body: payload}
		}

		var rotated struct {
			Access string `json:"access"`
		}
		if err := json.Unmarshal(payload, &rotated); err != nil {
			return "", fmt.Errorf("decode refresh response: %w", err)
		}
		if rotated.Access == "" {
			return "", fmt.Errorf("refresh response carried no access token")
		}

		g.generation.Add(1)
		g.log.Info("access token rotated")
		return rotated.Access, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (g *Gateway) unauthenticated() error {
	if g.onUnauth != nil {
		g.onUnauth()
	}
	return ErrUnauthenticated
}
