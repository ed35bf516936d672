package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venturechat/internal/config"
	"venturechat/internal/gateway"
)

func TestRootCommandWiring(t *testing.T) {
	want := []string{
		"login", "logout", "register", "reset-password", "whoami",
		"startups", "rooms", "chat", "contact", "cabinets", "select-cabinet",
	}

	have := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		assert.True(t, have[name], "missing subcommand %q", name)
	}
}

func TestFriendlyError(t *testing.T) {
	err := friendlyError(gateway.ErrUnauthenticated)
	assert.Contains(t, err.Error(), "vchat login")

	err = friendlyError(&gateway.HTTPError{Status: 400, Body: []byte(`{"detail":"bad"}`)})
	assert.Contains(t, err.Error(), "400")

	err = friendlyError(&gateway.TransportError{Err: errors.New("connection refused")})
	assert.Contains(t, err.Error(), "connection refused")

	plain := errors.New("something else")
	assert.Equal(t, plain, friendlyError(plain))
}

func TestWSBaseURLDerivation(t *testing.T) {
	cfg := config.Default()
	cfg.API.BaseURL = "https://forum.example.com"
	cfg.API.WSURL = ""

	a, err := newApp(cfg)
	require.NoError(t, err)
	assert.Equal(t, "wss://forum.example.com", a.wsBaseURL())

	cfg.API.WSURL = "ws://elsewhere:9000"
	a, err = newApp(cfg)
	require.NoError(t, err)
	assert.Equal(t, "ws://elsewhere:9000", a.wsBaseURL())
}
