package main

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/kvgate/internal/auth"
	"github.com/2389/kvgate/internal/config"
)

// lastLine returns the final non-empty line of CLI output.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func initConfig(t *testing.T, extra ...string) (string, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	var out bytes.Buffer
	args := append([]string{"init", "--config", path}, extra...)
	require.NoError(t, run(context.Background(), args, &out))
	return path, lastLine(out.String())
}

func TestRunInit_WritesLoadableConfig(t *testing.T) {
	path, printed := initConfig(t, "--enable-auth", "--addr", "127.0.0.1:9999")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Authentication.Enabled)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.HTTPAddr)
	assert.Len(t, cfg.Authentication.SecretKey, 64)
	assert.Equal(t, cfg.Authentication.RootToken, printed)

	gate := auth.NewGate(true, cfg.Authentication.SecretKey)
	assert.NoError(t, gate.Verify(cfg.Authentication.RootToken))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestRunInit_AuthDisabledByDefault(t *testing.T) {
	path, _ := initConfig(t)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Authentication.Enabled)
	assert.NotEmpty(t, cfg.Authentication.SecretKey)
	assert.NotEmpty(t, cfg.Authentication.RootToken)
	assert.Equal(t, config.DefaultHTTPAddr, cfg.Server.HTTPAddr)
}

func TestRunInit_RefusesOverwrite(t *testing.T) {
	path, _ := initConfig(t)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	var out bytes.Buffer
	err = run(context.Background(), []string{"init", "--config", path}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRunInit_ForceOverwrites(t *testing.T) {
	path, _ := initConfig(t)
	first, err := config.Load(path)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"init", "--config", path, "--force"}, &out))

	second, err := config.Load(path)
	require.NoError(t, err)
	assert.NotEqual(t, first.Authentication.SecretKey, second.Authentication.SecretKey)

	// tokens from the old secret no longer verify
	gate := auth.NewGate(true, second.Authentication.SecretKey)
	assert.Error(t, gate.Verify(first.Authentication.RootToken))
}

func TestRunInit_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kvgate.toml")
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"init", "--config", path, "--enable-auth"}, &out))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[authentication]")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Authentication.Enabled)
}

func TestRunToken(t *testing.T) {
	path, _ := initConfig(t, "--enable-auth")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	gate := auth.NewGate(true, cfg.Authentication.SecretKey)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"token", "--config", path}, &out))
	token := lastLine(out.String())
	assert.NoError(t, gate.Verify(token))

	out.Reset()
	require.NoError(t, run(context.Background(), []string{"token", "--config", path, "--expires", "1h"}, &out))
	assert.NoError(t, gate.Verify(lastLine(out.String())))
}

func TestRunToken_RejectsPastExpiry(t *testing.T) {
	path, _ := initConfig(t)

	var out bytes.Buffer
	err := run(context.Background(), []string{"token", "--config", path, "--expires", "-1h"}, &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrInvalidExpiry)
}

func TestRunToken_MissingConfig(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"token", "--config", filepath.Join(t.TempDir(), "nope.yaml")}, &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunHealth(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(int(status.Load()))
		_, _ = w.Write([]byte("OK"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := config.Default()
	cfg.Server.HTTPAddr = srv.Listener.Addr().String()
	require.NoError(t, config.Save(path, cfg))

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"health", "--config", path}, &out))
	assert.Equal(t, "healthy", lastLine(out.String()))

	status.Store(http.StatusServiceUnavailable)
	err := run(context.Background(), []string{"health", "--config", path}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestHealthHost(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{addr: ":8080", want: "127.0.0.1:8080"},
		{addr: "0.0.0.0:8080", want: "127.0.0.1:8080"},
		{addr: "[::]:8080", want: "127.0.0.1:8080"},
		{addr: "127.0.0.1:8080", want: "127.0.0.1:8080"},
		{addr: "kv.internal:9000", want: "kv.internal:9000"},
		{addr: "[::1]:8080", want: "[::1]:8080"},
	}

	for _, tt := range tests {
		cfg := config.Default()
		cfg.Server.HTTPAddr = tt.addr
		assert.Equal(t, tt.want, healthHost(cfg), tt.addr)
	}

	cfg := config.Default()
	cfg.Tailscale.Enabled = true
	assert.Equal(t, config.DefaultTailscaleHost, healthHost(cfg))
}

func TestRunHealth_WildcardAddr(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	}))
	defer srv.Close()

	_, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := config.Default()
	cfg.Server.HTTPAddr = ":" + port
	require.NoError(t, config.Save(path, cfg))

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"health", "--config", path}, &out))
	assert.Equal(t, "healthy", lastLine(out.String()))
}

func TestRun_UnknownCommand(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"frobnicate"}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestRun_NoCommand(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), nil, &out)
	require.Error(t, err)
	assert.Contains(t, out.String(), "Usage: kvgate")
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv(configEnvVar, "")
	assert.Equal(t, defaultConfigPath, resolveConfigPath(""))

	t.Setenv(configEnvVar, "/etc/kvgate/config.yaml")
	assert.Equal(t, "/etc/kvgate/config.yaml", resolveConfigPath(""))
	assert.Equal(t, "custom.toml", resolveConfigPath("custom.toml"))
}
