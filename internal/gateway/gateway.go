// ABOUTME: Gateway service that owns the store, auth gate, and HTTP listeners
// ABOUTME: Runs the API server and optional metrics server until the context is canceled

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/kvgate/internal/auth"
	"github.com/2389/kvgate/internal/config"
	"github.com/2389/kvgate/internal/metrics"
	"github.com/2389/kvgate/internal/store"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Gateway serves the key-value API. One Gateway owns one store for the life
// of the process; nothing is persisted across restarts.
type Gateway struct {
	config        *config.Config
	store         *store.Store
	gate          *auth.Gate
	metrics       *metrics.Metrics
	router        *Router
	httpServer    *http.Server
	metricsServer *http.Server
	tsnetServer   *tsnet.Server
	logger        *slog.Logger

	// serverID identifies this gateway instance in logs
	serverID string
}

// New creates a Gateway from configuration. It does not bind any listener.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := metrics.New()
	s := store.New(store.WithObserver(m))
	gate := auth.NewGate(cfg.Authentication.Enabled, cfg.Authentication.SecretKey).WithFailureObserver(m)

	gw := &Gateway{
		config:   cfg,
		store:    s,
		gate:     gate,
		metrics:  m,
		router:   NewRouter(s, logger.With("component", "router")),
		logger:   logger,
		serverID: generateServerID(),
	}

	if gate.State() == auth.StateDisabled {
		logger.Warn("authentication disabled, every request is allowed")
	}

	gw.httpServer = &http.Server{
		Handler:           gw.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	if cfg.Metrics.Enabled {
		mux := chi.NewRouter()
		mux.Handle(cfg.Metrics.Path, m.Handler())
		gw.metricsServer = &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: readHeaderTimeout,
		}
	}

	return gw, nil
}

// Handler returns the full API handler: request ids, observation, panic
// recovery, the auth gate, then the router.
func (g *Gateway) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(g.observe)
	r.Use(g.recoverPanics)
	r.Use(g.gateExceptHealth)
	r.Mount("/", g.router)
	return r
}

// Store returns the gateway's store.
func (g *Gateway) Store() *store.Store {
	return g.store
}

// Metrics returns the gateway's metrics collectors.
func (g *Gateway) Metrics() *metrics.Metrics {
	return g.metrics
}

// Run binds the configured listeners and serves until ctx is canceled or a
// server fails. Returns nil on graceful shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	httpLn, err := g.setupListener(ctx)
	if err != nil {
		return err
	}

	var metricsLn net.Listener
	if g.metricsServer != nil {
		metricsLn, err = net.Listen("tcp", g.config.Metrics.Addr)
		if err != nil {
			_ = httpLn.Close()
			g.closeTailscale()
			return fmt.Errorf("listening on metrics address: %w", err)
		}
	}

	g.logger.Info("gateway started",
		"server_id", g.serverID,
		"auth", g.gate.State().String(),
	)

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		g.logger.Info("HTTP server listening", "addr", httpLn.Addr().String())
		if err := g.httpServer.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	if metricsLn != nil {
		eg.Go(func() error {
			g.logger.Info("metrics server listening",
				"addr", metricsLn.Addr().String(),
				"path", g.config.Metrics.Path,
			)
			if err := g.metricsServer.Serve(metricsLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	eg.Go(func() error {
		<-egCtx.Done()
		if ctx.Err() != nil {
			g.logger.Info("context canceled, initiating shutdown")
		}
		return g.gracefulShutdown()
	})

	return eg.Wait()
}

// setupListener creates the API listener on the tailnet or plain TCP.
func (g *Gateway) setupListener(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		if g.config.Server.HTTPAddr != "" {
			g.logger.Warn("server.http_addr is ignored when tailscale is enabled",
				"http_addr", g.config.Server.HTTPAddr,
			)
		}
		return g.setupTailscaleListener(ctx)
	}

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// gracefulShutdown uses a fresh context since the run context is already done.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown stops all servers and releases the tailnet node.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}
	if g.metricsServer != nil {
		if err := g.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics shutdown: %w", err))
		}
	}
	if g.tsnetServer != nil {
		if err := g.tsnetServer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("tailscale shutdown: %w", err))
		}
	}

	return errors.Join(errs...)
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "kvgate", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set tailscale.auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// setupTailscaleListener joins the tailnet and listens on :80 there.
func (g *Gateway) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := g.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	g.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
		UserLogf: func(format string, args ...any) {
			g.logger.Debug(fmt.Sprintf(format, args...), "component", "tsnet")
		},
	}

	g.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := g.tsnetServer.Up(ctx)
	if err != nil {
		g.closeTailscale()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	g.logTailscaleStatus(tsCfg.Hostname, status)

	ln, err := g.tsnetServer.Listen("tcp", ":80")
	if err != nil {
		g.closeTailscale()
		return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
	}
	return ln, nil
}

// logTailscaleStatus logs info about the tailscale node status.
func (g *Gateway) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	tsAddr := ""
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	}
	dnsName := ""
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	g.logger.Info("tailscale node running", "hostname", hostname, "ip", tsAddr, "dns_name", dnsName)
}

func (g *Gateway) closeTailscale() {
	if g.tsnetServer != nil {
		_ = g.tsnetServer.Close()
		g.tsnetServer = nil
	}
}

// generateServerID creates a unique identifier for this gateway instance.
func generateServerID() string {
	return "kvgate-" + uuid.NewString()
}
