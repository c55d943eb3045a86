// ABOUTME: Entry point for the kvgate key-value server
// ABOUTME: Provides init, serve, token, and health subcommands

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/2389/kvgate/internal/auth"
	"github.com/2389/kvgate/internal/config"
	"github.com/2389/kvgate/internal/gateway"
)

// version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _                       _
| | ____   ____ _  __ _ | |_ ___
| |/ /\ \ / / _' |/ _' || __/ _ \
|   <  \ V / (_| | (_| || ||  __/
|_|\_\  \_/ \__, |\__,_| \__\___|
            |___/
`

const (
	configEnvVar      = "KVGATE_CONFIG"
	defaultConfigPath = "config.yaml"
)

const usage = `Usage: kvgate <command> [flags]

Commands:
  init     Generate a secret key and root token and write a new config
  serve    Start the key-value server
  token    Mint an additional access token
  health   Check server health
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// run dispatches to a subcommand.
func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) < 1 {
		fmt.Fprint(out, usage)
		return errors.New("no command given")
	}

	switch args[0] {
	case "init":
		return runInit(args[1:], out)
	case "serve":
		return runServe(ctx, args[1:], out)
	case "token":
		return runToken(args[1:], out)
	case "health":
		return runHealth(ctx, args[1:], out)
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return nil
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func newFlagSet(name string, out io.Writer) (*pflag.FlagSet, *string) {
	fs := pflag.NewFlagSet("kvgate "+name, pflag.ContinueOnError)
	fs.SetOutput(out)
	configPath := fs.StringP("config", "c", "", "config file path (default $"+configEnvVar+" or ./"+defaultConfigPath+")")
	return fs, configPath
}

// resolveConfigPath returns the config file path.
// Priority: --config flag > KVGATE_CONFIG env var > ./config.yaml
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envPath := os.Getenv(configEnvVar); envPath != "" {
		return envPath
	}
	return defaultConfigPath
}

// runInit writes a fresh config holding a new secret key and the root token
// minted from it.
func runInit(args []string, out io.Writer) error {
	fs, configFlag := newFlagSet("init", out)
	enableAuth := fs.Bool("enable-auth", false, "require a bearer token on every request except /health")
	force := fs.Bool("force", false, "overwrite an existing config, invalidating its tokens")
	addr := fs.String("addr", "", "HTTP listen address (default "+config.DefaultHTTPAddr+")")
	if err := fs.Parse(args); err != nil {
		return err
	}

	configPath := resolveConfigPath(*configFlag)
	if _, err := os.Stat(configPath); err == nil && !*force {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", configPath)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking config: %w", err)
	}

	secretKey, err := config.GenerateSecretKey()
	if err != nil {
		return fmt.Errorf("generating secret key: %w", err)
	}
	rootToken, err := auth.Issue(secretKey, nil)
	if err != nil {
		return fmt.Errorf("issuing root token: %w", err)
	}

	cfg := config.Default()
	if *addr != "" {
		cfg.Server.HTTPAddr = *addr
	}
	cfg.Authentication = config.AuthenticationConfig{
		Enabled:   *enableAuth,
		RootToken: rootToken,
		SecretKey: secretKey,
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := config.Save(configPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Fprint(out, "✓ ")
	fmt.Fprintf(out, "Config written to %s\n", configPath)
	green.Fprint(out, "✓ ")
	fmt.Fprintf(out, "Authentication: %s\n", auth.NewGate(*enableAuth, secretKey).State())
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Root token (send as the auth header):")
	fmt.Fprintln(out, rootToken)
	return nil
}

func runServe(ctx context.Context, args []string, out io.Writer) error {
	fs, configFlag := newFlagSet("serve", out)
	addr := fs.String("addr", "", "override server.http_addr")
	if err := fs.Parse(args); err != nil {
		return err
	}
	configPath := resolveConfigPath(*configFlag)

	cyan := color.New(color.FgCyan)
	cyan.Fprint(out, banner)

	gray := color.New(color.FgHiBlack)
	gray.Fprintf(out, "    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *addr != "" {
		cfg.Server.HTTPAddr = *addr
	}

	logger := setupLogger(cfg.Logging, out)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "Config:    %s\n", configPath)
	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Fprint(out, "    ▶ ")
	fmt.Fprint(out, "Auth:      ")
	if cfg.Authentication.Enabled {
		green.Fprintln(out, "enabled")
	} else {
		yellow.Fprintln(out, "disabled")
	}
	if cfg.Metrics.Enabled {
		green.Fprint(out, "    ▶ ")
		fmt.Fprintf(out, "Metrics:   %s%s\n", cfg.Metrics.Addr, cfg.Metrics.Path)
	}
	if cfg.Tailscale.Enabled {
		green.Fprint(out, "    ▶ ")
		fmt.Fprint(out, "Tailscale: ")
		cyan.Fprint(out, cfg.Tailscale.Hostname)
		if cfg.Tailscale.Ephemeral {
			gray.Fprint(out, " (ephemeral)")
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out)

	logger.Info("starting kvgate",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

// runToken mints an additional credential signed with the configured secret.
func runToken(args []string, out io.Writer) error {
	fs, configFlag := newFlagSet("token", out)
	expires := fs.Duration("expires", 0, "token lifetime (default "+auth.DefaultTokenLifetime.String()+")")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(resolveConfigPath(*configFlag))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Authentication.SecretKey == "" {
		return errors.New("no secret key configured (run kvgate init)")
	}

	var expiry *time.Time
	if *expires != 0 {
		at := time.Now().Add(*expires)
		expiry = &at
	}

	token, err := auth.Issue(cfg.Authentication.SecretKey, expiry)
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}

	fmt.Fprintln(out, token)
	return nil
}

// healthHost returns the host:port to probe. A listen address with an empty or
// unspecified host is probed on loopback.
func healthHost(cfg *config.Config) string {
	if cfg.Tailscale.Enabled {
		return cfg.Tailscale.Hostname
	}

	host, port, err := net.SplitHostPort(cfg.Server.HTTPAddr)
	if err != nil {
		return cfg.Server.HTTPAddr
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

func runHealth(ctx context.Context, args []string, out io.Writer) error {
	fs, configFlag := newFlagSet("health", out)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(resolveConfigPath(*configFlag))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	host := healthHost(cfg)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	url := fmt.Sprintf("http://%s/health", host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	fmt.Fprintln(out, "healthy")
	return nil
}
