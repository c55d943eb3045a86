// Package config handles configuration loading and persistence for kvgate.
//
// # Overview
//
// Configuration is created once by "kvgate init" and read by "kvgate serve".
// It is immutable for the lifetime of the service.
//
// # Configuration File
//
// Path resolution (in order):
//
//  1. --config flag
//  2. KVGATE_CONFIG environment variable
//  3. ./config.yaml (current directory)
//
// Files ending in .toml are read and written as TOML; everything else is YAML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	tailscale:
//	  auth_key: "${TS_AUTHKEY}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to an empty string.
//
// # Configuration Sections
//
// Server:
//
//	server:
//	  http_addr: "127.0.0.1:8080"
//
// Authentication:
//
//	authentication:
//	  enabled: true
//	  root_token: "eyJhbGciOiJIUzI1NiIs..."  # minted by init
//	  secret_key: "<64 hex characters>"      # hex-encoded 256-bit key
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// Metrics (served on a separate listener):
//
//	metrics:
//	  enabled: false
//	  addr: "127.0.0.1:9090"
//	  path: "/metrics"
//
// Tailscale:
//
//	tailscale:
//	  enabled: false
//	  hostname: "kvgate"
//	  auth_key: "${TS_AUTHKEY}"
//	  state_dir: ""
//	  ephemeral: false
//
// # Validation
//
// Load() validates:
//
//   - server.http_addr present unless tailscale is enabled
//   - authentication.secret_key is 64 hex characters when authentication is enabled
//   - logging level and format values
//   - metrics.path starts with /
package config
