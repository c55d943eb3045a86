// Package auth provides the authentication gate for kvgate.
//
// # Gate States
//
// A Gate is built once from configuration and never changes state:
//
//   - Disabled: Verify always succeeds, with or without a credential.
//   - Enabled: Verify requires an HS256 JWT signed with the configured secret
//     key and not yet expired.
//
// # Credentials
//
// Credentials are carried in the "auth" request header, either raw or with a
// "Bearer " prefix. The claims are fixed:
//
//   - sub: "user"
//   - iss: "issuer"
//   - iat: issue time (seconds since epoch)
//   - exp: expiry (seconds since epoch), three years after issue by default
//
// Any valid, unexpired, correctly signed credential grants full access. Claims
// other than exp are not inspected.
//
// # Token Management
//
// The root credential is minted once during bootstrap:
//
//	token, err := auth.Issue(secretKey, nil)
//
// Per-request verification goes through the gate:
//
//	gate := auth.NewGate(cfg.Authentication.Enabled, cfg.Authentication.SecretKey)
//	err := gate.Verify(r.Header.Get(auth.HeaderName))
//
// # HTTP Middleware
//
// Gate.Middleware rejects unauthenticated requests with 401 and a generic body.
// Missing and invalid credentials are indistinguishable to the caller.
package auth
