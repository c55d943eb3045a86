// ABOUTME: Authentication gate deciding whether a request may proceed
// ABOUTME: Disabled gates pass everything; enabled gates verify HS256 credentials

package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Gate errors
var (
	ErrAuthMissing = errors.New("missing credential")
	ErrAuthInvalid = errors.New("invalid credential")
)

// HeaderName is the request header carrying the credential.
const HeaderName = "auth"

const bearerPrefix = "Bearer "

// State is the fixed mode of a Gate.
type State int

const (
	StateDisabled State = iota
	StateEnabled
)

func (s State) String() string {
	if s == StateEnabled {
		return "enabled"
	}
	return "disabled"
}

// FailureObserver is notified of every rejected credential.
type FailureObserver interface {
	ObserveAuthFailure(reason string)
}

// Gate validates credentials against the configured secret key.
// It is immutable after construction and safe for concurrent use.
type Gate struct {
	state    State
	secret   []byte
	observer FailureObserver
}

// NewGate creates a gate. When enabled is false the secret is ignored.
func NewGate(enabled bool, secret string) *Gate {
	g := &Gate{state: StateDisabled}
	if enabled {
		g.state = StateEnabled
		g.secret = []byte(secret)
	}
	return g
}

// WithFailureObserver returns the gate after attaching o. It must be called
// before the gate is shared.
func (g *Gate) WithFailureObserver(o FailureObserver) *Gate {
	g.observer = o
	return g
}

// State reports whether the gate is enabled.
func (g *Gate) State() State {
	return g.state
}

// Verify checks the raw header value. An empty header is treated as absent.
func (g *Gate) Verify(header string) error {
	_, err := g.verify(header)
	return err
}

// verify is Verify returning the parsed claims. Claims are nil when the gate
// is disabled.
func (g *Gate) verify(header string) (*Claims, error) {
	if g.state == StateDisabled {
		return nil, nil
	}
	if header == "" {
		return nil, ErrAuthMissing
	}

	raw := strings.TrimPrefix(header, bearerPrefix)
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthInvalid, err)
	}
	if !token.Valid {
		return nil, ErrAuthInvalid
	}

	return claims, nil
}

// failureReason maps a verification error to a metrics label.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrAuthMissing):
		return "missing"
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "signature"
	default:
		return "invalid"
	}
}
