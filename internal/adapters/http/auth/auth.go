// Package auth resolves the calling player from a request.
package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/okian/raceledger/internal/domain/apperr"
)

// PlayerHeader carries the player id in anonymous mode.
const PlayerHeader = "X-Player-ID"

const defaultTokenTTL = 24 * time.Hour

type ctxKey struct{}

// Authenticator verifies HS256 bearer tokens whose sub claim is the player id.
type Authenticator struct {
	secret    []byte
	issuer    string
	anonymous bool
	ttl       time.Duration
	now       func() time.Time
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithIssuer requires and stamps the iss claim.
func WithIssuer(iss string) Option {
	return func(a *Authenticator) { a.issuer = iss }
}

// WithAnonymous accepts X-Player-ID when no bearer token is present.
func WithAnonymous(allow bool) Option {
	return func(a *Authenticator) { a.anonymous = allow }
}

// WithTokenTTL sets the lifetime of issued tokens.
func WithTokenTTL(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.ttl = d
		}
	}
}

// WithClock overrides time.Now for issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		if now != nil {
			a.now = now
		}
	}
}

// New returns an Authenticator. An empty secret disables bearer tokens.
func New(secret string, opts ...Option) *Authenticator {
	a := &Authenticator{secret: []byte(secret), ttl: defaultTokenTTL, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Issue signs a token for playerID.
func (a *Authenticator) Issue(playerID string) (string, error) {
	const op = "auth.issue"
	if len(a.secret) == 0 {
		return "", apperr.New(apperr.Internal, op, "no signing secret configured")
	}
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   playerID,
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, op, err)
	}
	return signed, nil
}

// ParseToken validates tok and returns its subject.
func (a *Authenticator) ParseToken(tok string) (string, error) {
	const op = "auth.parse"
	if len(a.secret) == 0 {
		return "", apperr.New(apperr.Unauthenticated, op, "bearer tokens are disabled")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	var claims jwt.RegisteredClaims
	t, err := jwt.ParseWithClaims(tok, &claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return "", apperr.Wrapf(apperr.Unauthenticated, op, err, "invalid token")
	}
	if !t.Valid {
		return "", apperr.New(apperr.Unauthenticated, op, "invalid token")
	}
	if claims.Subject == "" {
		return "", apperr.New(apperr.Unauthenticated, op, "token has no subject")
	}
	return claims.Subject, nil
}

// PlayerID resolves the caller: a bearer token when sent, otherwise the
// player header in anonymous mode.
func (a *Authenticator) PlayerID(r *http.Request) (string, error) {
	const op = "auth.player"
	if h := r.Header.Get("Authorization"); h != "" {
		tok, ok := strings.CutPrefix(h, "Bearer ")
		if !ok {
			return "", apperr.New(apperr.Unauthenticated, op, "authorization must be a bearer token")
		}
		return a.ParseToken(strings.TrimSpace(tok))
	}
	// browsers cannot set headers on websocket upgrades
	if tok := r.URL.Query().Get("token"); tok != "" {
		return a.ParseToken(tok)
	}
	if a.anonymous {
		if id := strings.TrimSpace(r.Header.Get(PlayerHeader)); id != "" {
			return id, nil
		}
	}
	return "", apperr.New(apperr.Unauthenticated, op, "missing credentials")
}

// WithPlayer stores playerID on ctx.
func WithPlayer(ctx context.Context, playerID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, playerID)
}

// FromContext returns the player stored by WithPlayer.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}
