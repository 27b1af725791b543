package auth

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/raceledger/internal/domain/apperr"
)

func TestIssueAndParse(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	a := New("secret", WithIssuer("raceledger"), WithClock(func() time.Time { return now }))

	tok, err := a.Issue("p1")
	require.NoError(t, err)

	sub, err := a.ParseToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "p1", sub)

	other := New("other-secret", WithIssuer("raceledger"), WithClock(func() time.Time { return now }))
	_, err = other.ParseToken(tok)
	assert.True(t, apperr.Is(err, apperr.Unauthenticated))

	wrongIss := New("secret", WithIssuer("someone-else"), WithClock(func() time.Time { return now }))
	_, err = wrongIss.ParseToken(tok)
	assert.True(t, apperr.Is(err, apperr.Unauthenticated))

	later := New("secret", WithIssuer("raceledger"), WithClock(func() time.Time { return now.Add(25 * time.Hour) }))
	_, err = later.ParseToken(tok)
	assert.True(t, apperr.Is(err, apperr.Unauthenticated), "expired token")
}

func TestTokenTTL(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	short := New("secret", WithTokenTTL(time.Hour), WithClock(func() time.Time { return now }))
	tok, err := short.Issue("p1")
	require.NoError(t, err)

	within := New("secret", WithClock(func() time.Time { return now.Add(59 * time.Minute) }))
	id, err := within.ParseToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "p1", id)

	after := New("secret", WithClock(func() time.Time { return now.Add(61 * time.Minute) }))
	_, err = after.ParseToken(tok)
	assert.True(t, apperr.Is(err, apperr.Unauthenticated), "token past its ttl")

	ignored := New("secret", WithTokenTTL(0), WithClock(func() time.Time { return now }))
	tok, err = ignored.Issue("p1")
	require.NoError(t, err)
	_, err = New("secret", WithClock(func() time.Time { return now.Add(23 * time.Hour) })).ParseToken(tok)
	assert.NoError(t, err, "non-positive ttl keeps the default")
}

func TestParseRejectsOtherAlgorithms(t *testing.T) {
	a := New("secret")
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "p1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = a.ParseToken(tok)
	assert.True(t, apperr.Is(err, apperr.Unauthenticated))
}

func TestPlayerID(t *testing.T) {
	a := New("secret", WithAnonymous(true))
	tok, err := a.Issue("from-token")
	require.NoError(t, err)

	cases := []struct {
		name    string
		header  map[string]string
		query   string
		want    string
		wantErr bool
	}{
		{name: "bearer", header: map[string]string{"Authorization": "Bearer " + tok}, want: "from-token"},
		{name: "bearer wins over header", header: map[string]string{"Authorization": "Bearer " + tok, PlayerHeader: "h"}, want: "from-token"},
		{name: "query token", query: "?token=" + tok, want: "from-token"},
		{name: "anonymous header", header: map[string]string{PlayerHeader: " p9 "}, want: "p9"},
		{name: "basic auth", header: map[string]string{"Authorization": "Basic Zm9vOmJhcg=="}, wantErr: true},
		{name: "garbage token", header: map[string]string{"Authorization": "Bearer nope"}, wantErr: true},
		{name: "nothing", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/profile"+tc.query, nil)
			for k, v := range tc.header {
				r.Header.Set(k, v)
			}
			got, err := a.PlayerID(r)
			if tc.wantErr {
				assert.True(t, apperr.Is(err, apperr.Unauthenticated))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	strict := New("secret")
	r := httptest.NewRequest("GET", "/profile", nil)
	r.Header.Set(PlayerHeader, "p9")
	_, err = strict.PlayerID(r)
	assert.True(t, apperr.Is(err, apperr.Unauthenticated), "header ignored unless anonymous")
}

func TestNoSecret(t *testing.T) {
	a := New("")
	_, err := a.Issue("p1")
	assert.True(t, apperr.Is(err, apperr.Internal))
	_, err = a.ParseToken("x")
	assert.True(t, apperr.Is(err, apperr.Unauthenticated))
}

func TestContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)
	id, ok := FromContext(WithPlayer(context.Background(), "p1"))
	assert.True(t, ok)
	assert.Equal(t, "p1", id)
}
