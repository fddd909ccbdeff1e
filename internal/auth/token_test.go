package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/conquiz/conquiz-client/internal/testutil"
)

func TestTokenExpiryPrefersJWTClaim(t *testing.T) {
	claimExp := time.Now().Add(2 * time.Hour)
	token := testutil.MakeJWT("u1", claimExp)

	got := tokenExpiry(token, time.Now().Add(time.Minute).Unix(), time.Hour)
	assert.Equal(t, claimExp.Unix(), got)
}

func TestTokenExpiryFallsBackToServerValue(t *testing.T) {
	serverExp := time.Now().Add(45 * time.Minute).Unix()

	got := tokenExpiry("opaque-token", serverExp, time.Hour)
	assert.Equal(t, serverExp, got)
}

func TestTokenExpiryLastResort(t *testing.T) {
	before := time.Now().Add(time.Hour).Unix()
	got := tokenExpiry("opaque-token", 0, time.Hour)
	after := time.Now().Add(time.Hour).Unix()

	assert.GreaterOrEqual(t, got, before)
	assert.LessOrEqual(t, got, after)
}

func TestSessionValid(t *testing.T) {
	tests := []struct {
		name string
		sess *Session
		want bool
	}{
		{"nil session", nil, false},
		{"no token", &Session{TokenExpiryUnix: time.Now().Add(time.Hour).Unix()}, false},
		{"expired", &Session{AccessToken: "t1", TokenExpiryUnix: time.Now().Add(-time.Minute).Unix()}, false},
		{"healthy", &Session{AccessToken: "t1", TokenExpiryUnix: time.Now().Add(time.Hour).Unix()}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sess.Valid())
		})
	}
}
