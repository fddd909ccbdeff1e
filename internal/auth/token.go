package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpiry derives the access token expiry.
// When the token parses as a JWT its exp claim wins, since the backend signs
// it and the claim survives clock drift in the login response. Otherwise the
// server-provided expiry is used, and as a last resort now+fallback.
func tokenExpiry(accessToken string, serverExpiry int64, fallback time.Duration) int64 {
	if exp, ok := jwtExpiry(accessToken); ok {
		return exp
	}
	if serverExpiry > 0 {
		return serverExpiry
	}
	return time.Now().Add(fallback).Unix()
}

// jwtExpiry extracts the exp claim without verifying the signature.
// The client holds no signing secret; verification is the backend's job.
func jwtExpiry(accessToken string) (int64, bool) {
	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(accessToken, claims)
	if err != nil {
		return 0, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0, false
	}
	return exp.Unix(), true
}
