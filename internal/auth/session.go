// Package auth owns the authentication state machine, the bearer token
// lifecycle and the persisted session record. Every authenticated request
// leaves the process through this package.
package auth

import "time"

// AuthState is the single authentication state exposed by the Manager.
// Transitions are serialized; LoggedIn and NotLoggedIn are the only stable
// states. StateError is reserved for unrecoverable local faults and implies
// NotLoggedIn semantics for callers.
type AuthState int

const (
	StateUnknown AuthState = iota
	StateNotLoggedIn
	StateLoggingIn
	StateLoggedIn
	StateRefreshing
	StateError
)

// String returns the state name.
func (s AuthState) String() string {
	switch s {
	case StateNotLoggedIn:
		return "NotLoggedIn"
	case StateLoggingIn:
		return "LoggingIn"
	case StateLoggedIn:
		return "LoggedIn"
	case StateRefreshing:
		return "Refreshing"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Session is the authenticated identity plus its tokens.
// Invariant: a non-nil Session handed out by the Manager always carries a
// non-empty access token and a future expiry; the transport never inspects
// expiry itself.
type Session struct {
	UserID          string `json:"userId"`
	Username        string `json:"username"`
	DisplayName     string `json:"displayName,omitempty"`
	AccessToken     string `json:"accessToken"`
	RefreshToken    string `json:"refreshToken,omitempty"`
	SessionID       string `json:"sessionId,omitempty"`
	DeviceID        string `json:"deviceId,omitempty"`
	TokenExpiryUnix int64  `json:"tokenExpiryUnix"`
	LastLoginUnix   int64  `json:"lastLoginUnix"`
}

// Valid reports whether the session holds a usable, unexpired access token.
func (s *Session) Valid() bool {
	return s != nil && s.AccessToken != "" && time.Now().Unix() < s.TokenExpiryUnix
}

// TimeToExpiry returns the remaining token validity. Negative when expired.
func (s *Session) TimeToExpiry() time.Duration {
	return time.Until(time.Unix(s.TokenExpiryUnix, 0))
}

// clone returns a copy so callers cannot mutate the Manager's session.
func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
