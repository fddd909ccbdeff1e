package auth

import (
	"encoding/json"
	"strings"

	"github.com/conquiz/conquiz-client/internal/apperrors"
	"github.com/conquiz/conquiz-client/internal/protocol"
)

// classify maps a backend rejection onto the AuthError taxonomy by keyword
// matching on the error string. The mapping is best-effort by design: an
// unmatched message degrades to Unknown rather than guessing. The backend is
// the real source of a structured code and should eventually supply one;
// until then this stays a pure function so the ambiguity is at least
// testable.
func classify(status int, body []byte) *apperrors.AuthError {
	msg := errorMessage(body)
	lower := strings.ToLower(msg)

	switch {
	case contains(lower, "banned", "suspended"):
		return apperrors.NewAuthError(apperrors.AuthBanned, msg)
	case contains(lower, "invalid credential", "wrong password", "incorrect password", "password mismatch"):
		return apperrors.NewAuthError(apperrors.AuthInvalidCredentials, msg)
	case contains(lower, "user not found", "no such user", "unknown user", "account not found"):
		return apperrors.NewAuthError(apperrors.AuthUserNotFound, msg)
	case strings.Contains(lower, "email") && contains(lower, "exist", "taken", "registered"):
		return apperrors.NewAuthError(apperrors.AuthEmailAlreadyExists, msg)
	case strings.Contains(lower, "username") && contains(lower, "exist", "taken"):
		return apperrors.NewAuthError(apperrors.AuthUsernameAlreadyExists, msg)
	case contains(lower, "weak password", "password too short", "password too weak"):
		return apperrors.NewAuthError(apperrors.AuthWeakPassword, msg)
	case contains(lower, "token expired", "session expired", "expired token"):
		return apperrors.NewAuthError(apperrors.AuthTokenExpired, msg)
	case status >= 500:
		return apperrors.NewAuthError(apperrors.AuthServerError, msg)
	default:
		return apperrors.NewAuthError(apperrors.AuthUnknown, msg)
	}
}

// errorMessage pulls the human-readable string out of the error body.
func errorMessage(body []byte) string {
	var resp protocol.APIErrorResponse
	if err := json.Unmarshal(body, &resp); err == nil && resp.Error != "" {
		return resp.Error
	}
	return strings.TrimSpace(string(body))
}

func contains(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
