package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/conquiz/conquiz-client/internal/apperrors"
	"github.com/conquiz/conquiz-client/internal/config"
	"github.com/conquiz/conquiz-client/internal/eventbus"
	"github.com/conquiz/conquiz-client/internal/logger"
	"github.com/conquiz/conquiz-client/internal/protocol"
	"github.com/conquiz/conquiz-client/internal/transport"
)

// Requester is the slice of the transport client the Manager depends on.
type Requester interface {
	Send(ctx context.Context, method, path string, body any, token string) (*transport.Response, error)
	SendOnce(ctx context.Context, method, path string, body any, token string) (*transport.Response, error)
}

// Manager owns AuthState and the Session and mediates every authenticated
// call. It is constructed once at process start and passed by reference to
// the game-flow layer and collaborators.
type Manager struct {
	rt    Requester
	store *Store
	bus   *eventbus.Bus
	cfg   config.AuthConfig

	mu         sync.Mutex
	state      AuthState
	session    *Session
	refreshing bool
	timerStop  chan struct{}
}

// NewManager creates a Manager in the Unknown state.
func NewManager(rt Requester, store *Store, cfg config.AuthConfig, bus *eventbus.Bus) *Manager {
	return &Manager{
		rt:    rt,
		store: store,
		bus:   bus,
		cfg:   cfg,
		state: StateUnknown,
	}
}

// State returns the current auth state.
func (m *Manager) State() AuthState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Session returns a copy of the current session, or nil.
func (m *Manager) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.clone()
}

// AccessToken returns the current access token, or "" when not logged in.
func (m *Manager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.session.Valid() {
		return ""
	}
	return m.session.AccessToken
}

func (m *Manager) setState(s AuthState) {
	m.mu.Lock()
	changed := m.state != s
	m.state = s
	m.mu.Unlock()
	if changed {
		m.bus.Publish(eventbus.TopicAuthStateChanged, eventbus.AuthStateChangedEvent{State: s.String()})
	}
}

// Login authenticates with an email-or-username identifier.
// At most one login/register is in flight at a time.
func (m *Manager) Login(ctx context.Context, identifier, password string) (*Session, error) {
	if err := m.beginLogin(); err != nil {
		return nil, err
	}

	resp, err := m.rt.Send(ctx, http.MethodPost, "/auth/login", protocol.LoginRequest{
		Identifier: identifier,
		Password:   password,
	}, "")
	return m.finishLogin(resp, err)
}

// Register creates an account and logs it in.
func (m *Manager) Register(ctx context.Context, email, username, password, displayName string) (*Session, error) {
	if err := m.beginLogin(); err != nil {
		return nil, err
	}

	resp, err := m.rt.Send(ctx, http.MethodPost, "/auth/register", protocol.RegisterRequest{
		Email:       email,
		Username:    username,
		Password:    password,
		DisplayName: displayName,
	}, "")
	return m.finishLogin(resp, err)
}

func (m *Manager) beginLogin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateLoggingIn {
		return apperrors.NewAuthError(apperrors.AuthUnknown, "operation in progress")
	}
	m.state = StateLoggingIn
	return nil
}

func (m *Manager) finishLogin(resp *transport.Response, err error) (*Session, error) {
	if err != nil {
		m.setState(StateNotLoggedIn)
		return nil, apperrors.NewAuthError(apperrors.AuthNetworkError, err.Error())
	}
	if !resp.OK() {
		m.setState(StateNotLoggedIn)
		return nil, classify(resp.Status, resp.Body)
	}

	var ar protocol.AuthResponse
	if err := json.Unmarshal(resp.Body, &ar); err != nil || ar.AccessToken == "" {
		m.setState(StateNotLoggedIn)
		return nil, apperrors.NewAuthError(apperrors.AuthUnknown, "malformed auth response")
	}

	sess := &Session{
		UserID:          ar.UserID,
		Username:        ar.Username,
		DisplayName:     ar.DisplayName,
		AccessToken:     ar.AccessToken,
		RefreshToken:    ar.RefreshToken,
		SessionID:       ar.SessionID,
		TokenExpiryUnix: tokenExpiry(ar.AccessToken, ar.ExpiresAt, m.cfg.TokenValidityDuration()),
		LastLoginUnix:   time.Now().Unix(),
	}

	if err := m.store.Save(sess); err != nil {
		logger.LogError("auth: persist session: %v", err)
	}

	m.mu.Lock()
	m.session = sess
	m.mu.Unlock()
	m.setState(StateLoggedIn)
	m.startRefreshTimer()
	return sess.clone(), nil
}

// Logout notifies the backend best-effort, then clears the session and
// persisted record unconditionally.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	sess := m.session
	m.mu.Unlock()

	if sess != nil && sess.AccessToken != "" {
		_, err := m.rt.SendOnce(ctx, http.MethodPost, "/auth/logout", protocol.LogoutRequest{
			SessionID: sess.SessionID,
		}, sess.AccessToken)
		if err != nil {
			logger.LogInfo("auth: logout notify failed (ignored): %v", err)
		}
	}

	m.mu.Lock()
	m.session = nil
	m.stopRefreshTimerLocked()
	m.mu.Unlock()

	if err := m.store.Clear(); err != nil {
		logger.LogError("auth: clear session store: %v", err)
	}
	m.setState(StateNotLoggedIn)
}

// Refresh exchanges the refresh token for a new access token.
// Returns false without side effects when no refresh token is held or a
// refresh is already in flight. A failed refresh is equivalent to logout:
// there is no partial or expired session.
func (m *Manager) Refresh(ctx context.Context) bool {
	m.mu.Lock()
	if m.session == nil || m.session.RefreshToken == "" || m.refreshing {
		m.mu.Unlock()
		return false
	}
	m.refreshing = true
	m.state = StateRefreshing
	refreshToken := m.session.RefreshToken
	m.mu.Unlock()
	m.bus.Publish(eventbus.TopicAuthStateChanged, eventbus.AuthStateChangedEvent{State: StateRefreshing.String()})

	resp, err := m.rt.Send(ctx, http.MethodPost, "/auth/refresh", protocol.RefreshRequest{
		RefreshToken: refreshToken,
	}, "")

	m.mu.Lock()
	m.refreshing = false
	if m.state != StateRefreshing {
		// Logout raced the refresh; the in-flight result is discarded.
		m.mu.Unlock()
		return false
	}

	var ar protocol.AuthResponse
	ok := err == nil && resp.OK() && json.Unmarshal(resp.Body, &ar) == nil && ar.AccessToken != ""
	if !ok {
		m.session = nil
		m.stopRefreshTimerLocked()
		m.mu.Unlock()
		if clearErr := m.store.Clear(); clearErr != nil {
			logger.LogError("auth: clear session store: %v", clearErr)
		}
		logger.LogInfo("auth: refresh failed, session cleared")
		m.setState(StateNotLoggedIn)
		return false
	}

	// Only the access token is replaced; identity fields are untouched.
	m.session.AccessToken = ar.AccessToken
	if ar.RefreshToken != "" {
		m.session.RefreshToken = ar.RefreshToken
	}
	m.session.TokenExpiryUnix = tokenExpiry(ar.AccessToken, ar.ExpiresAt, m.cfg.TokenValidityDuration())
	sess := m.session.clone()
	m.mu.Unlock()

	if err := m.store.Save(sess); err != nil {
		logger.LogError("auth: persist session: %v", err)
	}
	m.setState(StateLoggedIn)
	return true
}

// ValidateAndRestore runs once at startup. It restores the persisted session,
// refreshing first when the remaining validity is below the threshold, then
// confirms it with a who-am-I check. Any failure clears the session.
func (m *Manager) ValidateAndRestore(ctx context.Context) error {
	sess, err := m.store.Load()
	if err != nil {
		// Corrupted record: unrecoverable local fault.
		_ = m.store.Clear()
		m.setState(StateError)
		return err
	}
	if sess == nil {
		m.setState(StateNotLoggedIn)
		return nil
	}

	m.mu.Lock()
	m.session = sess
	m.mu.Unlock()

	if sess.TimeToExpiry() < m.cfg.RefreshThresholdDuration() {
		if !m.Refresh(ctx) {
			return nil // Refresh already cleared the session.
		}
	}

	resp, err := m.rt.Send(ctx, http.MethodGet, "/auth/me", nil, m.AccessToken())
	if err != nil || !resp.OK() {
		m.mu.Lock()
		m.session = nil
		m.stopRefreshTimerLocked()
		m.mu.Unlock()
		_ = m.store.Clear()
		m.setState(StateNotLoggedIn)
		if err != nil {
			return apperrors.NewAuthError(apperrors.AuthNetworkError, err.Error())
		}
		return classify(resp.Status, resp.Body)
	}

	var me protocol.MeResponse
	if err := json.Unmarshal(resp.Body, &me); err == nil && me.UserID != "" {
		m.mu.Lock()
		m.session.Username = me.Username
		m.session.DisplayName = me.DisplayName
		m.mu.Unlock()
	}

	m.setState(StateLoggedIn)
	m.startRefreshTimer()
	return nil
}

// ForgotPassword requests a reset mail. Best-effort.
func (m *Manager) ForgotPassword(ctx context.Context, email string) error {
	resp, err := m.rt.Send(ctx, http.MethodPost, "/auth/forgot-password", protocol.ForgotPasswordRequest{
		Email: email,
	}, "")
	if err != nil {
		return apperrors.NewAuthError(apperrors.AuthNetworkError, err.Error())
	}
	if !resp.OK() {
		return classify(resp.Status, resp.Body)
	}
	return nil
}

// --- recurring refresh timer ---

// startRefreshTimer starts the passive background refresh task. A missed
// wake-up only delays the refresh; expiry is judged against the token, not
// the timer.
func (m *Manager) startRefreshTimer() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timerStop != nil {
		return
	}
	stop := make(chan struct{})
	m.timerStop = stop

	interval := m.cfg.RefreshThresholdDuration()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.refreshIfNeeded()
			case <-stop:
				return
			}
		}
	}()
}

func (m *Manager) refreshIfNeeded() {
	m.mu.Lock()
	needed := m.state == StateLoggedIn && m.session != nil &&
		m.session.TimeToExpiry() < m.cfg.RefreshThresholdDuration()
	m.mu.Unlock()
	if needed {
		m.Refresh(context.Background())
	}
}

func (m *Manager) stopRefreshTimerLocked() {
	if m.timerStop != nil {
		close(m.timerStop)
		m.timerStop = nil
	}
}
