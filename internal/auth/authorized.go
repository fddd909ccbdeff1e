package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/conquiz/conquiz-client/internal/apperrors"
	"github.com/conquiz/conquiz-client/internal/protocol"
	"github.com/conquiz/conquiz-client/internal/transport"
)

// Do sends an authenticated, retrying request. An Unauthorized response
// triggers one forced refresh and a resend; a second Unauthorized forces
// logout and yields apperrors.ErrUnauthorized.
func (m *Manager) Do(ctx context.Context, method, path string, body any) (*transport.Response, error) {
	return m.authorized(ctx, method, path, body, false)
}

// DoOnce is Do without retries, for requests whose duplicate would
// double-count (answer, attack, territory selection). A 401 resend is safe:
// the rejected action was never performed.
func (m *Manager) DoOnce(ctx context.Context, method, path string, body any) (*transport.Response, error) {
	return m.authorized(ctx, method, path, body, true)
}

func (m *Manager) authorized(ctx context.Context, method, path string, body any, once bool) (*transport.Response, error) {
	token := m.AccessToken()
	if token == "" {
		return nil, apperrors.ErrUnauthorized
	}

	send := m.rt.Send
	if once {
		send = m.rt.SendOnce
	}

	resp, err := send(ctx, method, path, body, token)
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusUnauthorized {
		return resp, nil
	}

	if !m.Refresh(ctx) {
		return nil, apperrors.ErrUnauthorized
	}

	resp, err = send(ctx, method, path, body, m.AccessToken())
	if err != nil {
		return nil, err
	}
	if resp.Status == http.StatusUnauthorized {
		m.Logout(ctx)
		return nil, apperrors.ErrUnauthorized
	}
	return resp, nil
}

// --- profile & ranking convenience calls ---

// Me fetches the authenticated identity from the backend.
func (m *Manager) Me(ctx context.Context) (*protocol.MeResponse, error) {
	return getJSON[protocol.MeResponse](m, ctx, "/auth/me")
}

// Profile fetches the player profile.
func (m *Manager) Profile(ctx context.Context) (*protocol.ProfilePayload, error) {
	return getJSON[protocol.ProfilePayload](m, ctx, "/profile")
}

// UpdateProfile stores the player profile.
func (m *Manager) UpdateProfile(ctx context.Context, p *protocol.ProfilePayload) error {
	resp, err := m.Do(ctx, http.MethodPut, "/profile", p)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return classify(resp.Status, resp.Body)
	}
	return nil
}

// Player fetches another player's public info.
func (m *Manager) Player(ctx context.Context, id string) (*protocol.ProfilePayload, error) {
	return getJSON[protocol.ProfilePayload](m, ctx, "/player/"+id)
}

// Ranking fetches a leaderboard by type (e.g. "global", "weekly").
func (m *Manager) Ranking(ctx context.Context, rankingType string) (*protocol.RankingResponse, error) {
	return getJSON[protocol.RankingResponse](m, ctx, "/ranking/"+rankingType)
}

func getJSON[T any](m *Manager, ctx context.Context, path string) (*T, error) {
	resp, err := m.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, classify(resp.Status, resp.Body)
	}
	var out T
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, apperrors.ErrDecode
	}
	return &out, nil
}
