package gameflow

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/conquiz/conquiz-client/internal/apperrors"
	"github.com/conquiz/conquiz-client/internal/eventbus"
	"github.com/conquiz/conquiz-client/internal/protocol"
	"github.com/conquiz/conquiz-client/internal/transport"
)

// Player commands. Each one validates against the current sub-state, sends
// the action over REST and waits for the server's stream event to actually
// move the machine. Local state is only adjusted where the server cannot be
// allowed to see a duplicate (answer lockout).

// FindGame asks matchmaking for a game and records the assigned id.
func (m *Machine) FindGame(ctx context.Context) (string, error) {
	m.mu.Lock()
	localID := m.localID
	m.mu.Unlock()

	m.bus.Publish(eventbus.TopicSearchingGame, nil)

	resp, err := m.api.Do(ctx, http.MethodPost, "/game/find", protocol.FindGamePayload{
		PlayerID: localID,
	})
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", apiError(resp)
	}

	var fg protocol.FindGameResponse
	if err := json.Unmarshal(resp.Body, &fg); err != nil || fg.GameID == "" {
		return "", fmt.Errorf("%w: find game response", apperrors.ErrDecode)
	}

	m.mu.Lock()
	m.state.GameID = fg.GameID
	m.mu.Unlock()

	m.bus.Publish(eventbus.TopicGameFound, eventbus.GameFoundEvent{GameID: fg.GameID})
	return fg.GameID, nil
}

// RequestQuestion asks the server to deal the next question for the round.
func (m *Machine) RequestQuestion(ctx context.Context, category protocol.Category) error {
	m.mu.Lock()
	if m.phase != protocol.PhaseConquest && m.phase != protocol.PhaseWar {
		m.mu.Unlock()
		return apperrors.ErrOutOfOrderEvent
	}
	req := protocol.QuestionRequestPayload{
		GameID:   m.state.GameID,
		PlayerID: m.localID,
		Round:    m.state.Round,
		Category: category,
	}
	events := m.setSubLocked(SubWaitingQuestion)
	m.mu.Unlock()
	m.publish(events)

	resp, err := m.api.DoOnce(ctx, http.MethodPost, "/game/question", req)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return apiError(resp)
	}
	return nil
}

// SubmitAnswer submits the chosen option exactly once per question. The
// lockout is taken before the request leaves, so neither a second call nor a
// transport retry can double-submit; it is released only by the next question.
func (m *Machine) SubmitAnswer(ctx context.Context, answer int, modifiers []protocol.ModifierKind) error {
	m.mu.Lock()
	if m.sub != SubAnsweringQuestion || m.questionID == "" {
		m.mu.Unlock()
		return apperrors.ErrOutOfOrderEvent
	}
	if m.hasAnswered {
		m.mu.Unlock()
		return apperrors.ErrDuplicateSubmission
	}
	m.hasAnswered = true
	m.cancelQuestionTimerLocked()
	req := protocol.AnswerPayload{
		GameID:     m.state.GameID,
		PlayerID:   m.localID,
		QuestionID: m.questionID,
		Answer:     answer,
		LatencyCs:  protocol.ToCentis(time.Since(m.questionStart)),
		Modifiers:  modifiers,
	}
	m.mu.Unlock()

	// A failed send keeps the lockout: the server may still have received
	// the answer, and only its AnswerResult is authoritative.
	resp, err := m.api.DoOnce(ctx, http.MethodPost, "/game/answer", req)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return apiError(resp)
	}
	return nil
}

// SubmitAttack launches an attack from one owned territory onto a target.
func (m *Machine) SubmitAttack(ctx context.Context, from, to int, longRange bool, category protocol.Category) error {
	m.mu.Lock()
	if m.phase != protocol.PhaseWar || m.sub != SubSelectingTarget {
		m.mu.Unlock()
		return apperrors.ErrOutOfOrderEvent
	}
	req := protocol.AttackPayload{
		GameID:    m.state.GameID,
		PlayerID:  m.localID,
		From:      from,
		To:        to,
		LongRange: longRange,
		Category:  category,
	}
	events := m.setSubLocked(SubResolvingBattle)
	m.mu.Unlock()
	m.publish(events)

	resp, err := m.api.DoOnce(ctx, http.MethodPost, "/game/attack", req)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return apiError(resp)
	}
	return nil
}

// SelectTerritory claims a free territory after a correct conquest answer.
func (m *Machine) SelectTerritory(ctx context.Context, territoryID int) error {
	m.mu.Lock()
	if m.phase != protocol.PhaseConquest || m.sub != SubSelectingTerritory {
		m.mu.Unlock()
		return apperrors.ErrOutOfOrderEvent
	}
	if _, ok := m.state.Territories[territoryID]; !ok {
		m.mu.Unlock()
		return apperrors.ErrUnknownEntity
	}
	req := protocol.TerritorySelectPayload{
		GameID:      m.state.GameID,
		PlayerID:    m.localID,
		TerritoryID: territoryID,
	}
	m.mu.Unlock()

	resp, err := m.api.DoOnce(ctx, http.MethodPost, "/game/territory/select", req)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return apiError(resp)
	}
	return nil
}

// UseModifier spends one joker of the given kind.
func (m *Machine) UseModifier(ctx context.Context, kind protocol.ModifierKind) error {
	m.mu.Lock()
	if slot, ok := m.state.Players[m.localID]; ok && slot.JokerCounts[kind] == 0 {
		m.mu.Unlock()
		return &apperrors.GameFlowError{
			Code:    protocol.ErrCodeNoJokerLeft,
			Message: protocol.ErrorMessages[protocol.ErrCodeNoJokerLeft],
		}
	}
	req := protocol.ModifierPayload{
		GameID:   m.state.GameID,
		PlayerID: m.localID,
		Kind:     kind,
	}
	m.mu.Unlock()

	resp, err := m.api.DoOnce(ctx, http.MethodPost, "/game/joker", req)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return apiError(resp)
	}
	return nil
}

// apiError converts a backend rejection into a flow error.
func apiError(resp *transport.Response) error {
	var ae protocol.APIErrorResponse
	if err := json.Unmarshal(resp.Body, &ae); err == nil && ae.Error != "" {
		return &apperrors.GameFlowError{Code: ae.Code, Message: ae.Error}
	}
	return &apperrors.GameFlowError{Code: resp.Status, Message: fmt.Sprintf("request rejected (%d)", resp.Status)}
}
