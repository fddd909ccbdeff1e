package gameflow

import (
	"time"

	"github.com/conquiz/conquiz-client/internal/eventbus"
	"github.com/conquiz/conquiz-client/internal/logger"
	"github.com/conquiz/conquiz-client/internal/protocol"
)

// Inbound stream event handlers. Every handler follows the same shape:
// mutate under the lock, collect notifications, publish after unlocking.
// After game over the machine is frozen and ignores gameplay events; only a
// full sync or Reset can revive it.

func (m *Machine) onPlayerJoined(p *protocol.PlayerJoinedPayload) {
	m.mu.Lock()
	if m.frozen {
		m.mu.Unlock()
		return
	}
	m.state.addPlayer(p.Player, m.localID)
	m.mu.Unlock()

	m.bus.Publish(eventbus.TopicPlayerJoined, p.Player)
}

func (m *Machine) onPlayerLeft(p *protocol.PlayerLeftPayload) {
	m.mu.Lock()
	if m.frozen {
		m.mu.Unlock()
		return
	}
	// Mid-game the slot stays so the board remains attributable; in the
	// lobby the player is simply gone.
	if m.phase == protocol.PhaseNone || m.phase == protocol.PhaseLobby {
		delete(m.state.Players, p.PlayerID)
	}
	m.mu.Unlock()

	m.bus.Publish(eventbus.TopicPlayerLeft, p)
}

func (m *Machine) onGameStarting(p *protocol.GameStartingPayload) {
	m.mu.Lock()
	m.state.GameID = p.GameID
	m.state.Players = make(map[string]*PlayerSlot, len(p.Players))
	for _, info := range p.Players {
		m.state.addPlayer(info, m.localID)
	}
	m.state.setBoard(p.Territories)
	m.phase = protocol.PhaseLobby
	m.sub = SubNone
	m.frozen = false
	m.hasAnswered = false
	m.questionID = ""
	m.cancelQuestionTimerLocked()
	m.mu.Unlock()

	m.bus.Publish(eventbus.TopicGameStarting, p)
}

func (m *Machine) onQuestion(p *protocol.QuestionPayload) {
	m.mu.Lock()
	if m.frozen {
		m.mu.Unlock()
		return
	}
	m.questionID = p.QuestionID
	m.questionStart = time.Now()
	m.hasAnswered = false

	limit := protocol.FromCentis(p.TimeLimitCs)
	if limit <= 0 {
		limit = m.cfg.QuestionTimeDuration()
	}
	m.startQuestionTimerLocked(p.QuestionID, limit)

	events := m.setSubLocked(SubAnsweringQuestion)
	events = append(events,
		busEvent{eventbus.TopicQuestionReceived, p},
		busEvent{eventbus.TopicTimerStarted, eventbus.TimerStartedEvent{
			QuestionID: p.QuestionID,
			Limit:      protocol.ToCentis(limit),
		}},
	)
	m.mu.Unlock()
	m.publish(events)
}

// startQuestionTimerLocked arms the local countdown. The server still sends
// its own QuestionTimeout; the local timer only drives the UI without a
// round trip. Caller holds m.mu.
func (m *Machine) startQuestionTimerLocked(questionID string, limit time.Duration) {
	m.cancelQuestionTimerLocked()
	m.questionDeadline = time.Now().Add(limit)
	m.questionTimer = time.AfterFunc(limit, func() {
		m.mu.Lock()
		expired := m.questionID == questionID && !m.hasAnswered && !m.frozen
		m.mu.Unlock()
		if expired {
			m.bus.Publish(eventbus.TopicTimerExpired, eventbus.TimerExpiredEvent{QuestionID: questionID})
		}
	})
}

func (m *Machine) onAnswerResult(p *protocol.AnswerResultPayload) {
	m.mu.Lock()
	if m.frozen {
		m.mu.Unlock()
		return
	}
	var events []busEvent

	if slot, ok := m.state.Players[p.PlayerID]; ok && p.ScoreDelta != 0 {
		old := slot.Score
		slot.Score += p.ScoreDelta
		events = append(events, busEvent{eventbus.TopicScoreChanged, eventbus.ScoreChangedEvent{
			PlayerID: p.PlayerID,
			Old:      old,
			New:      slot.Score,
		}})
	}

	if p.PlayerID == m.localID && p.QuestionID == m.questionID {
		m.cancelQuestionTimerLocked()
		switch {
		case m.phase == protocol.PhaseConquest && p.Correct:
			events = append(events, m.setSubLocked(SubSelectingTerritory)...)
		case m.phase == protocol.PhaseConquest:
			events = append(events, m.setSubLocked(SubTerritoryAssigned)...)
		case m.phase == protocol.PhaseWar:
			events = append(events, m.setSubLocked(SubResolvingBattle)...)
		}
	}

	events = append(events, busEvent{eventbus.TopicAnswerResult, p})
	m.mu.Unlock()
	m.publish(events)
}

// onPlayerAnswered relays the non-authoritative "someone answered" hint.
// Correctness only arrives with AnswerResult, so no state moves here.
func (m *Machine) onPlayerAnswered(p *protocol.PlayerAnsweredPayload) {
	m.bus.Publish(eventbus.TopicPlayerAnswered, p)
}

func (m *Machine) onQuestionTimeout(p *protocol.QuestionTimeoutPayload) {
	m.mu.Lock()
	if m.frozen || p.QuestionID != m.questionID {
		m.mu.Unlock()
		return
	}
	m.cancelQuestionTimerLocked()
	answered := m.hasAnswered
	m.hasAnswered = true
	m.mu.Unlock()

	if !answered {
		m.bus.Publish(eventbus.TopicTimerExpired, eventbus.TimerExpiredEvent{QuestionID: p.QuestionID})
	}
}

func (m *Machine) onPhaseChange(p *protocol.PhaseChangePayload) {
	m.mu.Lock()
	if m.frozen {
		m.mu.Unlock()
		return
	}
	old := m.phase
	m.phase = p.Phase
	if p.Round > 0 {
		m.state.Round = p.Round
	}
	m.sub = SubNone
	m.cancelQuestionTimerLocked()
	m.mu.Unlock()

	m.bus.Publish(eventbus.TopicPhaseChanged, eventbus.PhaseChangedEvent{Old: old, New: p.Phase})
}

func (m *Machine) onTurnChanged(p *protocol.TurnChangedPayload) {
	m.mu.Lock()
	if m.frozen {
		m.mu.Unlock()
		return
	}
	m.state.CurrentTurn = p.PlayerID
	if p.Round > 0 {
		m.state.Round = p.Round
	}
	var events []busEvent
	if m.phase == protocol.PhaseWar && p.PlayerID == m.localID {
		events = m.setSubLocked(SubSelectingTarget)
	}
	events = append(events, busEvent{eventbus.TopicTurnChanged, eventbus.TurnChangedEvent{PlayerID: p.PlayerID}})
	m.mu.Unlock()
	m.publish(events)
}

func (m *Machine) onTerritoryUpdate(p *protocol.TerritoryUpdatePayload) {
	m.mu.Lock()
	if m.frozen {
		m.mu.Unlock()
		return
	}
	t, ok := m.state.Territories[p.TerritoryID]
	if !ok {
		m.mu.Unlock()
		logger.LogError("gameflow: territory update for unknown tile %d", p.TerritoryID)
		return
	}

	var events []busEvent
	oldOwner := t.OwnerID
	t.OwnerID = p.OwnerID
	t.State = p.State
	t.CastleHitsRemaining = p.CastleHits
	if oldOwner != p.OwnerID {
		events = append(events, busEvent{eventbus.TopicTerritoryCaptured, eventbus.TerritoryCapturedEvent{
			TerritoryID: p.TerritoryID,
			OldOwnerID:  oldOwner,
			NewOwnerID:  p.OwnerID,
		}})
	}
	if m.phase == protocol.PhaseConquest && m.sub == SubSelectingTerritory && p.OwnerID == m.localID {
		events = append(events, m.setSubLocked(SubTerritoryAssigned)...)
	}
	events = append(events, busEvent{eventbus.TopicTerritoryUpdated, p})
	m.mu.Unlock()
	m.publish(events)
}

func (m *Machine) onScoreUpdate(p *protocol.ScoreUpdatePayload) {
	m.mu.Lock()
	if m.frozen {
		m.mu.Unlock()
		return
	}
	slot, ok := m.state.Players[p.PlayerID]
	if !ok {
		m.mu.Unlock()
		logger.LogError("gameflow: score update for unknown player %s", p.PlayerID)
		return
	}
	old := slot.Score
	slot.Score = p.Score
	m.mu.Unlock()

	if old != p.Score {
		m.bus.Publish(eventbus.TopicScoreChanged, eventbus.ScoreChangedEvent{
			PlayerID: p.PlayerID,
			Old:      old,
			New:      p.Score,
		})
	}
}

func (m *Machine) onAttackStarted(p *protocol.AttackStartedPayload) {
	m.bus.Publish(eventbus.TopicAttackStarted, p)
}

func (m *Machine) onAttackResult(p *protocol.AttackResultPayload) {
	m.mu.Lock()
	if m.frozen {
		m.mu.Unlock()
		return
	}
	var events []busEvent

	target, known := m.state.Territories[p.To]
	switch p.Outcome {
	case protocol.AttackSuccess:
		if known {
			oldOwner := target.OwnerID
			target.OwnerID = p.AttackerID
			target.State = protocol.TerritoryNormal
			events = append(events, busEvent{eventbus.TopicTerritoryCaptured, eventbus.TerritoryCapturedEvent{
				TerritoryID: p.To,
				OldOwnerID:  oldOwner,
				NewOwnerID:  p.AttackerID,
			}})
		}
	case protocol.AttackCastleHit:
		if known {
			target.CastleHitsRemaining = p.CastleHits
		}
	case protocol.AttackCastleDestroyed:
		if known {
			oldOwner := target.OwnerID
			target.OwnerID = p.AttackerID
			target.State = protocol.TerritoryNormal
			target.CastleHitsRemaining = 0
			events = append(events, busEvent{eventbus.TopicTerritoryCaptured, eventbus.TerritoryCapturedEvent{
				TerritoryID: p.To,
				OldOwnerID:  oldOwner,
				NewOwnerID:  p.AttackerID,
			}})
		}
		if slot, ok := m.state.Players[p.DefenderID]; ok {
			slot.IsEliminated = true
			events = append(events, busEvent{eventbus.TopicPlayerEliminated, eventbus.PlayerEliminatedEvent{PlayerID: p.DefenderID}})
		}
	}

	if p.AttackerID == m.localID {
		// An invalid target rolls the attacker back to pick again; every
		// settled outcome ends the turn locally until TurnChanged.
		if p.Outcome == protocol.AttackInvalidTarget {
			events = append(events, m.setSubLocked(SubSelectingTarget)...)
		} else {
			events = append(events, m.setSubLocked(SubTurnEnded)...)
		}
	}

	events = append(events, busEvent{eventbus.TopicAttackResolved, p})
	m.mu.Unlock()
	m.publish(events)
}

func (m *Machine) onDefenseResult(p *protocol.DefenseResultPayload) {
	m.bus.Publish(eventbus.TopicDefenseSuccessful, p)
}

func (m *Machine) onModifierUsed(p *protocol.ModifierUsedPayload) {
	m.mu.Lock()
	if m.frozen {
		m.mu.Unlock()
		return
	}
	if slot, ok := m.state.Players[p.PlayerID]; ok {
		if slot.JokerCounts == nil {
			slot.JokerCounts = make(map[protocol.ModifierKind]int)
		}
		slot.JokerCounts[p.Kind] = p.Remaining
	}
	m.mu.Unlock()

	m.bus.Publish(eventbus.TopicModifierUsed, eventbus.ModifierUsedEvent{
		PlayerID:  p.PlayerID,
		Kind:      p.Kind,
		Remaining: p.Remaining,
	})
}

func (m *Machine) onModifierResult(p *protocol.ModifierResultPayload) {
	m.mu.Lock()
	if p.ExtraTimeCs > 0 && m.questionTimer != nil && !m.hasAnswered {
		// Extend the running countdown against its original deadline.
		m.questionDeadline = m.questionDeadline.Add(protocol.FromCentis(p.ExtraTimeCs))
		m.questionTimer.Reset(time.Until(m.questionDeadline))
	}
	m.mu.Unlock()

	m.bus.Publish(eventbus.TopicModifierResult, eventbus.ModifierResultEvent{
		Kind:           p.Kind,
		RemovedOptions: p.RemovedOptions,
		ExtraTimeCs:    p.ExtraTimeCs,
	})
}

func (m *Machine) onGameEnd(p *protocol.GameEndPayload) {
	m.mu.Lock()
	old := m.phase
	m.phase = protocol.PhaseGameOver
	m.sub = SubNone
	m.frozen = true
	m.cancelQuestionTimerLocked()
	m.mu.Unlock()

	m.bus.Publish(eventbus.TopicPhaseChanged, eventbus.PhaseChangedEvent{Old: old, New: protocol.PhaseGameOver})
	m.bus.Publish(eventbus.TopicGameEnded, eventbus.GameEndedEvent{Results: p.Results})
}

func (m *Machine) onPlayerEliminated(p *protocol.PlayerEliminatedPayload) {
	m.mu.Lock()
	if m.frozen {
		m.mu.Unlock()
		return
	}
	slot, ok := m.state.Players[p.PlayerID]
	already := ok && slot.IsEliminated
	if ok {
		slot.IsEliminated = true
	}
	m.mu.Unlock()

	if ok && !already {
		m.bus.Publish(eventbus.TopicPlayerEliminated, eventbus.PlayerEliminatedEvent{PlayerID: p.PlayerID})
	}
}

// onSyncState replaces the entire local view with the server snapshot.
// Used after reconnects; any locally tracked question is abandoned.
func (m *Machine) onSyncState(p *protocol.SyncStatePayload) {
	m.mu.Lock()
	m.state.GameID = p.GameID
	m.state.Round = p.Round
	m.state.CurrentTurn = p.CurrentTurn
	m.state.Players = make(map[string]*PlayerSlot, len(p.Players))
	for _, info := range p.Players {
		m.state.addPlayer(info, m.localID)
	}
	m.state.setBoard(p.Territories)
	m.phase = p.Phase
	m.sub = SubNone
	m.frozen = p.Phase == protocol.PhaseGameOver
	m.hasAnswered = false
	m.questionID = ""
	m.cancelQuestionTimerLocked()
	m.mu.Unlock()

	m.bus.Publish(eventbus.TopicSyncCompleted, p)
}

func (m *Machine) onServerError(p *protocol.ErrorPayload) {
	logger.LogError("gameflow: server error %d: %s", p.Code, p.Message)
	m.bus.Publish(eventbus.TopicConnectionError, eventbus.ConnectionErrorEvent{
		Message: p.Message,
		Code:    p.Code,
	})
}
