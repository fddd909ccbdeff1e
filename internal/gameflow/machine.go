package gameflow

import (
	"context"
	"sync"
	"time"

	"github.com/conquiz/conquiz-client/internal/config"
	"github.com/conquiz/conquiz-client/internal/eventbus"
	"github.com/conquiz/conquiz-client/internal/logger"
	"github.com/conquiz/conquiz-client/internal/protocol"
	"github.com/conquiz/conquiz-client/internal/protocol/codec"
	"github.com/conquiz/conquiz-client/internal/transport"
)

// Authorizer is the slice of the session manager the machine sends REST
// game actions through. Every outgoing request is authorized there.
type Authorizer interface {
	Do(ctx context.Context, method, path string, body any) (*transport.Response, error)
	DoOnce(ctx context.Context, method, path string, body any) (*transport.Response, error)
}

// Streamer is the slice of the transport client used for queued stream
// messages (sync requests, best-effort telemetry).
type Streamer interface {
	Enqueue(msgType protocol.NetworkMessageType, payload any)
}

// busEvent is a pending publication collected under the lock and delivered
// after it is released, so subscribers may call back into the machine.
type busEvent struct {
	topic eventbus.Topic
	data  any
}

// Machine sequences questions, answers, attacks and phase transitions.
// Transitions are driven exclusively by inbound server events; the machine
// never predicts state locally.
type Machine struct {
	api    Authorizer
	stream Streamer
	bus    *eventbus.Bus
	cfg    config.GameConfig

	mu      sync.Mutex
	state   *GameState
	phase   protocol.Phase
	sub     SubState
	localID string
	frozen  bool

	hasAnswered      bool
	questionID       string
	questionStart    time.Time
	questionDeadline time.Time
	questionTimer    *time.Timer

	unsubs []func()
}

// NewMachine creates a machine in PhaseNone.
func NewMachine(api Authorizer, stream Streamer, cfg config.GameConfig, bus *eventbus.Bus) *Machine {
	return &Machine{
		api:    api,
		stream: stream,
		bus:    bus,
		cfg:    cfg,
		state:  NewGameState(),
		phase:  protocol.PhaseNone,
	}
}

// Start subscribes the machine to the inbound stream topics for the given
// local player. Call Stop before starting again.
func (m *Machine) Start(localPlayerID string) {
	m.mu.Lock()
	m.localID = localPlayerID
	m.mu.Unlock()

	m.subscribe(eventbus.NetPlayerJoined, handle(m, (*Machine).onPlayerJoined))
	m.subscribe(eventbus.NetPlayerLeft, handle(m, (*Machine).onPlayerLeft))
	m.subscribe(eventbus.NetGameStarting, handle(m, (*Machine).onGameStarting))
	m.subscribe(eventbus.NetQuestion, handle(m, (*Machine).onQuestion))
	m.subscribe(eventbus.NetAnswerResult, handle(m, (*Machine).onAnswerResult))
	m.subscribe(eventbus.NetPlayerAnswered, handle(m, (*Machine).onPlayerAnswered))
	m.subscribe(eventbus.NetQuestionTimeout, handle(m, (*Machine).onQuestionTimeout))
	m.subscribe(eventbus.NetPhaseChange, handle(m, (*Machine).onPhaseChange))
	m.subscribe(eventbus.NetTurnChanged, handle(m, (*Machine).onTurnChanged))
	m.subscribe(eventbus.NetTerritoryUpdate, handle(m, (*Machine).onTerritoryUpdate))
	m.subscribe(eventbus.NetScoreUpdate, handle(m, (*Machine).onScoreUpdate))
	m.subscribe(eventbus.NetAttackStarted, handle(m, (*Machine).onAttackStarted))
	m.subscribe(eventbus.NetAttackResult, handle(m, (*Machine).onAttackResult))
	m.subscribe(eventbus.NetDefenseResult, handle(m, (*Machine).onDefenseResult))
	m.subscribe(eventbus.NetModifierUsed, handle(m, (*Machine).onModifierUsed))
	m.subscribe(eventbus.NetModifierResult, handle(m, (*Machine).onModifierResult))
	m.subscribe(eventbus.NetGameEnd, handle(m, (*Machine).onGameEnd))
	m.subscribe(eventbus.NetPlayerEliminated, handle(m, (*Machine).onPlayerEliminated))
	m.subscribe(eventbus.NetSyncState, handle(m, (*Machine).onSyncState))
	m.subscribe(eventbus.NetError, handle(m, (*Machine).onServerError))

	// After a reconnect the queue was dropped; re-derive state via sync
	// instead of replaying.
	m.subscribe(eventbus.TopicConnected, func(any) { m.requestSyncIfActive() })
}

// Stop detaches from the bus and cancels the question timer.
func (m *Machine) Stop() {
	m.mu.Lock()
	unsubs := m.unsubs
	m.unsubs = nil
	m.cancelQuestionTimerLocked()
	m.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
}

// Reset prepares the machine for a new match.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Reset()
	m.phase = protocol.PhaseNone
	m.sub = SubNone
	m.frozen = false
	m.hasAnswered = false
	m.questionID = ""
	m.cancelQuestionTimerLocked()
}

// Phase returns the active phase.
func (m *Machine) Phase() protocol.Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Sub returns the active sub-state.
func (m *Machine) Sub() SubState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sub
}

// CurrentTurn returns the server-declared current player id.
func (m *Machine) CurrentTurn() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.CurrentTurn
}

// Player returns a copy of the slot for id, or nil.
func (m *Machine) Player(id string) *PlayerSlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot, ok := m.state.Players[id]
	if !ok {
		return nil
	}
	cp := *slot
	cp.JokerCounts = make(map[protocol.ModifierKind]int, len(slot.JokerCounts))
	for k, v := range slot.JokerCounts {
		cp.JokerCounts[k] = v
	}
	return &cp
}

// Territory returns a copy of the tile, or nil.
func (m *Machine) Territory(id int) *Territory {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.state.Territories[id]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}

// GameID returns the active match id, or "".
func (m *Machine) GameID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.GameID
}

func (m *Machine) subscribe(topic eventbus.Topic, h eventbus.Handler) {
	unsub := m.bus.Subscribe(topic, h)
	m.mu.Lock()
	m.unsubs = append(m.unsubs, unsub)
	m.mu.Unlock()
}

// handle adapts a typed payload handler to a bus handler. Malformed events
// are logged and dropped; they never reach the state machine.
func handle[T any](m *Machine, fn func(*Machine, *T)) eventbus.Handler {
	return func(data any) {
		msg, ok := data.(*protocol.Message)
		if !ok {
			return
		}
		payload, err := codec.ParsePayload[T](msg)
		if err != nil {
			logger.LogError("gameflow: drop malformed event type %d: %v", msg.Type, err)
			return
		}
		fn(m, payload)
	}
}

func (m *Machine) publish(events []busEvent) {
	for _, ev := range events {
		m.bus.Publish(ev.topic, ev.data)
	}
}

// requestSyncIfActive queues a full-state sync after a stream (re)connect.
func (m *Machine) requestSyncIfActive() {
	m.mu.Lock()
	gameID, localID := m.state.GameID, m.localID
	m.mu.Unlock()
	if gameID == "" {
		return
	}
	m.stream.Enqueue(protocol.MsgSyncRequest, protocol.SyncRequestPayload{
		GameID:   gameID,
		PlayerID: localID,
	})
}

// cancelQuestionTimerLocked stops the countdown so a stale expiry can never
// fire after the player already moved on. Caller holds m.mu.
func (m *Machine) cancelQuestionTimerLocked() {
	if m.questionTimer != nil {
		m.questionTimer.Stop()
		m.questionTimer = nil
	}
}

// setSubLocked moves the sub-state and returns the pending notification.
// Caller holds m.mu.
func (m *Machine) setSubLocked(s SubState) []busEvent {
	if m.sub == s {
		return nil
	}
	m.sub = s
	return []busEvent{{eventbus.TopicSubStateChanged, eventbus.SubStateChangedEvent{
		Phase: m.phase,
		Sub:   s.String(),
	}}}
}
