package eventbus

import "github.com/conquiz/conquiz-client/internal/protocol"

// Collaborator-facing topics. The transport publishes connection/network
// topics directly; everything else is published by the game-flow layer after
// it has applied the server event to its state.
const (
	// Connection
	TopicConnected       Topic = "connection.connected"
	TopicDisconnected    Topic = "connection.disconnected"
	TopicReconnecting    Topic = "connection.reconnecting"
	TopicConnectionError Topic = "connection.error"

	// Lobby
	TopicSearchingGame Topic = "lobby.searching"
	TopicGameFound     Topic = "lobby.game_found"
	TopicPlayerJoined  Topic = "lobby.player_joined"
	TopicPlayerLeft    Topic = "lobby.player_left"
	TopicGameStarting  Topic = "lobby.game_starting"

	// Phase / turn
	TopicPhaseChanged    Topic = "phase.changed"
	TopicSubStateChanged Topic = "phase.substate"
	TopicTurnChanged     Topic = "phase.turn"

	// Question
	TopicQuestionReceived Topic = "question.received"
	TopicTimerStarted     Topic = "question.timer_started"
	TopicTimerExpired     Topic = "question.timer_expired"
	TopicPlayerAnswered   Topic = "question.player_answered"
	TopicAnswerResult     Topic = "question.answer_result"

	// Territory
	TopicTerritoryCaptured Topic = "territory.captured"
	TopicTerritoryUpdated  Topic = "territory.updated"

	// Combat
	TopicAttackStarted     Topic = "combat.attack_started"
	TopicAttackResolved    Topic = "combat.attack_resolved"
	TopicDefenseSuccessful Topic = "combat.defense_successful"

	// Score / lifecycle
	TopicScoreChanged     Topic = "score.changed"
	TopicModifierUsed     Topic = "score.modifier_used"
	TopicModifierResult   Topic = "score.modifier_result"
	TopicPlayerEliminated Topic = "lifecycle.player_eliminated"
	TopicGameEnded        Topic = "lifecycle.game_ended"

	// Network
	TopicSyncCompleted Topic = "network.sync_completed"
	TopicPingUpdated   Topic = "network.ping_updated"

	// Auth
	TopicAuthStateChanged Topic = "auth.state_changed"
)

// Inbound stream topics. The transport routes every decoded stream event by
// its type tag onto exactly one of these; the game-flow machine is the
// intended subscriber. Data is the decoded *protocol.Message.
const (
	NetPlayerJoined     Topic = "net.player_joined"
	NetPlayerLeft       Topic = "net.player_left"
	NetGameStarting     Topic = "net.game_starting"
	NetQuestion         Topic = "net.question"
	NetAnswerResult     Topic = "net.answer_result"
	NetPlayerAnswered   Topic = "net.player_answered"
	NetQuestionTimeout  Topic = "net.question_timeout"
	NetPhaseChange      Topic = "net.phase_change"
	NetTurnChanged      Topic = "net.turn_changed"
	NetTerritoryUpdate  Topic = "net.territory_update"
	NetScoreUpdate      Topic = "net.score_update"
	NetAttackStarted    Topic = "net.attack_started"
	NetAttackResult     Topic = "net.attack_result"
	NetDefenseResult    Topic = "net.defense_result"
	NetModifierUsed     Topic = "net.modifier_used"
	NetModifierResult   Topic = "net.modifier_result"
	NetGameEnd          Topic = "net.game_end"
	NetPlayerEliminated Topic = "net.player_eliminated"
	NetSyncState        Topic = "net.sync_state"
	NetError            Topic = "net.error"
)

// ConnectionErrorEvent is published on TopicConnectionError.
type ConnectionErrorEvent struct {
	Message string
	Code    int
}

// DisconnectedEvent is published on TopicDisconnected.
type DisconnectedEvent struct {
	Reason string
}

// ReconnectingEvent is published once per reconnection attempt.
type ReconnectingEvent struct {
	Attempt int
	Max     int
}

// PingUpdatedEvent carries the latest heartbeat round trip.
type PingUpdatedEvent struct {
	Millis int64
}

// GameFoundEvent is published when matchmaking assigns a game.
type GameFoundEvent struct {
	GameID string
}

// PhaseChangedEvent carries the previous and the new phase.
type PhaseChangedEvent struct {
	Old protocol.Phase
	New protocol.Phase
}

// SubStateChangedEvent is published whenever the active sub-state moves.
type SubStateChangedEvent struct {
	Phase protocol.Phase
	Sub   string
}

// TurnChangedEvent reflects the server-declared current player.
type TurnChangedEvent struct {
	PlayerID string
}

// TimerStartedEvent carries the local countdown limit for the question.
type TimerStartedEvent struct {
	QuestionID string
	Limit      int // centiseconds
}

// TimerExpiredEvent fires when the local countdown reaches zero unanswered.
type TimerExpiredEvent struct {
	QuestionID string
}

// ScoreChangedEvent carries the previous and the new score.
type ScoreChangedEvent struct {
	PlayerID string
	Old      int
	New      int
}

// TerritoryCapturedEvent is published when ownership changes.
type TerritoryCapturedEvent struct {
	TerritoryID int
	OldOwnerID  string
	NewOwnerID  string
}

// ModifierUsedEvent reflects the server-confirmed joker balance.
type ModifierUsedEvent struct {
	PlayerID  string
	Kind      protocol.ModifierKind
	Remaining int
}

// ModifierResultEvent carries the effect of a joker on the active question.
type ModifierResultEvent struct {
	Kind           protocol.ModifierKind
	RemovedOptions []int
	ExtraTimeCs    int
}

// PlayerEliminatedEvent is published when a castle falls.
type PlayerEliminatedEvent struct {
	PlayerID string
}

// GameEndedEvent carries the final ranking.
type GameEndedEvent struct {
	Results []protocol.PlayerResult
}

// AuthStateChangedEvent is published on every auth state transition.
type AuthStateChangedEvent struct {
	State string
}
