package gameflow

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conquiz/conquiz-client/internal/apperrors"
	"github.com/conquiz/conquiz-client/internal/config"
	"github.com/conquiz/conquiz-client/internal/eventbus"
	"github.com/conquiz/conquiz-client/internal/protocol"
	"github.com/conquiz/conquiz-client/internal/protocol/codec"
	"github.com/conquiz/conquiz-client/internal/transport"
)

type apiCall struct {
	method string
	path   string
	body   any
}

type stubAPI struct {
	mu    sync.Mutex
	calls []apiCall
	resp  *transport.Response
	err   error
}

func (s *stubAPI) record(method, path string, body any) (*transport.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, apiCall{method: method, path: path, body: body})
	if s.resp == nil {
		return &transport.Response{Status: http.StatusOK, Body: []byte(`{}`)}, s.err
	}
	return s.resp, s.err
}

func (s *stubAPI) Do(_ context.Context, method, path string, body any) (*transport.Response, error) {
	return s.record(method, path, body)
}

func (s *stubAPI) DoOnce(_ context.Context, method, path string, body any) (*transport.Response, error) {
	return s.record(method, path, body)
}

func (s *stubAPI) callCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.path == path {
			n++
		}
	}
	return n
}

type streamCall struct {
	msgType protocol.NetworkMessageType
	payload any
}

type stubStream struct {
	mu    sync.Mutex
	calls []streamCall
}

func (s *stubStream) Enqueue(msgType protocol.NetworkMessageType, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, streamCall{msgType: msgType, payload: payload})
}

func newTestMachine(t *testing.T) (*Machine, *stubAPI, *stubStream, *eventbus.Bus) {
	t.Helper()
	bus := eventbus.New()
	api := &stubAPI{}
	stream := &stubStream{}
	m := NewMachine(api, stream, config.GameConfig{QuestionTime: 15}, bus)
	m.Start("u1")
	t.Cleanup(m.Stop)
	return m, api, stream, bus
}

// pushNet delivers a stream event the way the transport would.
func pushNet(t *testing.T, bus *eventbus.Bus, topic eventbus.Topic, msgType protocol.NetworkMessageType, payload any) {
	t.Helper()
	bus.Publish(topic, codec.MustNewMessage(msgType, payload))
}

func startGame(t *testing.T, bus *eventbus.Bus) {
	t.Helper()
	pushNet(t, bus, eventbus.NetGameStarting, protocol.MsgGameStarting, protocol.GameStartingPayload{
		GameID: "g1",
		Players: []protocol.PlayerInfo{
			{ID: "u1", Name: "alice", Color: protocol.ColorGreen, Jokers: map[protocol.ModifierKind]int{protocol.ModifierFiftyFifty: 1}},
			{ID: "u2", Name: "bob", Color: protocol.ColorBlue},
			{ID: "u3", Name: "carol", Color: protocol.ColorRed},
		},
		Territories: []protocol.TerritoryInfo{
			{ID: 1, OwnerID: "u1", State: protocol.TerritoryCastle, CastleHits: 3},
			{ID: 7, OwnerID: "u1", State: protocol.TerritoryNormal},
			{ID: 8, State: protocol.TerritoryEmpty},
		},
	})
}

func enterPhase(t *testing.T, bus *eventbus.Bus, phase protocol.Phase, round int) {
	t.Helper()
	pushNet(t, bus, eventbus.NetPhaseChange, protocol.MsgPhaseChange, protocol.PhaseChangePayload{Phase: phase, Round: round})
}

func dealQuestion(t *testing.T, bus *eventbus.Bus, qid string) {
	t.Helper()
	pushNet(t, bus, eventbus.NetQuestion, protocol.MsgQuestion, protocol.QuestionPayload{
		GameID:      "g1",
		QuestionID:  qid,
		Round:       1,
		Text:        "capital of France?",
		Options:     []string{"Paris", "Lyon", "Nice", "Lille"},
		TimeLimitCs: 1500,
	})
}

func TestGameStartingInitializesState(t *testing.T) {
	m, _, _, bus := newTestMachine(t)

	startGame(t, bus)

	assert.Equal(t, "g1", m.GameID())
	assert.Equal(t, protocol.PhaseLobby, m.Phase())

	local := m.Player("u1")
	require.NotNil(t, local)
	assert.True(t, local.IsLocal)
	assert.Equal(t, 1, local.JokerCounts[protocol.ModifierFiftyFifty])

	other := m.Player("u2")
	require.NotNil(t, other)
	assert.False(t, other.IsLocal)

	castle := m.Territory(1)
	require.NotNil(t, castle)
	assert.Equal(t, protocol.TerritoryCastle, castle.State)
	assert.Equal(t, 3, castle.CastleHitsRemaining)
}

func TestSubmitAnswerOnlyOnce(t *testing.T) {
	m, api, _, bus := newTestMachine(t)
	startGame(t, bus)
	enterPhase(t, bus, protocol.PhaseConquest, 1)
	dealQuestion(t, bus, "q1")

	require.NoError(t, m.SubmitAnswer(context.Background(), 2, nil))

	err := m.SubmitAnswer(context.Background(), 3, nil)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateSubmission)
	assert.Equal(t, 1, api.callCount("/game/answer"))
}

func TestSubmitAnswerLockoutSurvivesSendFailure(t *testing.T) {
	m, api, _, bus := newTestMachine(t)
	startGame(t, bus)
	enterPhase(t, bus, protocol.PhaseConquest, 1)
	dealQuestion(t, bus, "q1")

	api.err = apperrors.ErrUnreachable
	err := m.SubmitAnswer(context.Background(), 1, nil)
	require.Error(t, err)

	// The server may have received the first attempt; no second submission.
	err = m.SubmitAnswer(context.Background(), 1, nil)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateSubmission)
}

func TestSubmitAnswerWithoutQuestion(t *testing.T) {
	m, api, _, bus := newTestMachine(t)
	startGame(t, bus)
	enterPhase(t, bus, protocol.PhaseConquest, 1)

	err := m.SubmitAnswer(context.Background(), 0, nil)
	assert.ErrorIs(t, err, apperrors.ErrOutOfOrderEvent)
	assert.Zero(t, api.callCount("/game/answer"))
}

func TestNextQuestionReleasesLockout(t *testing.T) {
	m, api, _, bus := newTestMachine(t)
	startGame(t, bus)
	enterPhase(t, bus, protocol.PhaseConquest, 1)

	dealQuestion(t, bus, "q1")
	require.NoError(t, m.SubmitAnswer(context.Background(), 0, nil))

	dealQuestion(t, bus, "q2")
	require.NoError(t, m.SubmitAnswer(context.Background(), 1, nil))
	assert.Equal(t, 2, api.callCount("/game/answer"))
}

func TestTerritoryUpdateMutatesAndNotifiesOnce(t *testing.T) {
	m, _, _, bus := newTestMachine(t)
	startGame(t, bus)
	enterPhase(t, bus, protocol.PhaseWar, 2)

	var updated, captured int
	bus.Subscribe(eventbus.TopicTerritoryUpdated, func(any) { updated++ })
	bus.Subscribe(eventbus.TopicTerritoryCaptured, func(any) { captured++ })

	pushNet(t, bus, eventbus.NetTerritoryUpdate, protocol.MsgTerritoryUpdate, protocol.TerritoryUpdatePayload{
		TerritoryID: 7,
		OwnerID:     "u2",
		State:       protocol.TerritoryNormal,
	})

	tile := m.Territory(7)
	require.NotNil(t, tile)
	assert.Equal(t, "u2", tile.OwnerID)
	assert.Equal(t, 1, updated)
	assert.Equal(t, 1, captured)
	assert.Equal(t, protocol.PhaseWar, m.Phase(), "a territory update must not move the phase")
}

func TestTerritoryUpdateUnknownTileDropped(t *testing.T) {
	m, _, _, bus := newTestMachine(t)
	startGame(t, bus)

	var updated int
	bus.Subscribe(eventbus.TopicTerritoryUpdated, func(any) { updated++ })

	pushNet(t, bus, eventbus.NetTerritoryUpdate, protocol.MsgTerritoryUpdate, protocol.TerritoryUpdatePayload{
		TerritoryID: 99,
		OwnerID:     "u2",
	})

	assert.Zero(t, updated)
	assert.Nil(t, m.Territory(99))
}

func TestPhaseChangeResetsSubState(t *testing.T) {
	m, _, _, bus := newTestMachine(t)
	startGame(t, bus)
	enterPhase(t, bus, protocol.PhaseConquest, 1)
	dealQuestion(t, bus, "q1")
	require.Equal(t, SubAnsweringQuestion, m.Sub())

	var got eventbus.PhaseChangedEvent
	bus.Subscribe(eventbus.TopicPhaseChanged, func(data any) {
		got = data.(eventbus.PhaseChangedEvent)
	})

	enterPhase(t, bus, protocol.PhaseWar, 2)

	assert.Equal(t, protocol.PhaseConquest, got.Old)
	assert.Equal(t, protocol.PhaseWar, got.New)
	assert.Equal(t, SubNone, m.Sub())
	assert.Equal(t, protocol.PhaseWar, m.Phase())
}

func TestAnswerResultMovesLocalSubState(t *testing.T) {
	tests := []struct {
		name    string
		phase   protocol.Phase
		correct bool
		want    SubState
	}{
		{"conquest correct", protocol.PhaseConquest, true, SubSelectingTerritory},
		{"conquest wrong", protocol.PhaseConquest, false, SubTerritoryAssigned},
		{"war", protocol.PhaseWar, true, SubResolvingBattle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, _, bus := newTestMachine(t)
			startGame(t, bus)
			enterPhase(t, bus, tt.phase, 1)
			dealQuestion(t, bus, "q1")

			pushNet(t, bus, eventbus.NetAnswerResult, protocol.MsgAnswerResult, protocol.AnswerResultPayload{
				QuestionID: "q1",
				PlayerID:   "u1",
				Correct:    tt.correct,
				ScoreDelta: 100,
			})

			assert.Equal(t, tt.want, m.Sub())
			assert.Equal(t, 100, m.Player("u1").Score)
		})
	}
}

func TestScoreUpdatePublishesOldAndNew(t *testing.T) {
	m, _, _, bus := newTestMachine(t)
	startGame(t, bus)

	var got eventbus.ScoreChangedEvent
	bus.Subscribe(eventbus.TopicScoreChanged, func(data any) {
		got = data.(eventbus.ScoreChangedEvent)
	})

	pushNet(t, bus, eventbus.NetScoreUpdate, protocol.MsgScoreUpdate, protocol.ScoreUpdatePayload{
		PlayerID: "u2", Score: 250,
	})

	assert.Equal(t, "u2", got.PlayerID)
	assert.Equal(t, 0, got.Old)
	assert.Equal(t, 250, got.New)
	assert.Equal(t, 250, m.Player("u2").Score)
}

func TestAttackResultCastleDestroyed(t *testing.T) {
	m, _, _, bus := newTestMachine(t)
	startGame(t, bus)
	enterPhase(t, bus, protocol.PhaseWar, 3)

	var eliminated []string
	bus.Subscribe(eventbus.TopicPlayerEliminated, func(data any) {
		eliminated = append(eliminated, data.(eventbus.PlayerEliminatedEvent).PlayerID)
	})

	pushNet(t, bus, eventbus.NetAttackResult, protocol.MsgAttackResult, protocol.AttackResultPayload{
		Outcome:    protocol.AttackCastleDestroyed,
		AttackerID: "u2",
		DefenderID: "u1",
		From:       7,
		To:         1,
	})

	tile := m.Territory(1)
	require.NotNil(t, tile)
	assert.Equal(t, "u2", tile.OwnerID)
	assert.True(t, m.Player("u1").IsEliminated)
	assert.Equal(t, []string{"u1"}, eliminated)
}

func TestAttackInvalidTargetRollsBackSelection(t *testing.T) {
	m, api, _, bus := newTestMachine(t)
	startGame(t, bus)
	enterPhase(t, bus, protocol.PhaseWar, 3)
	pushNet(t, bus, eventbus.NetTurnChanged, protocol.MsgTurnChanged, protocol.TurnChangedPayload{PlayerID: "u1"})
	require.Equal(t, SubSelectingTarget, m.Sub())

	require.NoError(t, m.SubmitAttack(context.Background(), 7, 8, false, 0))
	require.Equal(t, SubResolvingBattle, m.Sub())
	assert.Equal(t, 1, api.callCount("/game/attack"))

	pushNet(t, bus, eventbus.NetAttackResult, protocol.MsgAttackResult, protocol.AttackResultPayload{
		Outcome:    protocol.AttackInvalidTarget,
		AttackerID: "u1",
		From:       7,
		To:         8,
	})

	assert.Equal(t, SubSelectingTarget, m.Sub())
	// No board mutation for an invalid target.
	assert.Equal(t, "", m.Territory(8).OwnerID)
}

func TestSubmitAttackOutOfTurn(t *testing.T) {
	m, api, _, bus := newTestMachine(t)
	startGame(t, bus)
	enterPhase(t, bus, protocol.PhaseWar, 3)

	err := m.SubmitAttack(context.Background(), 7, 8, false, 0)
	assert.ErrorIs(t, err, apperrors.ErrOutOfOrderEvent)
	assert.Zero(t, api.callCount("/game/attack"))
}

func TestGameEndFreezesMachine(t *testing.T) {
	m, _, _, bus := newTestMachine(t)
	startGame(t, bus)
	enterPhase(t, bus, protocol.PhaseWar, 3)

	var ended *eventbus.GameEndedEvent
	bus.Subscribe(eventbus.TopicGameEnded, func(data any) {
		ev := data.(eventbus.GameEndedEvent)
		ended = &ev
	})

	pushNet(t, bus, eventbus.NetGameEnd, protocol.MsgGameEnd, protocol.GameEndPayload{
		GameID: "g1",
		Results: []protocol.PlayerResult{
			{PlayerID: "u2", Rank: 1, Score: 900},
			{PlayerID: "u1", Rank: 2, Score: 700},
			{PlayerID: "u3", Rank: 3, Score: 100},
		},
	})

	require.NotNil(t, ended)
	assert.Len(t, ended.Results, 3)
	assert.Equal(t, protocol.PhaseGameOver, m.Phase())

	// Frozen: late events no longer move the machine.
	dealQuestion(t, bus, "q9")
	enterPhase(t, bus, protocol.PhaseConquest, 1)
	assert.Equal(t, protocol.PhaseGameOver, m.Phase())
	assert.Equal(t, SubNone, m.Sub())

	// Player slots are part of the frozen view too.
	var eliminated int
	bus.Subscribe(eventbus.TopicPlayerEliminated, func(any) { eliminated++ })
	pushNet(t, bus, eventbus.NetPlayerEliminated, protocol.MsgPlayerEliminated, protocol.PlayerEliminatedPayload{
		PlayerID: "u2",
	})
	pushNet(t, bus, eventbus.NetModifierUsed, protocol.MsgModifierUsed, protocol.ModifierUsedPayload{
		PlayerID: "u1", Kind: protocol.ModifierFiftyFifty, Remaining: 0,
	})

	assert.False(t, m.Player("u2").IsEliminated)
	assert.Equal(t, 1, m.Player("u1").JokerCounts[protocol.ModifierFiftyFifty])
	assert.Zero(t, eliminated)
}

func TestSyncStateReplacesView(t *testing.T) {
	m, _, _, bus := newTestMachine(t)
	startGame(t, bus)
	enterPhase(t, bus, protocol.PhaseConquest, 1)
	dealQuestion(t, bus, "q1")

	var synced int
	bus.Subscribe(eventbus.TopicSyncCompleted, func(any) { synced++ })

	pushNet(t, bus, eventbus.NetSyncState, protocol.MsgSyncState, protocol.SyncStatePayload{
		GameID:      "g1",
		Phase:       protocol.PhaseWar,
		Round:       4,
		CurrentTurn: "u3",
		Players: []protocol.PlayerInfo{
			{ID: "u1", Name: "alice", Score: 300},
			{ID: "u3", Name: "carol", Score: 500},
		},
		Territories: []protocol.TerritoryInfo{
			{ID: 7, OwnerID: "u3", State: protocol.TerritoryNormal},
		},
	})

	assert.Equal(t, 1, synced)
	assert.Equal(t, protocol.PhaseWar, m.Phase())
	assert.Equal(t, SubNone, m.Sub())
	assert.Equal(t, "u3", m.CurrentTurn())
	assert.Equal(t, 300, m.Player("u1").Score)
	assert.Nil(t, m.Player("u2"))
	assert.Equal(t, "u3", m.Territory(7).OwnerID)
	assert.Nil(t, m.Territory(1))
}

func TestReconnectRequestsSync(t *testing.T) {
	_, _, stream, bus := newTestMachine(t)
	startGame(t, bus)

	bus.Publish(eventbus.TopicConnected, nil)

	stream.mu.Lock()
	defer stream.mu.Unlock()
	require.Len(t, stream.calls, 1)
	assert.Equal(t, protocol.MsgSyncRequest, stream.calls[0].msgType)
	assert.Equal(t, protocol.SyncRequestPayload{GameID: "g1", PlayerID: "u1"}, stream.calls[0].payload)
}

func TestConnectWithoutGameIsQuiet(t *testing.T) {
	_, _, stream, bus := newTestMachine(t)

	bus.Publish(eventbus.TopicConnected, nil)

	stream.mu.Lock()
	defer stream.mu.Unlock()
	assert.Empty(t, stream.calls)
}

func TestQuestionTimerExpires(t *testing.T) {
	_, _, _, bus := newTestMachine(t)
	startGame(t, bus)
	enterPhase(t, bus, protocol.PhaseConquest, 1)

	expired := make(chan eventbus.TimerExpiredEvent, 1)
	bus.Subscribe(eventbus.TopicTimerExpired, func(data any) {
		expired <- data.(eventbus.TimerExpiredEvent)
	})

	pushNet(t, bus, eventbus.NetQuestion, protocol.MsgQuestion, protocol.QuestionPayload{
		GameID:      "g1",
		QuestionID:  "q1",
		TimeLimitCs: 2, // 20ms
	})

	select {
	case ev := <-expired:
		assert.Equal(t, "q1", ev.QuestionID)
	case <-time.After(time.Second):
		t.Fatal("timer never expired")
	}
}

func TestAnswerSuppressesLocalTimer(t *testing.T) {
	m, _, _, bus := newTestMachine(t)
	startGame(t, bus)
	enterPhase(t, bus, protocol.PhaseConquest, 1)

	var fired int
	var mu sync.Mutex
	bus.Subscribe(eventbus.TopicTimerExpired, func(any) {
		mu.Lock()
		fired++
		mu.Unlock()
	})

	pushNet(t, bus, eventbus.NetQuestion, protocol.MsgQuestion, protocol.QuestionPayload{
		GameID:      "g1",
		QuestionID:  "q1",
		TimeLimitCs: 2,
	})
	require.NoError(t, m.SubmitAnswer(context.Background(), 0, nil))

	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, fired)
}

func TestServerTimeoutPublishesTimerExpiredOnce(t *testing.T) {
	_, _, _, bus := newTestMachine(t)
	startGame(t, bus)
	enterPhase(t, bus, protocol.PhaseConquest, 1)
	dealQuestion(t, bus, "q1")

	var fired int
	bus.Subscribe(eventbus.TopicTimerExpired, func(any) { fired++ })

	pushNet(t, bus, eventbus.NetQuestionTimeout, protocol.MsgQuestionTimeout, protocol.QuestionTimeoutPayload{QuestionID: "q1"})
	pushNet(t, bus, eventbus.NetQuestionTimeout, protocol.MsgQuestionTimeout, protocol.QuestionTimeoutPayload{QuestionID: "q1"})

	assert.Equal(t, 1, fired)
}

func TestUseModifierRequiresBalance(t *testing.T) {
	m, api, _, bus := newTestMachine(t)
	startGame(t, bus)

	// u1 holds one fifty-fifty and no shields.
	err := m.UseModifier(context.Background(), protocol.ModifierShield)
	require.Error(t, err)
	assert.Zero(t, api.callCount("/game/joker"))

	require.NoError(t, m.UseModifier(context.Background(), protocol.ModifierFiftyFifty))
	assert.Equal(t, 1, api.callCount("/game/joker"))

	pushNet(t, bus, eventbus.NetModifierUsed, protocol.MsgModifierUsed, protocol.ModifierUsedPayload{
		PlayerID: "u1", Kind: protocol.ModifierFiftyFifty, Remaining: 0,
	})
	assert.Zero(t, m.Player("u1").JokerCounts[protocol.ModifierFiftyFifty])

	err = m.UseModifier(context.Background(), protocol.ModifierFiftyFifty)
	require.Error(t, err)
}

func TestFindGameRecordsAssignment(t *testing.T) {
	m, api, _, bus := newTestMachine(t)
	api.resp = &transport.Response{Status: http.StatusOK, Body: []byte(`{"gid":"g42"}`)}

	var searching, found int
	bus.Subscribe(eventbus.TopicSearchingGame, func(any) { searching++ })
	bus.Subscribe(eventbus.TopicGameFound, func(any) { found++ })

	gameID, err := m.FindGame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "g42", gameID)
	assert.Equal(t, "g42", m.GameID())
	assert.Equal(t, 1, searching)
	assert.Equal(t, 1, found)
}

func TestResetRevivesFrozenMachine(t *testing.T) {
	m, _, _, bus := newTestMachine(t)
	startGame(t, bus)
	pushNet(t, bus, eventbus.NetGameEnd, protocol.MsgGameEnd, protocol.GameEndPayload{GameID: "g1"})
	require.Equal(t, protocol.PhaseGameOver, m.Phase())

	m.Reset()

	assert.Equal(t, protocol.PhaseNone, m.Phase())
	assert.Empty(t, m.GameID())

	startGame(t, bus)
	assert.Equal(t, protocol.PhaseLobby, m.Phase())
}
