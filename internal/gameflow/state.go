// Package gameflow owns the phase/turn state machine. It is the only
// component that mutates player, territory and phase state, and it does so
// exclusively on server-confirmed events arriving through the transport.
package gameflow

import "github.com/conquiz/conquiz-client/internal/protocol"

// SubState is the fine-grained step inside the active phase. At most one
// sub-state is active at a time; it is cleared on every phase change.
type SubState int

const (
	SubNone SubState = iota

	// Conquest
	SubWaitingQuestion
	SubAnsweringQuestion
	SubSelectingTerritory
	SubTerritoryAssigned

	// War
	SubSelectingTarget
	SubResolvingBattle
	SubTurnEnded
)

// String returns the sub-state name.
func (s SubState) String() string {
	switch s {
	case SubWaitingQuestion:
		return "WaitingQuestion"
	case SubAnsweringQuestion:
		return "AnsweringQuestion"
	case SubSelectingTerritory:
		return "SelectingTerritory"
	case SubTerritoryAssigned:
		return "TerritoryAssigned"
	case SubSelectingTarget:
		return "SelectingTarget"
	case SubResolvingBattle:
		return "ResolvingBattle"
	case SubTurnEnded:
		return "TurnEnded"
	default:
		return "None"
	}
}

// PlayerSlot is one of the up-to-three players in a match. Slots are created
// when the roster arrives and never removed; eliminated players stay visible
// until game over.
type PlayerSlot struct {
	ID           string
	Name         string
	Color        protocol.PlayerColor
	Score        int
	IsEliminated bool
	IsLocal      bool
	JokerCounts  map[protocol.ModifierKind]int
}

// Territory is one capturable board tile. Mutated only by server-confirmed
// capture/attack events, never speculatively.
type Territory struct {
	ID                  int
	OwnerID             string
	State               protocol.TerritoryState
	CastleHitsRemaining int
}

// GameState holds the client-side view of one match.
type GameState struct {
	GameID      string
	Round       int
	CurrentTurn string
	Players     map[string]*PlayerSlot
	Territories map[int]*Territory
}

// NewGameState creates an empty game state.
func NewGameState() *GameState {
	return &GameState{
		Players:     make(map[string]*PlayerSlot),
		Territories: make(map[int]*Territory),
	}
}

// Reset clears all match state.
func (gs *GameState) Reset() {
	gs.GameID = ""
	gs.Round = 0
	gs.CurrentTurn = ""
	gs.Players = make(map[string]*PlayerSlot)
	gs.Territories = make(map[int]*Territory)
}

// addPlayer inserts a slot from roster info.
func (gs *GameState) addPlayer(info protocol.PlayerInfo, localID string) *PlayerSlot {
	jokers := make(map[protocol.ModifierKind]int, len(info.Jokers))
	for k, v := range info.Jokers {
		jokers[k] = v
	}
	slot := &PlayerSlot{
		ID:          info.ID,
		Name:        info.Name,
		Color:       info.Color,
		Score:       info.Score,
		IsLocal:     info.ID == localID,
		JokerCounts: jokers,
	}
	gs.Players[info.ID] = slot
	return slot
}

// setBoard replaces the territory map from server info.
func (gs *GameState) setBoard(infos []protocol.TerritoryInfo) {
	gs.Territories = make(map[int]*Territory, len(infos))
	for _, ti := range infos {
		gs.Territories[ti.ID] = &Territory{
			ID:                  ti.ID,
			OwnerID:             ti.OwnerID,
			State:               ti.State,
			CastleHitsRemaining: ti.CastleHits,
		}
	}
}
