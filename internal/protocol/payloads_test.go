package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerPayload_ShortKeysAndByteModifiers(t *testing.T) {
	data, err := json.Marshal(AnswerPayload{
		GameID:     "g1",
		PlayerID:   "p2",
		QuestionID: "q9",
		Answer:     2,
		LatencyCs:  154, // 1.54s
		Modifiers:  []ModifierKind{ModifierFiftyFifty, ModifierExtraTime},
	})
	require.NoError(t, err)

	// 短键名 + 道具字节码数组
	assert.JSONEq(t, `{"gid":"g1","pid":"p2","qid":"q9","a":2,"lat":154,"mod":[1,2]}`, string(data))
}

func TestPhaseChangePayload_EnumAsSmallInt(t *testing.T) {
	data, err := json.Marshal(PhaseChangePayload{Phase: PhaseWar, Round: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ph":3,"r":2}`, string(data))
}

func TestCentisConversion(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		cs   int
	}{
		{name: "whole seconds", d: 15 * time.Second, cs: 1500},
		{name: "sub second", d: 370 * time.Millisecond, cs: 37},
		{name: "zero", d: 0, cs: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.cs, ToCentis(tt.d))
			assert.Equal(t, tt.d, FromCentis(tt.cs))
		})
	}
}
