package transport

import (
	"time"

	"github.com/conquiz/conquiz-client/internal/eventbus"
	"github.com/conquiz/conquiz-client/internal/logger"
	"github.com/conquiz/conquiz-client/internal/protocol"
	"github.com/conquiz/conquiz-client/internal/protocol/codec"
)

// inboundTopics 消息类型标签 → 总线主题
// 每个类型恰好路由到一个主题；心跳回显在本层消化
var inboundTopics = map[protocol.NetworkMessageType]eventbus.Topic{
	protocol.MsgPlayerJoined:     eventbus.NetPlayerJoined,
	protocol.MsgPlayerLeft:       eventbus.NetPlayerLeft,
	protocol.MsgGameStarting:     eventbus.NetGameStarting,
	protocol.MsgQuestion:         eventbus.NetQuestion,
	protocol.MsgAnswerResult:     eventbus.NetAnswerResult,
	protocol.MsgPlayerAnswered:   eventbus.NetPlayerAnswered,
	protocol.MsgQuestionTimeout:  eventbus.NetQuestionTimeout,
	protocol.MsgPhaseChange:      eventbus.NetPhaseChange,
	protocol.MsgTurnChanged:      eventbus.NetTurnChanged,
	protocol.MsgTerritoryUpdate:  eventbus.NetTerritoryUpdate,
	protocol.MsgScoreUpdate:      eventbus.NetScoreUpdate,
	protocol.MsgAttackStarted:    eventbus.NetAttackStarted,
	protocol.MsgAttackResult:     eventbus.NetAttackResult,
	protocol.MsgDefenseResult:    eventbus.NetDefenseResult,
	protocol.MsgModifierUsed:     eventbus.NetModifierUsed,
	protocol.MsgModifierResult:   eventbus.NetModifierResult,
	protocol.MsgGameEnd:          eventbus.NetGameEnd,
	protocol.MsgPlayerEliminated: eventbus.NetPlayerEliminated,
	protocol.MsgSyncState:        eventbus.NetSyncState,
	protocol.MsgError:            eventbus.NetError,
}

// dispatch 将入站消息按类型标签路由到对应主题
// 按流上到达顺序依次投递，不重排不合并
func (c *Client) dispatch(msg *protocol.Message) {
	if msg.Type == protocol.MsgHeartbeat {
		c.handleHeartbeatEcho(msg)
		return
	}

	topic, ok := inboundTopics[msg.Type]
	if !ok {
		logger.LogError("dispatch: unhandled type %d", msg.Type)
		return
	}
	c.bus.Publish(topic, msg)
}

// handleHeartbeatEcho 用回显的发送时间戳计算往返延迟
func (c *Client) handleHeartbeatEcho(msg *protocol.Message) {
	payload, err := codec.ParsePayload[protocol.HeartbeatPayload](msg)
	if err != nil {
		logger.LogError("heartbeat: %v", err)
		return
	}

	rtt := time.Now().UnixMilli() - payload.SentAtMillis
	if rtt < 0 {
		return
	}
	c.latency.Store(rtt)
	c.bus.Publish(eventbus.TopicPingUpdated, eventbus.PingUpdatedEvent{Millis: rtt})
}
