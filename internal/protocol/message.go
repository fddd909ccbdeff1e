package protocol

import "encoding/json"

// Message 基础消息结构
// 流式通道上的线格式为: 1 字节类型标签 + 紧凑 JSON payload
type Message struct {
	Type    NetworkMessageType `json:"type"`
	Payload json.RawMessage    `json:"payload,omitempty"`
}

// NetworkMessageType 消息类型标签（线上占 1 字节）
type NetworkMessageType byte

// 大厅消息 1–3
const (
	MsgPlayerJoined NetworkMessageType = 1 // 玩家加入
	MsgPlayerLeft   NetworkMessageType = 2 // 玩家离开
	MsgGameStarting NetworkMessageType = 3 // 对局开始（携带完整初始状态）
)

// 题目消息 10–13
const (
	MsgQuestion        NetworkMessageType = 10 // 下发题目
	MsgAnswerResult    NetworkMessageType = 11 // 答题结果（权威）
	MsgPlayerAnswered  NetworkMessageType = 12 // 某玩家已作答（非权威提示）
	MsgQuestionTimeout NetworkMessageType = 13 // 服务端判定答题超时
)

// 阶段 / 回合消息 20–23
const (
	MsgPhaseChange     NetworkMessageType = 20 // 阶段切换
	MsgTurnChanged     NetworkMessageType = 21 // 回合切换
	MsgTerritoryUpdate NetworkMessageType = 22 // 领地变更
	MsgScoreUpdate     NetworkMessageType = 23 // 分数变更
)

// 攻击消息 30–32
const (
	MsgAttackStarted NetworkMessageType = 30 // 攻击开始
	MsgAttackResult  NetworkMessageType = 31 // 攻击结算
	MsgDefenseResult NetworkMessageType = 32 // 防守成功
)

// 道具消息 40–41
const (
	MsgModifierUsed   NetworkMessageType = 40 // 道具已使用（余量更新）
	MsgModifierResult NetworkMessageType = 41 // 道具效果（如 50/50 移除的选项）
)

// 终局消息 50–51
const (
	MsgGameEnd          NetworkMessageType = 50 // 对局结束
	MsgPlayerEliminated NetworkMessageType = 51 // 玩家被淘汰
)

// 同步消息 60–62
const (
	MsgSyncRequest NetworkMessageType = 60 // 客户端请求全量同步
	MsgSyncState   NetworkMessageType = 61 // 服务端全量状态
	MsgHeartbeat   NetworkMessageType = 62 // 心跳（服务端原样回显）
)

// 错误消息
const (
	MsgError NetworkMessageType = 255 // 错误消息
)

// knownTypes 已知的消息类型集合，解码时校验
var knownTypes = map[NetworkMessageType]struct{}{
	MsgPlayerJoined: {}, MsgPlayerLeft: {}, MsgGameStarting: {},
	MsgQuestion: {}, MsgAnswerResult: {}, MsgPlayerAnswered: {}, MsgQuestionTimeout: {},
	MsgPhaseChange: {}, MsgTurnChanged: {}, MsgTerritoryUpdate: {}, MsgScoreUpdate: {},
	MsgAttackStarted: {}, MsgAttackResult: {}, MsgDefenseResult: {},
	MsgModifierUsed: {}, MsgModifierResult: {},
	MsgGameEnd: {}, MsgPlayerEliminated: {},
	MsgSyncRequest: {}, MsgSyncState: {}, MsgHeartbeat: {},
	MsgError: {},
}

// IsKnownType 判断消息类型是否已知
func IsKnownType(t NetworkMessageType) bool {
	_, ok := knownTypes[t]
	return ok
}
