package protocol

// 所有 payload 使用短键名以压缩往返体积:
// gid=game id, pid=player id, qid=question id, tid=territory id,
// ph=phase, r=round, cat=category, tl=time limit (百分之一秒)

// --- 通用数据结构 ---

// PlayerInfo 玩家信息
type PlayerInfo struct {
	ID     string               `json:"pid"`
	Name   string               `json:"n"`
	Color  PlayerColor          `json:"c"`
	Score  int                  `json:"s"`
	Jokers map[ModifierKind]int `json:"jk,omitempty"` // 道具余量: 道具码 → 数量
}

// TerritoryInfo 领地信息
type TerritoryInfo struct {
	ID         int            `json:"tid"`
	OwnerID    string         `json:"oid,omitempty"`
	State      TerritoryState `json:"st"`
	CastleHits int            `json:"ch,omitempty"` // 仅城堡有效
}

// PlayerResult 终局排名条目
type PlayerResult struct {
	PlayerID string `json:"pid"`
	Rank     int    `json:"rk"`
	Score    int    `json:"s"`
}

// --- 客户端 → 服务端 Payloads ---

// HeartbeatPayload 心跳（服务端原样回显，客户端据此计算 RTT）
type HeartbeatPayload struct {
	SentAtMillis int64 `json:"t"` // 客户端发送时间戳（毫秒）
}

// SyncRequestPayload 全量同步请求
type SyncRequestPayload struct {
	GameID   string `json:"gid"`
	PlayerID string `json:"pid"`
}

// FindGamePayload 匹配请求
type FindGamePayload struct {
	PlayerID string `json:"pid"`
}

// QuestionRequestPayload 请求下发题目
type QuestionRequestPayload struct {
	GameID   string   `json:"gid"`
	PlayerID string   `json:"pid"`
	Round    int      `json:"r"`
	Category Category `json:"cat,omitempty"`
}

// AnswerPayload 提交答案
type AnswerPayload struct {
	GameID     string         `json:"gid"`
	PlayerID   string         `json:"pid"`
	QuestionID string         `json:"qid"`
	Answer     int            `json:"a"`
	LatencyCs  int            `json:"lat"` // 作答耗时（百分之一秒）
	Modifiers  []ModifierKind `json:"mod,omitempty"`
}

// AttackPayload 发起攻击
type AttackPayload struct {
	GameID    string   `json:"gid"`
	PlayerID  string   `json:"pid"`
	From      int      `json:"src"`
	To        int      `json:"tgt"`
	LongRange bool     `json:"lr,omitempty"`
	Category  Category `json:"cat,omitempty"` // 指定分类道具生效时携带
}

// TerritorySelectPayload 占领阶段选择领地
type TerritorySelectPayload struct {
	GameID      string `json:"gid"`
	PlayerID    string `json:"pid"`
	TerritoryID int    `json:"tid"`
}

// ModifierPayload 使用道具
type ModifierPayload struct {
	GameID   string       `json:"gid"`
	PlayerID string       `json:"pid"`
	Kind     ModifierKind `json:"k"`
}

// --- 服务端 → 客户端 Payloads ---

// PlayerJoinedPayload 玩家加入通知
type PlayerJoinedPayload struct {
	Player PlayerInfo `json:"p"`
}

// PlayerLeftPayload 玩家离开通知
type PlayerLeftPayload struct {
	PlayerID string `json:"pid"`
}

// GameStartingPayload 对局开始，携带完整初始状态
type GameStartingPayload struct {
	GameID      string          `json:"gid"`
	Players     []PlayerInfo    `json:"pl"`
	Territories []TerritoryInfo `json:"ter"`
}

// QuestionPayload 下发题目
type QuestionPayload struct {
	GameID      string   `json:"gid"`
	QuestionID  string   `json:"qid"`
	Round       int      `json:"r"`
	Category    Category `json:"cat"`
	Text        string   `json:"txt"`
	Options     []string `json:"opt"`
	TimeLimitCs int      `json:"tl"` // 答题时限（百分之一秒）
}

// AnswerResultPayload 答题结果（权威）
type AnswerResultPayload struct {
	QuestionID    string `json:"qid"`
	PlayerID      string `json:"pid"`
	Correct       bool   `json:"ok"`
	CorrectAnswer int    `json:"ca"`
	ScoreDelta    int    `json:"sd"`
}

// PlayerAnsweredPayload 某玩家已作答（非权威提示，正确性以 AnswerResult 为准）
type PlayerAnsweredPayload struct {
	PlayerID   string `json:"pid"`
	QuestionID string `json:"qid"`
	Answer     int    `json:"a"`
}

// QuestionTimeoutPayload 服务端判定答题超时
type QuestionTimeoutPayload struct {
	QuestionID string `json:"qid"`
}

// PhaseChangePayload 阶段切换
type PhaseChangePayload struct {
	Phase Phase `json:"ph"`
	Round int   `json:"r,omitempty"`
}

// TurnChangedPayload 回合切换（回合顺序由服务端声明）
type TurnChangedPayload struct {
	PlayerID string `json:"pid"`
	Round    int    `json:"r,omitempty"`
}

// TerritoryUpdatePayload 领地变更
type TerritoryUpdatePayload struct {
	TerritoryID int            `json:"tid"`
	OwnerID     string         `json:"oid,omitempty"`
	State       TerritoryState `json:"st"`
	CastleHits  int            `json:"ch,omitempty"`
}

// ScoreUpdatePayload 分数变更
type ScoreUpdatePayload struct {
	PlayerID string `json:"pid"`
	Score    int    `json:"s"`
}

// AttackStartedPayload 攻击开始通知
type AttackStartedPayload struct {
	AttackerID string `json:"aid"`
	DefenderID string `json:"did"`
	From       int    `json:"src"`
	To         int    `json:"tgt"`
}

// AttackResultPayload 攻击结算
type AttackResultPayload struct {
	Outcome    AttackOutcome `json:"o"`
	AttackerID string        `json:"aid"`
	DefenderID string        `json:"did,omitempty"`
	From       int           `json:"src"`
	To         int           `json:"tgt"`
	CastleHits int           `json:"ch,omitempty"` // 城堡剩余耐久
}

// DefenseResultPayload 防守成功通知
type DefenseResultPayload struct {
	DefenderID  string `json:"did"`
	TerritoryID int    `json:"tid"`
}

// ModifierUsedPayload 道具已使用（余量更新）
type ModifierUsedPayload struct {
	PlayerID  string       `json:"pid"`
	Kind      ModifierKind `json:"k"`
	Remaining int          `json:"n"`
}

// ModifierResultPayload 道具效果
type ModifierResultPayload struct {
	Kind           ModifierKind `json:"k"`
	RemovedOptions []int        `json:"rm,omitempty"` // 50/50 移除的选项下标
	ExtraTimeCs    int          `json:"et,omitempty"` // 延长的时间（百分之一秒）
}

// GameEndPayload 对局结束
type GameEndPayload struct {
	GameID  string         `json:"gid"`
	Results []PlayerResult `json:"res"`
}

// PlayerEliminatedPayload 玩家被淘汰
type PlayerEliminatedPayload struct {
	PlayerID string `json:"pid"`
}

// SyncStatePayload 全量状态（用于断线重连后恢复）
type SyncStatePayload struct {
	GameID      string          `json:"gid"`
	Phase       Phase           `json:"ph"`
	Round       int             `json:"r"`
	CurrentTurn string          `json:"cur,omitempty"`
	Players     []PlayerInfo    `json:"pl"`
	Territories []TerritoryInfo `json:"ter"`
}

// ErrorPayload 错误响应
type ErrorPayload struct {
	Code    int    `json:"c"`
	Message string `json:"m"`
}
