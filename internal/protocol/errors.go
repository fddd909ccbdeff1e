package protocol

// 错误码
const (
	ErrCodeUnknown       = 1000
	ErrCodeInvalidMsg    = 1001
	ErrCodeUnauthorized  = 1002 // 凭证无效或过期
	ErrCodeGameNotFound  = 2001
	ErrCodeGameFull      = 2002
	ErrCodeNotInGame     = 2003
	ErrCodeNotYourTurn   = 3001
	ErrCodeAlreadyAnswer = 3002 // 本题已作答
	ErrCodeInvalidTarget = 3003 // 攻击目标无效
	ErrCodeNoJokerLeft   = 3004 // 道具余量不足
	ErrCodeConnTimeout   = 408  // 连接重试耗尽
)

// ErrorMessages 错误码对应的消息
var ErrorMessages = map[int]string{
	ErrCodeUnknown:       "未知错误",
	ErrCodeInvalidMsg:    "无效的消息格式",
	ErrCodeUnauthorized:  "凭证无效或已过期",
	ErrCodeGameNotFound:  "对局不存在",
	ErrCodeGameFull:      "对局人数已满",
	ErrCodeNotInGame:     "您不在对局中",
	ErrCodeNotYourTurn:   "还没轮到您",
	ErrCodeAlreadyAnswer: "本题已作答",
	ErrCodeInvalidTarget: "无效的攻击目标",
	ErrCodeNoJokerLeft:   "道具余量不足",
	ErrCodeConnTimeout:   "连接重试次数已耗尽",
}
