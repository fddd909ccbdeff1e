package protocol

import "time"

// 枚举在线上一律编码为最小整数表示（1 字节）

// Phase 游戏阶段
type Phase byte

const (
	PhaseNone     Phase = 0 // 无
	PhaseLobby    Phase = 1 // 大厅
	PhaseConquest Phase = 2 // 占领阶段
	PhaseWar      Phase = 3 // 战争阶段
	PhaseGameOver Phase = 4 // 对局结束
)

// Category 题目分类
type Category byte

const (
	CategoryAny       Category = 0
	CategoryHistory   Category = 1
	CategoryGeography Category = 2
	CategoryScience   Category = 3
	CategorySports    Category = 4
	CategoryArts      Category = 5
	CategoryMixed     Category = 6
)

// ModifierKind 道具类型
type ModifierKind byte

const (
	ModifierFiftyFifty    ModifierKind = 1 // 移除两个错误选项
	ModifierExtraTime     ModifierKind = 2 // 延长答题时间
	ModifierLongRange     ModifierKind = 3 // 远程攻击（无需相邻）
	ModifierShield        ModifierKind = 4 // 护盾
	ModifierForceCategory ModifierKind = 5 // 指定题目分类
)

// TerritoryState 领地状态
type TerritoryState byte

const (
	TerritoryEmpty    TerritoryState = 0 // 无主
	TerritoryNormal   TerritoryState = 1 // 普通领地
	TerritoryCastle   TerritoryState = 2 // 城堡
	TerritoryShielded TerritoryState = 3 // 护盾保护中
)

// AttackOutcome 攻击结算结果
type AttackOutcome byte

const (
	AttackSuccess         AttackOutcome = 1 // 攻击成功，领地易主
	AttackFailed          AttackOutcome = 2 // 攻击失败
	AttackCastleHit       AttackOutcome = 3 // 击中城堡（未摧毁）
	AttackCastleDestroyed AttackOutcome = 4 // 城堡被摧毁，防守方淘汰
	AttackInvalidTarget   AttackOutcome = 5 // 无效目标
)

// PlayerColor 玩家颜色（三人局固定三色）
type PlayerColor byte

const (
	ColorGreen PlayerColor = 1
	ColorBlue  PlayerColor = 2
	ColorRed   PlayerColor = 3
)

// 时间字段以百分之一秒（centisecond）的整数编码，避免浮点膨胀

// ToCentis 将时长转换为百分之一秒
func ToCentis(d time.Duration) int {
	return int(d / (10 * time.Millisecond))
}

// FromCentis 将百分之一秒转换为时长
func FromCentis(cs int) time.Duration {
	return time.Duration(cs) * 10 * time.Millisecond
}
