package protocol

// REST 通道同样使用短键 JSON，与流式 payload 保持一致风格

// --- 认证 ---

// RegisterRequest 注册请求
type RegisterRequest struct {
	Email       string `json:"e"`
	Username    string `json:"u"`
	Password    string `json:"pw"`
	DisplayName string `json:"dn,omitempty"`
}

// LoginRequest 登录请求（identifier 为邮箱或用户名）
type LoginRequest struct {
	Identifier string `json:"id"`
	Password   string `json:"pw"`
}

// RefreshRequest 刷新令牌请求
type RefreshRequest struct {
	RefreshToken string `json:"rt"`
}

// LogoutRequest 登出通知
type LogoutRequest struct {
	SessionID string `json:"sid"`
}

// ForgotPasswordRequest 找回密码请求
type ForgotPasswordRequest struct {
	Email string `json:"e"`
}

// AuthResponse 登录/注册/刷新的成功响应
type AuthResponse struct {
	UserID       string `json:"uid"`
	Username     string `json:"u"`
	DisplayName  string `json:"dn,omitempty"`
	AccessToken  string `json:"at"`
	RefreshToken string `json:"rt,omitempty"`
	SessionID    string `json:"sid,omitempty"`
	ExpiresAt    int64  `json:"exp,omitempty"` // Unix 秒
}

// MeResponse who-am-I 响应
type MeResponse struct {
	UserID      string `json:"uid"`
	Username    string `json:"u"`
	DisplayName string `json:"dn,omitempty"`
}

// --- 资料与排行 ---

// ProfilePayload 玩家资料（GET/PUT /profile）
type ProfilePayload struct {
	UserID      string `json:"uid,omitempty"`
	DisplayName string `json:"dn,omitempty"`
	AvatarID    int    `json:"av,omitempty"`
	Country     string `json:"cc,omitempty"`
}

// FindGameResponse 匹配响应
type FindGameResponse struct {
	GameID string `json:"gid"`
}

// RankingEntry 排行榜条目
type RankingEntry struct {
	Rank     int    `json:"rk"`
	PlayerID string `json:"pid"`
	Name     string `json:"n"`
	Score    int    `json:"s"`
}

// RankingResponse 排行榜响应
type RankingResponse struct {
	Type    string         `json:"t"`
	Entries []RankingEntry `json:"ent"`
}

// APIErrorResponse REST 错误响应体
type APIErrorResponse struct {
	Error string `json:"err"`
	Code  int    `json:"c,omitempty"`
}
