package apperrors

import (
	"fmt"

	"github.com/conquiz/conquiz-client/internal/protocol"
)

// AuthCode 认证错误分类
type AuthCode int

const (
	AuthUnknown AuthCode = iota
	AuthNetworkError
	AuthInvalidCredentials
	AuthUserNotFound
	AuthEmailAlreadyExists
	AuthUsernameAlreadyExists
	AuthWeakPassword
	AuthTokenExpired
	AuthBanned
	AuthServerError
)

// String 返回分类名，便于日志输出
func (c AuthCode) String() string {
	switch c {
	case AuthNetworkError:
		return "NetworkError"
	case AuthInvalidCredentials:
		return "InvalidCredentials"
	case AuthUserNotFound:
		return "UserNotFound"
	case AuthEmailAlreadyExists:
		return "EmailAlreadyExists"
	case AuthUsernameAlreadyExists:
		return "UsernameAlreadyExists"
	case AuthWeakPassword:
		return "WeakPassword"
	case AuthTokenExpired:
		return "TokenExpired"
	case AuthBanned:
		return "Banned"
	case AuthServerError:
		return "ServerError"
	default:
		return "Unknown"
	}
}

// AuthError 认证错误（登录/注册/刷新共用）
type AuthError struct {
	Code    AuthCode
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAuthError 创建认证错误
func NewAuthError(code AuthCode, message string) *AuthError {
	return &AuthError{Code: code, Message: message}
}

// IsNetworkAuthError 判断是否为网络层认证失败（可重试，与校验类错误区分展示）
func IsNetworkAuthError(err error) bool {
	ae, ok := err.(*AuthError)
	return ok && ae.Code == AuthNetworkError
}

// TransportError 传输层错误
type TransportError struct {
	Code    int
	Message string
}

func (e *TransportError) Error() string {
	return e.Message
}

// 预定义传输错误
var (
	ErrUnreachable  = &TransportError{Code: protocol.ErrCodeConnTimeout, Message: "server unreachable"}
	ErrDecode       = &TransportError{Code: protocol.ErrCodeInvalidMsg, Message: "malformed payload"}
	ErrUnauthorized = &TransportError{Code: protocol.ErrCodeUnauthorized, Message: "unauthorized"}
)

// GameFlowError 对局流程错误
type GameFlowError struct {
	Code    int
	Message string
}

func (e *GameFlowError) Error() string {
	return e.Message
}

// 预定义流程错误
var (
	ErrUnknownEntity       = &GameFlowError{Code: protocol.ErrCodeNotInGame, Message: "unknown player or territory"}
	ErrOutOfOrderEvent     = &GameFlowError{Code: protocol.ErrCodeInvalidMsg, Message: "event out of order"}
	ErrDuplicateSubmission = &GameFlowError{Code: protocol.ErrCodeAlreadyAnswer, Message: "answer already submitted"}
)
