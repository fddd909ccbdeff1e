//go:build !production

package testutil

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MakeJWT 签发一个带过期时间的临时 HS256 令牌，仅供测试
// 客户端从不校验签名，密钥内容无关紧要
func MakeJWT(userID string, expiresAt time.Time) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": expiresAt.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		panic(err)
	}
	return signed
}
