//go:build !production

package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/conquiz/conquiz-client/internal/transport"
)

// MockRequester 实现 auth.Requester 的 mock
type MockRequester struct {
	mock.Mock
}

func (m *MockRequester) Send(ctx context.Context, method, path string, body any, token string) (*transport.Response, error) {
	args := m.Called(ctx, method, path, body, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transport.Response), args.Error(1)
}

func (m *MockRequester) SendOnce(ctx context.Context, method, path string, body any, token string) (*transport.Response, error) {
	args := m.Called(ctx, method, path, body, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transport.Response), args.Error(1)
}

// OKResponse 构造一个 2xx 响应
func OKResponse(body string) *transport.Response {
	return &transport.Response{Status: 200, Body: []byte(body)}
}

// ErrResponse 构造一个携带应用错误体的响应
func ErrResponse(status int, body string) *transport.Response {
	return &transport.Response{Status: status, Body: []byte(body)}
}
