// Package transport 负责与后端的可靠请求通道和尽力而为的流式通道，
// 不关心 payload 的业务语义。
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/conquiz/conquiz-client/internal/apperrors"
	"github.com/conquiz/conquiz-client/internal/config"
	"github.com/conquiz/conquiz-client/internal/eventbus"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	handshakeTimeout = 10 * time.Second
)

// ConnectionState 流式通道连接状态
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota // 未连接
	StateConnecting                          // 连接中
	StateConnected                           // 已连接
	StateReconnecting                        // 重连中
	StateFailed                              // 重连耗尽，需要人工干预
)

// String 返回状态名
func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateReconnecting:
		return "Reconnecting"
	case StateFailed:
		return "Failed"
	default:
		return "Disconnected"
	}
}

// Response 请求通道的响应
// 非 2xx 但携带格式良好错误体的响应原样返回，由调用方解释
type Response struct {
	Status int
	Body   []byte
}

// OK 判断是否为 2xx
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Client 传输客户端：一个请求/响应通道 + 一个持久流式通道
type Client struct {
	baseURL string
	wsURL   string
	cfg     config.TransportConfig
	bus     *eventbus.Bus
	http    *http.Client

	mu     sync.RWMutex
	state  ConnectionState
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	closed bool
	token  string // 建立流式通道时使用的 bearer token

	queueMu sync.Mutex
	queue   []QueuedEnvelope

	latency        atomic.Int64
	reconnecting   atomic.Bool
	reconnectCount int
}

// NewClient 创建传输客户端
func NewClient(cfg *config.Config, bus *eventbus.Bus) *Client {
	return &Client{
		baseURL: cfg.Server.BaseURL,
		wsURL:   cfg.Server.WSURL,
		cfg:     cfg.Transport,
		bus:     bus,
		http:    &http.Client{Timeout: 15 * time.Second},
		state:   StateDisconnected,
	}
}

// State 返回当前连接状态
func (c *Client) State() ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) setState(s ConnectionState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Latency 返回最近一次心跳往返延迟（毫秒）
func (c *Client) Latency() int64 {
	return c.latency.Load()
}

// Send 发送请求，网络失败或无应用错误体的非 2xx 按固定间隔重试，
// 最多 MaxRetries 次，耗尽返回 apperrors.ErrUnreachable
func (c *Client) Send(ctx context.Context, method, path string, body any, token string) (*Response, error) {
	return c.doSend(ctx, method, path, body, token, c.cfg.MaxRetries)
}

// SendOnce 单次发送，不重试
// 用于 submitAnswer/submitAttack 等重复提交会造成双重计数的请求
func (c *Client) SendOnce(ctx context.Context, method, path string, body any, token string) (*Response, error) {
	return c.doSend(ctx, method, path, body, token, 1)
}

func (c *Client) doSend(ctx context.Context, method, path string, body any, token string, attempts int) (*Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, err
		}
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.cfg.RetryDelayDuration()):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return &Response{Status: resp.StatusCode, Body: respBody}, nil
		}

		// 格式良好的应用错误（4xx/5xx + JSON 体）不重试，原样交给调用方解释
		if len(respBody) > 0 && json.Valid(respBody) {
			return &Response{Status: resp.StatusCode, Body: respBody}, nil
		}

		lastErr = fmt.Errorf("http %d", resp.StatusCode)
	}

	return nil, fmt.Errorf("%w: %v", apperrors.ErrUnreachable, lastErr)
}

// ConnectStream 建立持久流式通道，已连接时幂等
// 调用方（SessionManager 的持有者）保证传入的 token 来自有效会话
func (c *Client) ConnectStream(ctx context.Context, token string) error {
	c.mu.Lock()
	if c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.token = token
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("%w: %v", apperrors.ErrUnreachable, err)
	}

	c.attach(conn)
	c.bus.Publish(eventbus.TopicConnected, nil)
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}
	header := http.Header{}
	c.mu.RLock()
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()

	conn, _, err := dialer.DialContext(ctx, c.wsURL, header)
	return conn, err
}

// attach 绑定新连接并启动读写与周期任务
func (c *Client) attach(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.closed = false
	c.send = make(chan []byte, 256)
	c.done = make(chan struct{})
	c.state = StateConnected
	done := c.done
	c.mu.Unlock()

	go c.readPump()
	go c.writePump()
	go c.heartbeatLoop(done)
	go c.flushLoop(done)
}

// Disconnect 主动断开流式通道并清空出站队列
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.state = StateDisconnected
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.mu.Unlock()

	c.clearQueue()
	c.bus.Publish(eventbus.TopicDisconnected, eventbus.DisconnectedEvent{Reason: "client closed"})
}

// IsConnected 是否已连接
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}
