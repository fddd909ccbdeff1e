package transport

import (
	"context"
	"time"

	"github.com/conquiz/conquiz-client/internal/eventbus"
	"github.com/conquiz/conquiz-client/internal/logger"
	"github.com/conquiz/conquiz-client/internal/protocol"
)

// tryReconnect 流式通道断开后的重连循环
// 固定间隔尝试，每次尝试发布一次带序号的事件；
// 耗尽后进入 Failed，发布一次终止性连接错误，不再自动重试
func (c *Client) tryReconnect() {
	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(r)
			c.reconnecting.Store(false)
		}
	}()

	if !c.reconnecting.CompareAndSwap(false, true) {
		return
	}

	max := c.cfg.MaxReconnectAttempts
	for c.reconnectCount < max {
		c.reconnectCount++
		c.bus.Publish(eventbus.TopicReconnecting, eventbus.ReconnectingEvent{
			Attempt: c.reconnectCount,
			Max:     max,
		})

		time.Sleep(c.cfg.ReconnectDelayDuration())

		ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
		conn, err := c.dial(ctx)
		cancel()
		if err != nil {
			logger.LogError("reconnect: attempt %d/%d: %v", c.reconnectCount, max, err)
			continue
		}

		// 绑定前先清重连标志：新连接若立即断开，读协程还能再次发起重连
		c.reconnectCount = 0
		c.reconnecting.Store(false)
		c.attach(conn)
		c.bus.Publish(eventbus.TopicConnected, nil)
		logger.LogInfo("reconnect: stream restored")
		return
	}

	c.reconnectCount = 0
	c.reconnecting.Store(false)
	c.setState(StateFailed)
	c.bus.Publish(eventbus.TopicConnectionError, eventbus.ConnectionErrorEvent{
		Message: "Max retry attempts reached",
		Code:    protocol.ErrCodeConnTimeout,
	})
}
