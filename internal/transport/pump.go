package transport

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/conquiz/conquiz-client/internal/eventbus"
	"github.com/conquiz/conquiz-client/internal/logger"
	"github.com/conquiz/conquiz-client/internal/protocol"
	"github.com/conquiz/conquiz-client/internal/protocol/codec"
)

// readPump 从服务器读取消息
func (c *Client) readPump() {
	defer c.handleReadExit()

	c.setupPongHandler()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}

		msg, err := codec.Decode(message)
		if err != nil {
			logger.LogError("stream: decode: %v", err)
			continue
		}

		c.dispatch(msg)
	}
}

func (c *Client) handleReadExit() {
	if r := recover(); r != nil {
		logger.LogPanic(r)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	// 停掉旧连接的周期任务，重连成功后由 attach 重新启动
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
	c.state = StateReconnecting
	c.mu.Unlock()

	// 非主动关闭，进入重连流程
	c.clearQueue()
	c.bus.Publish(eventbus.TopicDisconnected, eventbus.DisconnectedEvent{Reason: "stream lost"})
	if !c.reconnecting.Load() {
		go c.tryReconnect()
	}
}

func (c *Client) setupPongHandler() {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
}

func (c *Client) handleReadError(err error) {
	if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
		logger.LogError("stream: read: %v", err)
	}
}

// writePump 向服务器写入消息
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	c.mu.RLock()
	conn := c.conn
	send := c.send
	done := c.done
	c.mu.RUnlock()

	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(r)
		}
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case message, ok := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}

// heartbeatLoop 周期性入队心跳，携带发送时间戳
func (c *Client) heartbeatLoop(done chan struct{}) {
	ticker := time.NewTicker(c.cfg.HeartbeatDuration())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if c.IsConnected() {
				c.Enqueue(protocol.MsgHeartbeat, protocol.HeartbeatPayload{
					SentAtMillis: time.Now().UnixMilli(),
				})
			}
		case <-done:
			return
		}
	}
}
