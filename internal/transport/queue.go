package transport

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/conquiz/conquiz-client/internal/logger"
	"github.com/conquiz/conquiz-client/internal/protocol"
	"github.com/conquiz/conquiz-client/internal/protocol/codec"
)

// QueuedEnvelope 出站队列中的一条消息
// 只存在于队列中，断线即丢弃，从不持久化
type QueuedEnvelope struct {
	ID               string
	Type             protocol.NetworkMessageType
	Payload          json.RawMessage
	EnqueuedAtMillis int64
}

// Enqueue 追加一条出站消息
// 未连接时静默丢弃：断线期间的状态差异由上层在重连后通过 Sync 重建，
// 队列不跨连接缓冲。队列满时丢弃新消息并记录日志。
func (c *Client) Enqueue(msgType protocol.NetworkMessageType, payload any) {
	if !c.IsConnected() {
		return
	}

	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			logger.LogError("enqueue: marshal type %d: %v", msgType, err)
			return
		}
		data = b
	}

	c.queueMu.Lock()
	defer c.queueMu.Unlock()

	if len(c.queue) >= c.cfg.QueueCapacity {
		logger.LogError("enqueue: queue full, dropping type %d", msgType)
		return
	}
	c.queue = append(c.queue, QueuedEnvelope{
		ID:               uuid.NewString(),
		Type:             msgType,
		Payload:          data,
		EnqueuedAtMillis: time.Now().UnixMilli(),
	})
}

// QueueLen 返回当前队列长度
func (c *Client) QueueLen() int {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	return len(c.queue)
}

func (c *Client) clearQueue() {
	c.queueMu.Lock()
	c.queue = nil
	c.queueMu.Unlock()
}

// flushLoop 按固定间隔批量发送队列消息
func (c *Client) flushLoop(done chan struct{}) {
	ticker := time.NewTicker(c.cfg.FlushDuration())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.flushBatch()
		case <-done:
			return
		}
	}
}

// flushBatch 取出至多一批消息打包为单个二进制帧发送
// 批内保持入队顺序，剩余消息留待下一个周期
func (c *Client) flushBatch() {
	if !c.IsConnected() {
		return
	}

	c.queueMu.Lock()
	n := len(c.queue)
	if n == 0 {
		c.queueMu.Unlock()
		return
	}
	if n > c.cfg.FlushBatchSize {
		n = c.cfg.FlushBatchSize
	}
	batch := make([]QueuedEnvelope, n)
	copy(batch, c.queue[:n])
	c.queue = c.queue[n:]
	c.queueMu.Unlock()

	msgs := make([]*protocol.Message, 0, len(batch))
	for _, env := range batch {
		msgs = append(msgs, &protocol.Message{Type: env.Type, Payload: env.Payload})
	}

	frame, err := codec.EncodeBatch(msgs)
	if err != nil {
		logger.LogError("flush: encode batch: %v", err)
		return
	}

	c.mu.RLock()
	send := c.send
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return
	}

	select {
	case send <- frame:
	default:
		logger.LogError("flush: send buffer full, dropping batch of %d", len(batch))
	}
}
