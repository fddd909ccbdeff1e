// Package codec 实现流式通道的线格式编解码:
// 1 字节类型标签 + 紧凑 JSON payload。
package codec

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/conquiz/conquiz-client/internal/apperrors"
	"github.com/conquiz/conquiz-client/internal/protocol"
)

// Encode 将消息编码为线格式字节
func Encode(m *protocol.Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil message", apperrors.ErrDecode)
	}
	buf := make([]byte, 0, 1+len(m.Payload))
	buf = append(buf, byte(m.Type))
	buf = append(buf, m.Payload...)
	return buf, nil
}

// Decode 从线格式字节解码消息
// 未知标签或非法 JSON 返回 apperrors.ErrDecode；
// payload 中未识别的字段由调用方在反序列化时自然忽略（向前兼容）。
func Decode(data []byte) (*protocol.Message, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: empty frame", apperrors.ErrDecode)
	}

	msgType := protocol.NetworkMessageType(data[0])
	if !protocol.IsKnownType(msgType) {
		return nil, fmt.Errorf("%w: unknown type tag %d", apperrors.ErrDecode, data[0])
	}

	payload := data[1:]
	if len(payload) > 0 && !json.Valid(payload) {
		return nil, fmt.Errorf("%w: type %d carries invalid json", apperrors.ErrDecode, data[0])
	}

	msg := &protocol.Message{Type: msgType}
	if len(payload) > 0 {
		msg.Payload = append(json.RawMessage(nil), payload...) // 复制避免引用外部缓冲
	}
	return msg, nil
}

// NewMessage 创建一个新消息
func NewMessage(msgType protocol.NetworkMessageType, payload any) (*protocol.Message, error) {
	msg := &protocol.Message{Type: msgType}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msg.Payload = data
	}
	return msg, nil
}

// MustNewMessage 创建消息，失败时 panic
// payload 均为本包内定义的可序列化结构，序列化失败属编程错误
func MustNewMessage(msgType protocol.NetworkMessageType, payload any) *protocol.Message {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		panic(err)
	}
	return msg
}

// ParsePayload 解析消息的 Payload 到指定类型
func ParsePayload[T any](msg *protocol.Message) (*T, error) {
	var payload T
	if len(msg.Payload) == 0 {
		return &payload, nil
	}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrDecode, err)
	}
	return &payload, nil
}

// NewErrorMessage 创建错误消息
func NewErrorMessage(code int) *protocol.Message {
	return MustNewMessage(protocol.MsgError, protocol.ErrorPayload{
		Code:    code,
		Message: protocol.ErrorMessages[code],
	})
}

// --- 批量帧 ---
// 出站队列按固定间隔批量发送，一个批次打包为一个二进制帧:
// 每条消息前置 2 字节大端长度，依次拼接。

// EncodeBatch 将一批消息编码为单个批量帧
func EncodeBatch(msgs []*protocol.Message) ([]byte, error) {
	var buf []byte
	for _, m := range msgs {
		frame, err := Encode(m)
		if err != nil {
			return nil, err
		}
		if len(frame) > 0xFFFF {
			return nil, fmt.Errorf("%w: frame too large (%d bytes)", apperrors.ErrDecode, len(frame))
		}
		var lenPrefix [2]byte
		binary.BigEndian.PutUint16(lenPrefix[:], uint16(len(frame)))
		buf = append(buf, lenPrefix[:]...)
		buf = append(buf, frame...)
	}
	return buf, nil
}

// DecodeBatch 解码批量帧，保持批内顺序
func DecodeBatch(data []byte) ([]*protocol.Message, error) {
	var msgs []*protocol.Message
	for len(data) > 0 {
		if len(data) < 2 {
			return nil, fmt.Errorf("%w: truncated batch frame", apperrors.ErrDecode)
		}
		n := int(binary.BigEndian.Uint16(data[:2]))
		data = data[2:]
		if len(data) < n {
			return nil, fmt.Errorf("%w: truncated batch entry", apperrors.ErrDecode)
		}
		msg, err := Decode(data[:n])
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
		data = data[n:]
	}
	return msgs, nil
}
