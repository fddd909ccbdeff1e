package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conquiz/conquiz-client/internal/apperrors"
	"github.com/conquiz/conquiz-client/internal/config"
	"github.com/conquiz/conquiz-client/internal/eventbus"
	"github.com/conquiz/conquiz-client/internal/protocol"
	"github.com/conquiz/conquiz-client/internal/protocol/codec"
)

var upgrader = websocket.Upgrader{}

func testConfig(baseURL, wsURL string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{BaseURL: baseURL, WSURL: wsURL},
		Transport: config.TransportConfig{
			MaxRetries:           3,
			HeartbeatInterval:    60,
			FlushInterval:        60,
			FlushBatchSize:       10,
			QueueCapacity:        8,
			MaxReconnectAttempts: 3,
		},
	}
}

func wsAddr(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

// --- request channel ---

func TestSendExhaustsRetries(t *testing.T) {
	var hits atomic.Int32
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer s.Close()

	c := NewClient(testConfig(s.URL, ""), eventbus.New())
	resp, err := c.Send(context.Background(), http.MethodPost, "/game/find", nil, "")

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, apperrors.ErrUnreachable)
	assert.Equal(t, int32(3), hits.Load())
}

func TestSendRecoversAfterOneFailure(t *testing.T) {
	var hits atomic.Int32
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"gid":"g1"}`))
	}))
	defer s.Close()

	c := NewClient(testConfig(s.URL, ""), eventbus.New())
	resp, err := c.Send(context.Background(), http.MethodPost, "/game/find", nil, "")

	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, int32(2), hits.Load())
}

func TestSendOnceNeverRetries(t *testing.T) {
	var hits atomic.Int32
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer s.Close()

	c := NewClient(testConfig(s.URL, ""), eventbus.New())
	_, err := c.SendOnce(context.Background(), http.MethodPost, "/game/answer", nil, "")

	assert.ErrorIs(t, err, apperrors.ErrUnreachable)
	assert.Equal(t, int32(1), hits.Load())
}

func TestSendReturnsWellFormedRejection(t *testing.T) {
	var hits atomic.Int32
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"err":"game is full","c":2002}`))
	}))
	defer s.Close()

	c := NewClient(testConfig(s.URL, ""), eventbus.New())
	resp, err := c.Send(context.Background(), http.MethodPost, "/game/find", nil, "")

	// An application-level rejection is a valid response, not a transport
	// failure, and must not burn retries.
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.Status)
	assert.Equal(t, int32(1), hits.Load())
}

func TestSendAttachesBearerToken(t *testing.T) {
	var got string
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer s.Close()

	c := NewClient(testConfig(s.URL, ""), eventbus.New())
	_, err := c.Send(context.Background(), http.MethodGet, "/auth/me", nil, "tok123")

	require.NoError(t, err)
	assert.Equal(t, "Bearer tok123", got)
}

// --- stream channel ---

// batchEchoHandler decodes each inbound batch frame and echoes the contained
// messages back one frame at a time, the way the real backend responds to
// heartbeats.
func batchEchoHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msgs, err := codec.DecodeBatch(frame)
		if err != nil {
			continue
		}
		for _, m := range msgs {
			out, _ := codec.Encode(m)
			if err := conn.WriteMessage(websocket.BinaryMessage, out); err != nil {
				return
			}
		}
	}
}

func TestConnectStreamIsIdempotent(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(batchEchoHandler))
	defer s.Close()

	c := NewClient(testConfig("", wsAddr(s)), eventbus.New())
	require.NoError(t, c.ConnectStream(context.Background(), "tok"))
	defer c.Disconnect()

	assert.True(t, c.IsConnected())
	require.NoError(t, c.ConnectStream(context.Background(), "tok"))
	assert.Equal(t, StateConnected, c.State())
}

func TestHeartbeatEchoUpdatesLatency(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(batchEchoHandler))
	defer s.Close()

	bus := eventbus.New()
	pinged := make(chan eventbus.PingUpdatedEvent, 1)
	bus.Subscribe(eventbus.TopicPingUpdated, func(data any) {
		select {
		case pinged <- data.(eventbus.PingUpdatedEvent):
		default:
		}
	})

	c := NewClient(testConfig("", wsAddr(s)), bus)
	require.NoError(t, c.ConnectStream(context.Background(), "tok"))
	defer c.Disconnect()

	c.Enqueue(protocol.MsgHeartbeat, protocol.HeartbeatPayload{
		SentAtMillis: time.Now().UnixMilli(),
	})
	c.flushBatch()

	select {
	case ev := <-pinged:
		assert.GreaterOrEqual(t, ev.Millis, int64(0))
		assert.Equal(t, ev.Millis, c.Latency())
	case <-time.After(2 * time.Second):
		t.Fatal("heartbeat echo never arrived")
	}
}

func TestDispatchRoutesByTypeTag(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		frame, _ := codec.Encode(codec.MustNewMessage(protocol.MsgPhaseChange, protocol.PhaseChangePayload{
			Phase: protocol.PhaseWar,
			Round: 2,
		}))
		_ = conn.WriteMessage(websocket.BinaryMessage, frame)
		// Keep the connection open until the client leaves.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer s.Close()

	bus := eventbus.New()
	received := make(chan *protocol.Message, 1)
	bus.Subscribe(eventbus.NetPhaseChange, func(data any) {
		select {
		case received <- data.(*protocol.Message):
		default:
		}
	})

	c := NewClient(testConfig("", wsAddr(s)), bus)
	require.NoError(t, c.ConnectStream(context.Background(), "tok"))
	defer c.Disconnect()

	select {
	case msg := <-received:
		payload, err := codec.ParsePayload[protocol.PhaseChangePayload](msg)
		require.NoError(t, err)
		assert.Equal(t, protocol.PhaseWar, payload.Phase)
		assert.Equal(t, 2, payload.Round)
	case <-time.After(2 * time.Second):
		t.Fatal("phase change never dispatched")
	}
}

func TestReconnectExhaustionFailsOnce(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(batchEchoHandler))

	bus := eventbus.New()
	var mu sync.Mutex
	var attempts []eventbus.ReconnectingEvent
	var connErrs []eventbus.ConnectionErrorEvent
	bus.Subscribe(eventbus.TopicReconnecting, func(data any) {
		mu.Lock()
		attempts = append(attempts, data.(eventbus.ReconnectingEvent))
		mu.Unlock()
	})
	bus.Subscribe(eventbus.TopicConnectionError, func(data any) {
		mu.Lock()
		connErrs = append(connErrs, data.(eventbus.ConnectionErrorEvent))
		mu.Unlock()
	})

	c := NewClient(testConfig("", wsAddr(s)), bus)
	require.NoError(t, c.ConnectStream(context.Background(), "tok"))

	// Kill the stream and the endpoint so every redial fails.
	s.CloseClientConnections()
	s.Close()

	require.Eventually(t, func() bool {
		return c.State() == StateFailed
	}, 10*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, attempts, 3)
	assert.Equal(t, eventbus.ReconnectingEvent{Attempt: 1, Max: 3}, attempts[0])
	assert.Equal(t, eventbus.ReconnectingEvent{Attempt: 3, Max: 3}, attempts[2])

	require.Len(t, connErrs, 1)
	assert.Equal(t, "Max retry attempts reached", connErrs[0].Message)
	assert.Equal(t, protocol.ErrCodeConnTimeout, connErrs[0].Code)
}

func TestReconnectSurvivesImmediateDrop(t *testing.T) {
	// The first two connections are accepted and dropped right away; the
	// rest are refused. The reconnect loop must keep running through the
	// short-lived connection instead of parking in Reconnecting.
	var mu sync.Mutex
	accepted := 0
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		accepted++
		n := accepted
		mu.Unlock()
		if n > 2 {
			http.Error(w, "gone", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.Close()
	}))
	defer s.Close()

	bus := eventbus.New()
	var connErrs atomic.Int32
	bus.Subscribe(eventbus.TopicConnectionError, func(any) { connErrs.Add(1) })

	c := NewClient(testConfig(s.URL, wsAddr(s)), bus)
	require.NoError(t, c.ConnectStream(context.Background(), "tok"))

	require.Eventually(t, func() bool {
		return connErrs.Load() == 1
	}, 10*time.Second, 20*time.Millisecond)
	assert.Equal(t, StateFailed, c.State())
}

// --- outbound queue ---

func TestEnqueueDroppedWhileDisconnected(t *testing.T) {
	c := NewClient(testConfig("", ""), eventbus.New())

	c.Enqueue(protocol.MsgSyncRequest, protocol.SyncRequestPayload{GameID: "g1"})
	assert.Zero(t, c.QueueLen())
}

func TestFlushBatchPreservesOrderAndLimit(t *testing.T) {
	frames := make(chan []byte, 4)
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, frame, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frames <- frame
		}
	}))
	defer s.Close()

	cfg := testConfig("", wsAddr(s))
	cfg.Transport.FlushBatchSize = 2

	c := NewClient(cfg, eventbus.New())
	require.NoError(t, c.ConnectStream(context.Background(), "tok"))
	defer c.Disconnect()

	c.Enqueue(protocol.MsgSyncRequest, protocol.SyncRequestPayload{GameID: "g1", PlayerID: "u1"})
	c.Enqueue(protocol.MsgHeartbeat, protocol.HeartbeatPayload{SentAtMillis: 1})
	c.Enqueue(protocol.MsgHeartbeat, protocol.HeartbeatPayload{SentAtMillis: 2})
	require.Equal(t, 3, c.QueueLen())

	c.flushBatch()
	assert.Equal(t, 1, c.QueueLen())

	select {
	case frame := <-frames:
		msgs, err := codec.DecodeBatch(frame)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, protocol.MsgSyncRequest, msgs[0].Type)
		assert.Equal(t, protocol.MsgHeartbeat, msgs[1].Type)
	case <-time.After(2 * time.Second):
		t.Fatal("batch frame never arrived")
	}
}

func TestQueueCapacityDropsOverflow(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(batchEchoHandler))
	defer s.Close()

	cfg := testConfig("", wsAddr(s))
	cfg.Transport.QueueCapacity = 2

	c := NewClient(cfg, eventbus.New())
	require.NoError(t, c.ConnectStream(context.Background(), "tok"))
	defer c.Disconnect()

	for i := 0; i < 5; i++ {
		c.Enqueue(protocol.MsgHeartbeat, protocol.HeartbeatPayload{SentAtMillis: int64(i)})
	}
	assert.Equal(t, 2, c.QueueLen())
}

func TestDisconnectClearsQueue(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(batchEchoHandler))
	defer s.Close()

	bus := eventbus.New()
	disconnected := make(chan eventbus.DisconnectedEvent, 1)
	bus.Subscribe(eventbus.TopicDisconnected, func(data any) {
		select {
		case disconnected <- data.(eventbus.DisconnectedEvent):
		default:
		}
	})

	c := NewClient(testConfig("", wsAddr(s)), bus)
	require.NoError(t, c.ConnectStream(context.Background(), "tok"))

	c.Enqueue(protocol.MsgSyncRequest, protocol.SyncRequestPayload{GameID: "g1"})
	require.Equal(t, 1, c.QueueLen())

	c.Disconnect()

	assert.Zero(t, c.QueueLen())
	assert.Equal(t, StateDisconnected, c.State())
	select {
	case ev := <-disconnected:
		assert.Equal(t, "client closed", ev.Reason)
	case <-time.After(time.Second):
		t.Fatal("disconnect event never published")
	}
}
