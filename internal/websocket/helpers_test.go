package websocket

import (
	"context"
	"errors"
	"go-match-chat/internal/auth"
	"sync"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"
)

// fakeClient 记录收到的数据，可配置为关闭或推送失败
type fakeClient struct {
	id     string
	userID uint

	mu       sync.Mutex
	open     bool
	failWith error
	received [][]byte
	closed   int
	evicted  int
}

func newFakeClient(id string, userID uint) *fakeClient {
	return &fakeClient{id: id, userID: userID, open: true}
}

func (f *fakeClient) ID() string      { return f.id }
func (f *fakeClient) GetUserID() uint { return f.userID }

func (f *fakeClient) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeClient) QueueBytes(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return ErrConnectionClosed
	}
	if f.failWith != nil {
		return f.failWith
	}
	f.received = append(f.received, data)
	return nil
}

func (f *fakeClient) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	f.closed++
}

func (f *fakeClient) Evict() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	f.evicted++
}

func (f *fakeClient) evictCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.evicted
}

func (f *fakeClient) messages() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.received...)
}

func (f *fakeClient) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeVerifier 按预置的 token 返回用户
type fakeVerifier struct {
	tokens map[string]uint
}

func (v *fakeVerifier) Verify(_ context.Context, token string) (uint, error) {
	if token == "" {
		return 0, &auth.VerificationError{Reason: auth.ReasonMalformed}
	}
	if id, ok := v.tokens[token]; ok {
		return id, nil
	}
	return 0, &auth.VerificationError{Reason: auth.ReasonInvalid}
}

var errMatchMissing = errors.New("match not found")

type fakeParticipants struct {
	pairs map[uint][2]uint
	err   error
}

func (f *fakeParticipants) GetConversationParticipants(_ context.Context, matchID uint) (uint, uint, error) {
	if f.err != nil {
		return 0, 0, f.err
	}
	p, ok := f.pairs[matchID]
	if !ok {
		return 0, 0, errMatchMissing
	}
	return p[0], p[1], nil
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.SendBufferSize = 8
	opts.WriteWait = time.Second
	opts.RetryCount = 1
	opts.RetryInterval = time.Millisecond
	return opts
}

type serverFrame struct {
	Type    string              `json:"type"`
	UserID  uint                `json:"userId"`
	Message jsoniter.RawMessage `json:"message"`
}

func decodeServerFrame(t *testing.T, data []byte) serverFrame {
	t.Helper()
	var f serverFrame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

// nextFrame 读取连接发送队列中的下一帧
func nextFrame(t *testing.T, c *Conn) serverFrame {
	t.Helper()
	select {
	case data := <-c.send:
		return decodeServerFrame(t, data)
	case <-time.After(time.Second):
		t.Fatal("expected a queued frame")
		return serverFrame{}
	}
}

func requireNoFrame(t *testing.T, c *Conn) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected frame queued: %s", data)
	default:
	}
}
