package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"go-match-chat/internal/auth"
	"go-match-chat/internal/model"
	"go-match-chat/internal/service"
	internalws "go-match-chat/internal/websocket"
	"go-match-chat/pkg/wsclient"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type memUsers struct {
	mu    sync.Mutex
	users []*model.User
}

func (m *memUsers) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.ID = uint(len(m.users) + 1)
	m.users = append(m.users, user)
	return nil
}

func (m *memUsers) FindByNickname(_ context.Context, nickname string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Nickname == nickname {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memUsers) FindByID(_ context.Context, id uint) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

type memMatches struct {
	mu      sync.Mutex
	matches map[uint]*model.Match
}

func (m *memMatches) add(id, userID1, userID2 uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matches[id] = &model.Match{ID: id, UserID1: userID1, UserID2: userID2, Status: model.MatchStatusMatched}
}

func (m *memMatches) Create(_ context.Context, userID1, userID2 uint) (*model.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	match := &model.Match{
		ID:        uint(len(m.matches) + 1),
		UserID1:   userID1,
		UserID2:   userID2,
		Status:    model.MatchStatusMatched,
		CreatedAt: time.Now(),
	}
	m.matches[match.ID] = match
	return match, nil
}

func (m *memMatches) FindBetween(_ context.Context, userID1, userID2 uint) (*model.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, match := range m.matches {
		if match.HasParticipant(userID1) && match.HasParticipant(userID2) {
			return match, nil
		}
	}
	return nil, nil
}

func (m *memMatches) ListByUser(_ context.Context, userID uint) ([]model.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Match
	for id := uint(len(m.matches)); id > 0; id-- {
		if match, ok := m.matches[id]; ok && match.HasParticipant(userID) {
			out = append(out, *match)
		}
	}
	return out, nil
}

func (m *memMatches) FindByID(_ context.Context, id uint) (*model.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matches[id], nil
}

func (m *memMatches) GetConversationParticipants(_ context.Context, matchID uint) (uint, uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[matchID]
	if !ok {
		return 0, 0, errors.New("match not found")
	}
	return match.UserID1, match.UserID2, nil
}

type memMessages struct {
	mu       sync.Mutex
	messages []model.Message
}

func (m *memMessages) Create(_ context.Context, message *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	message.ID = uint(len(m.messages) + 1)
	message.CreatedAt = time.Now()
	m.messages = append(m.messages, *message)
	return nil
}

func (m *memMessages) FindByMatchID(_ context.Context, matchID uint, limit, offset int) ([]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Message
	for _, msg := range m.messages {
		if msg.MatchID == matchID {
			out = append(out, msg)
		}
	}
	if offset >= len(out) {
		return []model.Message{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memMessages) MarkAsRead(_ context.Context, matchID, readerID uint) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.messages {
		msg := &m.messages[i]
		if msg.MatchID == matchID && msg.SenderID != readerID && !msg.IsRead {
			msg.IsRead = true
			n++
		}
	}
	return n, nil
}

type testApp struct {
	server   *httptest.Server
	registry *internalws.Registry
	matches  *memMatches
}

func newTestApp(t *testing.T, allowedOrigins ...string) *testApp {
	t.Helper()
	return newTestAppWithLimit(t, 0, allowedOrigins...)
}

// newTestAppWithLimit maxPerUser 为每用户连接上限，0 表示不限
func newTestAppWithLimit(t *testing.T, maxPerUser int, allowedOrigins ...string) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := &memUsers{}
	matches := &memMatches{matches: make(map[uint]*model.Match)}
	messages := &memMessages{}

	verifier := auth.NewVerifier("router-test-secret", users)
	registry := internalws.NewRegistry(maxPerUser)
	broadcaster := internalws.NewBroadcaster(registry, matches)

	opts := internalws.DefaultOptions()
	opts.SendBufferSize = 16

	router := NewRouter(RouterDeps{
		Auth:     NewAuthHandler(service.NewAuthService(users, verifier, time.Hour)),
		Chat:     NewChatHandler(service.NewChatService(broadcaster, matches, messages)),
		Matches:  NewMatchHandler(service.NewMatchService(users, matches)),
		WS:       NewWSHandler(verifier, registry, opts, allowedOrigins),
		Verifier: verifier,
		Registry: registry,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testApp{server: srv, registry: registry, matches: matches}
}

func (a *testApp) wsURL() string {
	return "ws" + strings.TrimPrefix(a.server.URL, "http") + "/ws"
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, buf.Bytes()
}

func (a *testApp) register(t *testing.T, nickname string) (uint, string) {
	t.Helper()
	status, body := a.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"nickname": nickname,
		"age":      "21",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, status, string(body))

	var resp struct {
		Token string     `json:"token"`
		User  model.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	require.NotEmpty(t, resp.Token)
	return resp.User.ID, resp.Token
}

func connectClient(t *testing.T, url, token string) (*wsclient.Controller, <-chan wsclient.Message) {
	t.Helper()
	received := make(chan wsclient.Message, 8)
	connected := make(chan struct{}, 1)

	cfg := wsclient.DefaultConfig(url, token)
	client := wsclient.NewController(cfg, wsclient.Handlers{
		OnMessage:   func(m wsclient.Message) { received <- m },
		OnConnected: func(uint) { connected <- struct{}{} },
	})
	client.Connect()
	t.Cleanup(client.Close)

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatalf("client did not authenticate, state %s", client.State())
	}
	return client, received
}

func TestRouter_MessageFlowsToRecipient(t *testing.T) {
	app := newTestApp(t)
	aliceID, aliceToken := app.register(t, "alice")
	bobID, bobToken := app.register(t, "bob")
	app.matches.add(1, aliceID, bobID)

	alice, aliceInbox := connectClient(t, app.wsURL(), aliceToken)
	_, bobInbox := connectClient(t, app.wsURL(), bobToken)
	_, bobSecondInbox := connectClient(t, app.wsURL(), bobToken)
	assert.Equal(t, aliceID, alice.UserID())
	assert.Len(t, app.registry.ConnectionsFor(bobID), 2)

	status, body := app.do(t, http.MethodPost, "/api/messages", aliceToken, map[string]any{
		"matchId": 1,
		"content": "hi bob",
	})
	require.Equal(t, http.StatusCreated, status, string(body))

	for _, inbox := range []<-chan wsclient.Message{bobInbox, bobSecondInbox} {
		select {
		case m := <-inbox:
			assert.Equal(t, "hi bob", m.Content)
			assert.Equal(t, aliceID, m.SenderID)
			assert.Equal(t, uint(1), m.MatchID)
			assert.Equal(t, model.MessageTypeText, m.MessageType)
		case <-time.After(2 * time.Second):
			t.Fatal("bob did not receive the message")
		}
	}

	select {
	case m := <-aliceInbox:
		t.Fatalf("sender received own message: %+v", m)
	case <-time.After(100 * time.Millisecond):
	}

	status, body = app.do(t, http.MethodGet, "/api/messages/1", bobToken, nil)
	require.Equal(t, http.StatusOK, status)
	var history []model.Message
	require.NoError(t, json.Unmarshal(body, &history))
	require.Len(t, history, 1)
	assert.False(t, history[0].IsRead)

	status, body = app.do(t, http.MethodPut, "/api/messages/1/read", bobToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"success":true,"updated":1}`, string(body))
}

func TestRouter_MessageAuthorization(t *testing.T) {
	app := newTestApp(t)
	aliceID, aliceToken := app.register(t, "alice")
	bobID, _ := app.register(t, "bob")
	_, eveToken := app.register(t, "eve")
	app.matches.add(1, aliceID, bobID)

	tests := []struct {
		name       string
		token      string
		body       map[string]any
		wantStatus int
	}{
		{"Outsider", eveToken, map[string]any{"matchId": 1, "content": "hi"}, http.StatusForbidden},
		{"Unknown match", aliceToken, map[string]any{"matchId": 7, "content": "hi"}, http.StatusNotFound},
		{"Missing match id", aliceToken, map[string]any{"content": "hi"}, http.StatusBadRequest},
		{"Bad type", aliceToken, map[string]any{"matchId": 1, "content": "hi", "messageType": "gif"}, http.StatusBadRequest},
		{"No token", "", map[string]any{"matchId": 1, "content": "hi"}, http.StatusUnauthorized},
		{"Garbage token", "not-a-jwt", map[string]any{"matchId": 1, "content": "hi"}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := app.do(t, http.MethodPost, "/api/messages", tt.token, tt.body)
			assert.Equal(t, tt.wantStatus, status, string(body))
		})
	}
}

func TestRouter_LoginAndMe(t *testing.T) {
	app := newTestApp(t)
	id, _ := app.register(t, "carol")

	status, _ := app.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"nickname": "carol", "age": "22", "password": "password123",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = app.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"nickname": "carol", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := app.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"nickname": "carol", "password": "password123",
	})
	require.Equal(t, http.StatusOK, status)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(body, &login))

	status, body = app.do(t, http.MethodGet, "/api/me", login.Token, nil)
	require.Equal(t, http.StatusOK, status)
	var me model.User
	require.NoError(t, json.Unmarshal(body, &me))
	assert.Equal(t, id, me.ID)
	assert.NotContains(t, string(body), "password")
}

func TestRouter_WebsocketAuthErrorKeepsConnection(t *testing.T) {
	app := newTestApp(t)
	_, token := app.register(t, "dave")

	ws, _, err := websocket.DefaultDialer.Dial(app.wsURL(), nil)
	require.NoError(t, err)
	defer ws.Close()

	read := func() map[string]any {
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
		var frame map[string]any
		require.NoError(t, ws.ReadJSON(&frame))
		return frame
	}

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "auth", "token": "forged"}))
	frame := read()
	assert.Equal(t, "auth_error", frame["type"])
	assert.Equal(t, "Malformed token", frame["message"])

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "auth", "token": token}))
	frame = read()
	assert.Equal(t, "auth_success", frame["type"])
	assert.Equal(t, 1, app.registry.Count())
}

func TestRouter_ClientGivesUpOnRejectedToken(t *testing.T) {
	app := newTestApp(t)

	authErrs := make(chan *wsclient.AuthError, 1)
	client := wsclient.NewController(wsclient.DefaultConfig(app.wsURL(), "bogus"), wsclient.Handlers{
		OnAuthError: func(err *wsclient.AuthError) { authErrs <- err },
	})
	client.Connect()
	defer client.Close()

	select {
	case err := <-authErrs:
		assert.NotEmpty(t, err.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("expected auth error")
	}
	assert.Equal(t, wsclient.StateDisconnected, client.State())
}

func TestRouter_OriginAllowList(t *testing.T) {
	app := newTestApp(t, "https://app.example.com")

	tests := []struct {
		origin string
		wantOK bool
	}{
		{"https://app.example.com", true},
		{"https://evil.example.com", false},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("origin=%q", tt.origin), func(t *testing.T) {
			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			ws, resp, err := websocket.DefaultDialer.Dial(app.wsURL(), header)
			if tt.wantOK {
				require.NoError(t, err)
				ws.Close()
				return
			}
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		})
	}
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	app := newTestApp(t)

	status, body := app.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok","onlineUsers":0,"connections":0}`, string(body))

	status, body = app.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "matchchat_ws_active_connections")
}

func TestRouter_CreateAndListMatches(t *testing.T) {
	app := newTestApp(t)
	aliceID, aliceToken := app.register(t, "alice")
	bobID, bobToken := app.register(t, "bob")

	status, body := app.do(t, http.MethodPost, "/api/matches", aliceToken, map[string]any{"targetUserId": bobID})
	require.Equal(t, http.StatusCreated, status, string(body))
	var match model.Match
	require.NoError(t, json.Unmarshal(body, &match))
	assert.True(t, match.HasParticipant(aliceID))
	assert.True(t, match.HasParticipant(bobID))

	tests := []struct {
		name       string
		token      string
		body       map[string]any
		wantStatus int
	}{
		{"Duplicate", bobToken, map[string]any{"targetUserId": aliceID}, http.StatusBadRequest},
		{"Self", aliceToken, map[string]any{"targetUserId": aliceID}, http.StatusBadRequest},
		{"Unknown user", aliceToken, map[string]any{"targetUserId": 999}, http.StatusNotFound},
		{"Missing target", aliceToken, map[string]any{}, http.StatusBadRequest},
		{"No token", "", map[string]any{"targetUserId": bobID}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := app.do(t, http.MethodPost, "/api/matches", tt.token, tt.body)
			assert.Equal(t, tt.wantStatus, status, string(body))
		})
	}

	status, body = app.do(t, http.MethodGet, "/api/matches", bobToken, nil)
	require.Equal(t, http.StatusOK, status)
	var summaries []struct {
		ID        uint       `json:"id"`
		OtherUser model.User `json:"otherUser"`
	}
	require.NoError(t, json.Unmarshal(body, &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, match.ID, summaries[0].ID)
	assert.Equal(t, aliceID, summaries[0].OtherUser.ID)

	// 通过接口创建的会话可以直接发消息
	_, bobInbox := connectClient(t, app.wsURL(), bobToken)
	status, body = app.do(t, http.MethodPost, "/api/messages", aliceToken, map[string]any{
		"matchId": match.ID,
		"content": "we matched",
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	select {
	case m := <-bobInbox:
		assert.Equal(t, "we matched", m.Content)
	case <-time.After(2 * time.Second):
		t.Fatal("bob did not receive the message")
	}
}

func TestRouter_EvictedClientStopsReconnecting(t *testing.T) {
	app := newTestAppWithLimit(t, 1)
	userID, token := app.register(t, "erin")

	evicted := make(chan error, 1)
	connected := make(chan struct{}, 4)
	first := wsclient.NewController(wsclient.DefaultConfig(app.wsURL(), token), wsclient.Handlers{
		OnConnected: func(uint) { connected <- struct{}{} },
		OnEvicted:   func(err error) { evicted <- err },
	})
	first.Connect()
	t.Cleanup(first.Close)
	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("first client did not authenticate")
	}

	second, _ := connectClient(t, app.wsURL(), token)

	select {
	case err := <-evicted:
		assert.ErrorIs(t, err, wsclient.ErrEvicted)
	case <-time.After(2 * time.Second):
		t.Fatal("first client was not evicted")
	}
	assert.Equal(t, wsclient.StateDisconnected, first.State())

	// 被挤掉的一方不会重连把新连接挤回去
	select {
	case <-connected:
		t.Fatal("evicted client reconnected")
	case <-time.After(1500 * time.Millisecond):
	}
	assert.Equal(t, wsclient.StateConnected, second.State())
	assert.Len(t, app.registry.ConnectionsFor(userID), 1)
}
