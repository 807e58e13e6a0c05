package service

import (
	"context"
	"errors"
	"fmt"
	"go-match-chat/internal/model"
	"sync"
	"time"
)

type fakeUsers struct {
	mu     sync.Mutex
	byID   map[uint]*model.User
	nextID uint
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: make(map[uint]*model.User)}
}

func (f *fakeUsers) Create(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	user.ID = f.nextID
	f.byID[user.ID] = user
	return nil
}

func (f *fakeUsers) FindByNickname(_ context.Context, nickname string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Nickname == nickname {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) FindByID(_ context.Context, id uint) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id], nil
}

type fakeIssuer struct{}

func (fakeIssuer) Issue(userID uint, ttl time.Duration) (string, error) {
	return fmt.Sprintf("token-%d-%s", userID, ttl), nil
}

type fakeMatches map[uint]*model.Match

func (f fakeMatches) FindByID(_ context.Context, id uint) (*model.Match, error) {
	return f[id], nil
}

type fakeMessages struct {
	mu      sync.Mutex
	stored  []model.Message
	failing bool
}

func (f *fakeMessages) Create(_ context.Context, message *model.Message) error {
	if f.failing {
		return errors.New("db down")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	message.ID = uint(len(f.stored) + 1)
	message.CreatedAt = time.Now()
	f.stored = append(f.stored, *message)
	return nil
}

func (f *fakeMessages) FindByMatchID(_ context.Context, matchID uint, limit, offset int) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Message
	for _, m := range f.stored {
		if m.MatchID == matchID {
			out = append(out, m)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeMessages) MarkAsRead(_ context.Context, matchID, readerID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for i := range f.stored {
		m := &f.stored[i]
		if m.MatchID == matchID && m.SenderID != readerID && !m.IsRead {
			m.IsRead = true
			n++
		}
	}
	return n, nil
}

type broadcastCall struct {
	matchID     uint
	event       model.MessageEvent
	excludeUser uint
}

type fakeBroadcaster struct {
	mu    sync.Mutex
	calls []broadcastCall
	err   error
}

func (f *fakeBroadcaster) Broadcast(_ context.Context, matchID uint, event model.MessageEvent, excludeUser uint) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, broadcastCall{matchID: matchID, event: event, excludeUser: excludeUser})
	if f.err != nil {
		return 0, f.err
	}
	return 1, nil
}

// fakeCatalog 内存中的配对表
type fakeCatalog struct {
	mu      sync.Mutex
	matches []model.Match
	failing bool
}

func (f *fakeCatalog) Create(_ context.Context, userID1, userID2 uint) (*model.Match, error) {
	if f.failing {
		return nil, errors.New("db down")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m := model.Match{
		ID:        uint(len(f.matches) + 1),
		UserID1:   userID1,
		UserID2:   userID2,
		Status:    model.MatchStatusMatched,
		CreatedAt: time.Now(),
	}
	f.matches = append(f.matches, m)
	return &m, nil
}

func (f *fakeCatalog) FindBetween(_ context.Context, userID1, userID2 uint) (*model.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.matches {
		m := f.matches[i]
		if (m.UserID1 == userID1 && m.UserID2 == userID2) || (m.UserID1 == userID2 && m.UserID2 == userID1) {
			return &m, nil
		}
	}
	return nil, nil
}

func (f *fakeCatalog) ListByUser(_ context.Context, userID uint) ([]model.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Match
	for i := len(f.matches) - 1; i >= 0; i-- {
		if f.matches[i].HasParticipant(userID) {
			out = append(out, f.matches[i])
		}
	}
	return out, nil
}
