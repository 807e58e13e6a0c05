package service

import (
	"context"
	"errors"
	"fmt"
	"go-match-chat/internal/model"
	"go-match-chat/pkg/logger"

	"go.uber.org/zap"
)

var (
	ErrSelfMatch    = errors.New("cannot match with yourself")
	ErrUserNotFound = errors.New("user not found")
	ErrMatchExists  = errors.New("match already exists")
)

type MatchService struct {
	users   UserStore
	matches MatchCatalog
}

func NewMatchService(users UserStore, matches MatchCatalog) *MatchService {
	return &MatchService{users: users, matches: matches}
}

type CreateMatchRequest struct {
	TargetUserID uint `json:"targetUserId" binding:"required"`
}

// MatchSummary 配对及对方的公开资料
type MatchSummary struct {
	model.Match
	OtherUser *model.User `json:"otherUser,omitempty"`
}

// CreateMatch 为两个用户建立会话，同一对用户只能有一个配对
func (s *MatchService) CreateMatch(ctx context.Context, userID, targetUserID uint) (*model.Match, error) {
	if userID == targetUserID {
		return nil, ErrSelfMatch
	}

	target, err := s.users.FindByID(ctx, targetUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user %d: %w", targetUserID, err)
	}
	if target == nil {
		return nil, ErrUserNotFound
	}

	existing, err := s.matches.FindBetween(ctx, userID, targetUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing match: %w", err)
	}
	if existing != nil {
		return nil, ErrMatchExists
	}

	match, err := s.matches.Create(ctx, userID, targetUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}
	logger.L.Info("Match created",
		zap.Uint("matchID", match.ID),
		zap.Uint("userID", userID),
		zap.Uint("targetUserID", targetUserID))
	return match, nil
}

// ListMatches 用户参与的配对，附带对方资料
func (s *MatchService) ListMatches(ctx context.Context, userID uint) ([]MatchSummary, error) {
	matches, err := s.matches.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}

	out := make([]MatchSummary, 0, len(matches))
	for _, m := range matches {
		otherID := m.UserID1
		if otherID == userID {
			otherID = m.UserID2
		}
		other, err := s.users.FindByID(ctx, otherID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up user %d: %w", otherID, err)
		}
		out = append(out, MatchSummary{Match: m, OtherUser: other})
	}
	return out, nil
}
