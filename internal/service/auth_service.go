package service

import (
	"context"
	"errors"
	"fmt"
	"go-match-chat/internal/model"
	"go-match-chat/pkg/logger"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists         = errors.New("nickname already exists")
	ErrInvalidCredentials = errors.New("invalid nickname or password")
)

// 处理注册与登录
type AuthService struct {
	users    UserStore
	issuer   TokenIssuer
	tokenTTL time.Duration
}

func NewAuthService(users UserStore, issuer TokenIssuer, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		users:    users,
		issuer:   issuer,
		tokenTTL: tokenTTL,
	}
}

// 用户注册请求
type RegisterRequest struct {
	Nickname  string `json:"nickname" binding:"required,min=1,max=50"`
	Age       string `json:"age" binding:"required"`
	Password  string `json:"password" binding:"required,min=6"`
	Instagram string `json:"instagram"`
}

// 用户登录请求
type LoginRequest struct {
	Nickname string `json:"nickname" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// 注册成功后同样返回令牌，客户端可直接建立 websocket 连接
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (string, *model.User, error) {
	existing, err := s.users.FindByNickname(ctx, req.Nickname)
	if err != nil {
		return "", nil, fmt.Errorf("failed to check nickname: %w", err)
	}
	if existing != nil {
		return "", nil, ErrUserExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Nickname:  req.Nickname,
		Age:       req.Age,
		Password:  string(hashedPassword),
		Instagram: normalizeInstagram(req.Instagram),
		IsActive:  true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return "", nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.issuer.Issue(user.ID, s.tokenTTL)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue token: %w", err)
	}
	logger.L.Info("User registered", zap.Uint("userID", user.ID), zap.String("nickname", user.Nickname))
	return token, user, nil
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (string, *model.User, error) {
	user, err := s.users.FindByNickname(ctx, req.Nickname)
	if err != nil {
		return "", nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return "", nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.issuer.Issue(user.ID, s.tokenTTL)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return token, user, nil
}

// Profile 返回当前用户，不存在时返回 nil
func (s *AuthService) Profile(ctx context.Context, userID uint) (*model.User, error) {
	return s.users.FindByID(ctx, userID)
}

// instagram 账号统一带 @ 前缀
func normalizeInstagram(handle string) string {
	handle = strings.TrimSpace(handle)
	if handle == "" || strings.HasPrefix(handle, "@") {
		return handle
	}
	return "@" + handle
}
