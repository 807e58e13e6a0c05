package auth

import (
	"context"
	"errors"
	"go-match-chat/internal/model"
	"go-match-chat/pkg/utils"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Reason 令牌校验失败的原因
type Reason string

const (
	ReasonMalformed    Reason = "malformed"
	ReasonInvalid      Reason = "invalid"
	ReasonUserNotFound Reason = "user_not_found"
	ReasonLookupFailed Reason = "lookup_failed"
)

// VerificationError 是 Verify 返回的唯一错误类型
// Error() 的内容可以直接返回给客户端
type VerificationError struct {
	Reason Reason
	Err    error
}

func (e *VerificationError) Error() string {
	switch e.Reason {
	case ReasonMalformed:
		if errors.Is(e.Err, errEmptyToken) {
			return "No token provided"
		}
		return "Malformed token"
	case ReasonInvalid:
		return "Invalid token"
	case ReasonUserNotFound:
		return "User not found"
	default:
		return "Database error"
	}
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

var errEmptyToken = errors.New("empty token")

type UserResolver interface {
	FindByID(ctx context.Context, id uint) (*model.User, error)
}

// Verifier 校验 JWT 并通过用户存储解析出用户ID
type Verifier struct {
	secret []byte
	users  UserResolver
}

func NewVerifier(secret string, users UserResolver) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		users:  users,
	}
}

// Verify 成功时返回用户ID；失败时返回 *VerificationError
// 用户已被删除时即使签名有效也返回 ReasonUserNotFound
func (v *Verifier) Verify(ctx context.Context, token string) (uint, error) {
	if token == "" {
		return 0, &VerificationError{Reason: ReasonMalformed, Err: errEmptyToken}
	}

	claims, err := utils.ParseToken(v.secret, token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) || errors.Is(err, utils.ErrInvalidToken) {
			return 0, &VerificationError{Reason: ReasonMalformed, Err: err}
		}
		return 0, &VerificationError{Reason: ReasonInvalid, Err: err}
	}

	user, err := v.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return 0, &VerificationError{Reason: ReasonLookupFailed, Err: err}
	}
	if user == nil {
		return 0, &VerificationError{Reason: ReasonUserNotFound}
	}
	return user.ID, nil
}

// Issue 为用户签发令牌，登录接口使用
func (v *Verifier) Issue(userID uint, ttl time.Duration) (string, error) {
	return utils.GenerateToken(v.secret, userID, ttl)
}
