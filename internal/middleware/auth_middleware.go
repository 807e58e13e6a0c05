package middleware

import (
	"context"
	"errors"
	"go-match-chat/internal/auth"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextUserID gin 上下文中保存当前用户ID的键
const ContextUserID = "userID"

type TokenVerifier interface {
	Verify(ctx context.Context, token string) (uint, error)
}

// 验证 Bearer 令牌，与 websocket 认证使用同一个 Verifier
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header is required"})
			return
		}

		// 格式为: "Bearer token"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}

		userID, err := verifier.Verify(c.Request.Context(), parts[1])
		if err != nil {
			status := http.StatusUnauthorized
			var verr *auth.VerificationError
			if errors.As(err, &verr) && verr.Reason == auth.ReasonLookupFailed {
				status = http.StatusInternalServerError
			}
			c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
			return
		}

		c.Set(ContextUserID, userID)
		c.Next()
	}
}

// UserID 取出 AuthMiddleware 写入的用户ID
func UserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}
