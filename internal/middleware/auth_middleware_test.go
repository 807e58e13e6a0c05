package middleware

import (
	"context"
	"errors"
	"go-match-chat/internal/auth"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type stubVerifier struct{}

func (stubVerifier) Verify(_ context.Context, token string) (uint, error) {
	switch token {
	case "good":
		return 42, nil
	case "broken-db":
		return 0, &auth.VerificationError{Reason: auth.ReasonLookupFailed, Err: errors.New("db down")}
	default:
		return 0, &auth.VerificationError{Reason: auth.ReasonInvalid}
	}
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"Valid token", "Bearer good", http.StatusOK},
		{"Missing auth header", "", http.StatusUnauthorized},
		{"Invalid auth format", "Token good", http.StatusUnauthorized},
		{"Invalid token", "Bearer invalid.token.here", http.StatusUnauthorized},
		{"Store failure", "Bearer broken-db", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(GinZapLogger(), AuthMiddleware(stubVerifier{}))
			r.GET("/test", func(c *gin.Context) {
				userID, ok := UserID(c)
				if !ok {
					c.JSON(http.StatusInternalServerError, gin.H{"error": "userID not set"})
					return
				}
				c.JSON(http.StatusOK, gin.H{"user_id": userID})
			})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
			if tt.wantStatus == http.StatusOK {
				assert.JSONEq(t, `{"user_id":42}`, w.Body.String())
			}
		})
	}
}

func TestGinZapLogger_KeepsIncomingRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinZapLogger("/healthz"))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
}
