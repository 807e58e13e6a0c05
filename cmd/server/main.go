package main

import (
	"context"
	"errors"
	"go-match-chat/internal/api"
	"go-match-chat/internal/auth"
	"go-match-chat/internal/repository"
	"go-match-chat/internal/service"
	internalws "go-match-chat/internal/websocket"
	"go-match-chat/pkg/config"
	"go-match-chat/pkg/db"
	"go-match-chat/pkg/logger"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// 初始化配置
	if err := config.Init(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := config.GlobalConfig

	if err := logger.InitLogger(cfg.Log.Level, cfg.Log.Production); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if cfg.JWT.Secret == "" {
		logger.L.Fatal("jwt.secret is empty, set it in config or JWT_SECRET")
	}

	// 初始化数据库连接
	if err := db.InitDB(cfg.Database); err != nil {
		logger.L.Fatal("Failed to initialize database", zap.Error(err))
	}

	userRepo := repository.NewUserRepository(db.DB)
	matchRepo := repository.NewMatchRepository(db.DB)
	messageRepo := repository.NewMessageRepository(db.DB)

	verifier := auth.NewVerifier(cfg.JWT.Secret, userRepo)
	registry := internalws.NewRegistry(cfg.WebSocket.MaxConnectionsPerUser)
	broadcaster := internalws.NewBroadcaster(registry, matchRepo)
	wsOpts := internalws.OptionsFromConfig(cfg.WebSocket)

	gin.SetMode(cfg.Server.Mode)
	router := api.NewRouter(api.RouterDeps{
		Auth:     api.NewAuthHandler(service.NewAuthService(userRepo, verifier, cfg.JWT.Expiration)),
		Chat:     api.NewChatHandler(service.NewChatService(broadcaster, matchRepo, messageRepo)),
		Matches:  api.NewMatchHandler(service.NewMatchService(userRepo, matchRepo)),
		WS:       api.NewWSHandler(verifier, registry, wsOpts, cfg.WebSocket.AllowedOrigins),
		Verifier: verifier,
		Registry: registry,
		WSPath:   cfg.WebSocket.Path,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.L.Info("Server starting", zap.String("addr", cfg.Server.Addr), zap.String("wsPath", cfg.WebSocket.Path))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		timeout := time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		logger.L.Info("Shutting down server", zap.Duration("timeout", timeout))
		// 已升级的 websocket 连接不受 Shutdown 管理，随进程退出关闭
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.L.Error("Server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.L.Info("Server stopped")
}
