package main

import (
	"context"
	"flag"
	"fmt"
	"go-match-chat/pkg/logger"
	"go-match-chat/pkg/wsclient"
	"os"
	"os/signal"
	"syscall"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// 连接聊天服务，按行输出收到的消息（JSON）
func main() {
	url := flag.String("url", "ws://localhost:5000/ws", "websocket endpoint")
	token := flag.String("token", os.Getenv("MATCHCHAT_TOKEN"), "session token (default $MATCHCHAT_TOKEN)")
	logLevel := flag.String("log", "warn", "log level written to stderr")
	maxRetries := flag.Uint64("retries", 5, "reconnect attempts before giving up")
	flag.Parse()

	if *token == "" {
		fmt.Fprintln(os.Stderr, "Error: -token is required")
		os.Exit(2)
	}
	if err := logger.InitLogger(*logLevel, false); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(os.Stdout)
	exit := make(chan int, 3)

	cfg := wsclient.DefaultConfig(*url, *token)
	cfg.MaxRetries = *maxRetries
	client := wsclient.NewController(cfg, wsclient.Handlers{
		OnMessage: func(m wsclient.Message) {
			if err := enc.Encode(m); err != nil {
				fmt.Fprintf(os.Stderr, "Error encoding message: %v\n", err)
			}
		},
		OnStateChange: func(from, to wsclient.State) {
			fmt.Fprintf(os.Stderr, "%s state %s -> %s\n", time.Now().Format(time.RFC3339), from, to)
		},
		OnConnected: func(userID uint) {
			fmt.Fprintf(os.Stderr, "Authenticated as user %d\n", userID)
		},
		OnServerError: func(message string) {
			fmt.Fprintf(os.Stderr, "Server error: %s\n", message)
		},
		OnAuthError: func(err *wsclient.AuthError) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exit <- 3
		},
		OnGiveUp: func(err error) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exit <- 4
		},
		OnEvicted: func(err error) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exit <- 5
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client.Connect()

	code := 0
	select {
	case <-ctx.Done():
	case code = <-exit:
	}
	client.Close()
	logger.Sync()
	os.Exit(code)
}
