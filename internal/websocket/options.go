package websocket

import (
	"go-match-chat/pkg/config"
	"go-match-chat/pkg/logger"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultWriteWait      = 10 * time.Second
	defaultPingInterval   = 30 * time.Second
	defaultMaxMessageSize = 16 << 20
	defaultSendBuffer     = 256
	defaultAuthTimeout    = 5 * time.Second
	defaultRetryCount     = 3
	defaultRetryInterval  = 100 * time.Millisecond
)

// Options 单个连接的运行参数
type Options struct {
	WriteWait    time.Duration
	PingInterval time.Duration
	// 0 表示不因缺少 pong 断开
	PongWait       time.Duration
	MaxMessageSize int64
	SendBufferSize int
	AuthTimeout    time.Duration

	InboundRate  rate.Limit
	InboundBurst int

	RetryCount    int
	RetryInterval time.Duration
}

func DefaultOptions() Options {
	return Options{
		WriteWait:      defaultWriteWait,
		PingInterval:   defaultPingInterval,
		MaxMessageSize: defaultMaxMessageSize,
		SendBufferSize: defaultSendBuffer,
		AuthTimeout:    defaultAuthTimeout,
		RetryCount:     defaultRetryCount,
		RetryInterval:  defaultRetryInterval,
	}
}

// OptionsFromConfig 根据配置生成参数，非法值回退到默认值
func OptionsFromConfig(cfg config.WebSocketConfig) Options {
	opts := DefaultOptions()

	if cfg.WriteWaitSeconds > 0 {
		opts.WriteWait = time.Duration(cfg.WriteWaitSeconds) * time.Second
	} else {
		logger.L.Warn("Invalid write_wait_seconds, using default", zap.Duration("default", opts.WriteWait))
	}

	if cfg.PingIntervalSeconds > 0 {
		opts.PingInterval = time.Duration(cfg.PingIntervalSeconds) * time.Second
	} else {
		logger.L.Warn("Invalid ping_interval_seconds, using default", zap.Duration("default", opts.PingInterval))
	}

	if cfg.PongWaitSeconds > 0 {
		opts.PongWait = time.Duration(cfg.PongWaitSeconds) * time.Second
		if opts.PongWait <= opts.PingInterval {
			opts.PongWait = opts.PingInterval + opts.WriteWait
			logger.L.Warn("pong_wait_seconds must exceed ping interval, adjusted", zap.Duration("pongWait", opts.PongWait))
		}
	}

	if cfg.MaxMessageSize > 0 {
		opts.MaxMessageSize = cfg.MaxMessageSize
	}

	if cfg.SendBufferSize > 0 {
		opts.SendBufferSize = cfg.SendBufferSize
	} else {
		logger.L.Warn("Invalid send_buffer_size, using default", zap.Int("default", opts.SendBufferSize))
	}

	if cfg.AuthTimeoutSeconds > 0 {
		opts.AuthTimeout = time.Duration(cfg.AuthTimeoutSeconds) * time.Second
	}

	if cfg.InboundRatePerSecond > 0 {
		opts.InboundRate = rate.Limit(cfg.InboundRatePerSecond)
		opts.InboundBurst = cfg.InboundBurst
		if opts.InboundBurst <= 0 {
			opts.InboundBurst = 1
		}
	}

	if cfg.MessageRetryCount >= 0 {
		opts.RetryCount = cfg.MessageRetryCount
	}

	if cfg.MessageRetryIntervalMs > 0 {
		opts.RetryInterval = time.Duration(cfg.MessageRetryIntervalMs) * time.Millisecond
	} else {
		logger.L.Warn("Invalid message_retry_interval_ms, using default", zap.Duration("default", opts.RetryInterval))
	}

	return opts
}
