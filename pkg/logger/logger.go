package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// L 全局日志记录器
// InitLogger 之前为 no-op，库代码和测试可以直接使用
var L = zap.NewNop()

// New 构建日志记录器
// production 为 true 时输出 JSON，否则输出带颜色的控制台格式。
// level 无法解析时回退到 info。
func New(level string, production bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: invalid log level %q, falling back to info\n", level)
		lvl = zapcore.InfoLevel
	}

	var cfg zap.Config
	if production {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	// 控制台客户端把标准输出留给消息
	cfg.OutputPaths = []string{"stderr"}

	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build zap logger: %w", err)
	}
	return l, nil
}

// InitLogger 替换全局记录器，并把标准库 log 的输出转到 zap
func InitLogger(level string, production bool) error {
	l, err := New(level, production)
	if err != nil {
		return err
	}
	L = l
	zap.ReplaceGlobals(l)
	zap.RedirectStdLog(l)

	L.Debug("Logger initialized", zap.String("level", level), zap.Bool("production", production))
	return nil
}

// Sync 刷新缓冲的日志，进程退出前调用
func Sync() {
	_ = L.Sync()
}
