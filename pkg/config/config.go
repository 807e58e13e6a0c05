package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// gin 运行模式: debug / release / test
	Mode                   string `mapstructure:"mode"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Production bool   `mapstructure:"production"`
}

type DatabaseConfig struct {
	// mysql 或 postgres
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

type WebSocketConfig struct {
	Path           string   `mapstructure:"path"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	WriteWaitSeconds    int `mapstructure:"write_wait_seconds"`
	PingIntervalSeconds int `mapstructure:"ping_interval_seconds"`
	// 0 表示 ping 仅作提示，不因缺少 pong 断开连接
	PongWaitSeconds    int   `mapstructure:"pong_wait_seconds"`
	MaxMessageSize     int64 `mapstructure:"max_message_size"`
	SendBufferSize     int   `mapstructure:"send_buffer_size"`
	AuthTimeoutSeconds int   `mapstructure:"auth_timeout_seconds"`

	// 每个用户的最大连接数，<=0 不限制
	MaxConnectionsPerUser int `mapstructure:"max_connections_per_user"`

	// 入站帧限流
	InboundRatePerSecond float64 `mapstructure:"inbound_rate_per_second"`
	InboundBurst         int     `mapstructure:"inbound_burst"`

	// 重试相关配置
	MessageRetryCount      int `mapstructure:"message_retry_count"`
	MessageRetryIntervalMs int `mapstructure:"message_retry_interval_ms"`
}

var GlobalConfig Config

func Init() error {
	return load("config")
}

// 测试用的配置文件
func InitTest() error {
	return load("config.test")
}

func load(name string) error {
	// 获取项目根目录
	_, b, _, _ := runtime.Caller(0)
	basepath := filepath.Dir(filepath.Dir(filepath.Dir(b)))

	v := viper.New()
	setDefaults(v)

	v.SetConfigName(name)
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(basepath, "config"))
	v.AddConfigPath("./config")

	// 环境变量覆盖，例如 MATCHCHAT_SERVER_ADDR
	v.SetEnvPrefix("MATCHCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("jwt.secret", "MATCHCHAT_JWT_SECRET", "JWT_SECRET"); err != nil {
		return fmt.Errorf("failed to bind env: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	GlobalConfig = cfg

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout_seconds", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.production", false)

	v.SetDefault("database.driver", "mysql")

	v.SetDefault("jwt.expiration", 7*24*time.Hour)

	v.SetDefault("websocket.path", "/ws")
	v.SetDefault("websocket.write_wait_seconds", 10)
	v.SetDefault("websocket.ping_interval_seconds", 30)
	v.SetDefault("websocket.pong_wait_seconds", 0)
	v.SetDefault("websocket.max_message_size", 16<<20)
	v.SetDefault("websocket.send_buffer_size", 256)
	v.SetDefault("websocket.auth_timeout_seconds", 5)
	v.SetDefault("websocket.max_connections_per_user", 16)
	v.SetDefault("websocket.inbound_rate_per_second", 20)
	v.SetDefault("websocket.inbound_burst", 40)
	v.SetDefault("websocket.message_retry_count", 3)
	v.SetDefault("websocket.message_retry_interval_ms", 100)
}
