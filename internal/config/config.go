package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 客户端配置
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Transport TransportConfig `yaml:"transport"`
	Auth      AuthConfig      `yaml:"auth"`
	Game      GameConfig      `yaml:"game"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig 后端地址配置
type ServerConfig struct {
	BaseURL string `yaml:"base_url"` // REST 基地址
	WSURL   string `yaml:"ws_url"`   // 流式通道地址
}

// TransportConfig 传输层配置
type TransportConfig struct {
	MaxRetries           int `yaml:"max_retries"`            // 请求最大重试次数
	RetryDelay           int `yaml:"retry_delay"`            // 重试间隔（秒）
	HeartbeatInterval    int `yaml:"heartbeat_interval"`     // 心跳间隔（秒）
	FlushInterval        int `yaml:"flush_interval"`         // 出站队列批量发送间隔（秒）
	FlushBatchSize       int `yaml:"flush_batch_size"`       // 单批最大消息数
	QueueCapacity        int `yaml:"queue_capacity"`         // 出站队列容量
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts"` // 最大重连次数
	ReconnectDelay       int `yaml:"reconnect_delay"`        // 重连间隔（秒）
}

// AuthConfig 认证配置
type AuthConfig struct {
	RefreshThreshold int `yaml:"refresh_threshold"` // 刷新阈值（分钟）
	TokenValidity    int `yaml:"token_validity"`    // 刷新后令牌有效期（天）
}

// GameConfig 对局配置
type GameConfig struct {
	QuestionTime int `yaml:"question_time"` // 题目未声明时限时的兜底（秒）
}

// LogConfig 日志配置
type LogConfig struct {
	Dir string `yaml:"dir"` // 日志目录，留空使用 ~/.conquiz
}

// RetryDelayDuration 返回请求重试间隔
func (c *TransportConfig) RetryDelayDuration() time.Duration {
	return time.Duration(c.RetryDelay) * time.Second
}

// HeartbeatDuration 返回心跳间隔
func (c *TransportConfig) HeartbeatDuration() time.Duration {
	return time.Duration(c.HeartbeatInterval) * time.Second
}

// FlushDuration 返回批量发送间隔
func (c *TransportConfig) FlushDuration() time.Duration {
	return time.Duration(c.FlushInterval) * time.Second
}

// ReconnectDelayDuration 返回重连间隔
func (c *TransportConfig) ReconnectDelayDuration() time.Duration {
	return time.Duration(c.ReconnectDelay) * time.Second
}

// RefreshThresholdDuration 返回刷新阈值
func (c *AuthConfig) RefreshThresholdDuration() time.Duration {
	return time.Duration(c.RefreshThreshold) * time.Minute
}

// TokenValidityDuration 返回令牌有效期
func (c *AuthConfig) TokenValidityDuration() time.Duration {
	return time.Duration(c.TokenValidity) * 24 * time.Hour
}

// QuestionTimeDuration 返回兜底答题时限
func (c *GameConfig) QuestionTimeDuration() time.Duration {
	return time.Duration(c.QuestionTime) * time.Second
}

// Load 加载配置文件
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	applyEnv(&cfg)
	return &cfg, nil
}

// Default 返回默认配置
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	applyEnv(cfg)
	return cfg
}

// applyDefaults 填充零值字段
func applyDefaults(cfg *Config) {
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = "http://localhost:8080"
	}
	if cfg.Server.WSURL == "" {
		cfg.Server.WSURL = "ws://localhost:8080/stream"
	}
	if cfg.Transport.MaxRetries == 0 {
		cfg.Transport.MaxRetries = 3
	}
	if cfg.Transport.RetryDelay == 0 {
		cfg.Transport.RetryDelay = 1
	}
	if cfg.Transport.HeartbeatInterval == 0 {
		cfg.Transport.HeartbeatInterval = 5
	}
	if cfg.Transport.FlushInterval == 0 {
		cfg.Transport.FlushInterval = 1
	}
	if cfg.Transport.FlushBatchSize == 0 {
		cfg.Transport.FlushBatchSize = 10
	}
	if cfg.Transport.QueueCapacity == 0 {
		cfg.Transport.QueueCapacity = 256
	}
	if cfg.Transport.MaxReconnectAttempts == 0 {
		cfg.Transport.MaxReconnectAttempts = 5
	}
	if cfg.Transport.ReconnectDelay == 0 {
		cfg.Transport.ReconnectDelay = 2
	}
	if cfg.Auth.RefreshThreshold == 0 {
		cfg.Auth.RefreshThreshold = 30
	}
	if cfg.Auth.TokenValidity == 0 {
		cfg.Auth.TokenValidity = 7
	}
	if cfg.Game.QuestionTime == 0 {
		cfg.Game.QuestionTime = 15
	}
}

// applyEnv 环境变量覆盖（便于本地调试与容器部署）
func applyEnv(cfg *Config) {
	if v := os.Getenv("CONQUIZ_BASE_URL"); v != "" {
		cfg.Server.BaseURL = v
	}
	if v := os.Getenv("CONQUIZ_WS_URL"); v != "" {
		cfg.Server.WSURL = v
	}
	if v := os.Getenv("CONQUIZ_LOG_DIR"); v != "" {
		cfg.Log.Dir = v
	}
}
