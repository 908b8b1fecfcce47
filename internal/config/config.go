package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath        = "config.toml"
	DefaultHTTPAddr          = ":8080"
	DefaultBackendBaseURL    = "https://api.coze.cn/"
	DefaultBackendTimeoutSec = 120
	DefaultErrorReply        = "我暂时遇到了一些问题，请您稍后重试~"
	DefaultImageCreatePrefix = "画"
	DefaultChannelType       = "wx"
	DefaultSessionTTLSec     = 3600
	DefaultMaxHistoryLen     = 10
	DefaultMaxMessages       = 5
	DefaultMaxTokens         = 1000
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Backend  BackendConfig  `toml:"backend"`
	Bot      BotConfig      `toml:"bot"`
	Session  SessionConfig  `toml:"session"`
	Telegram TelegramConfig `toml:"telegram"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

// BackendConfig points at the conversational-AI backend. BotID is required:
// without it no chat request can be addressed, so startup fails.
type BackendConfig struct {
	BaseURL        string `toml:"base_url" validate:"required,url"`
	APIKey         string `toml:"api_key"`
	BotID          string `toml:"bot_id" validate:"required"`
	TimeoutSeconds int    `toml:"timeout_seconds" validate:"gte=0"`
}

func (c BackendConfig) Timeout() time.Duration {
	secs := c.TimeoutSeconds
	if secs <= 0 {
		secs = DefaultBackendTimeoutSec
	}
	return time.Duration(secs) * time.Second
}

type BotConfig struct {
	ChannelType       string `toml:"channel_type"`
	SystemPrompt      string `toml:"system_prompt"`
	ErrorReply        string `toml:"error_reply"`
	ImageCreatePrefix string `toml:"image_create_prefix"`
	ImageRecognition  bool   `toml:"image_recognition"`
	RichReplies       bool   `toml:"rich_replies"`
}

type SessionConfig struct {
	TTLSeconds    int `toml:"ttl_seconds" validate:"gte=0"`
	MaxHistoryLen int `toml:"max_history_len" validate:"gte=1"`
	// MaxMessages is the user-turn count after which the conversation is
	// reset. Zero or negative disables the reset.
	MaxMessages int `toml:"max_messages"`
	MaxTokens   int `toml:"max_tokens" validate:"gte=0"`
}

func (c SessionConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

type TelegramConfig struct {
	BotToken      string `toml:"bot_token"`
	DefaultChatID int64  `toml:"default_chat_id"`
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Backend: BackendConfig{
			BaseURL:        DefaultBackendBaseURL,
			TimeoutSeconds: DefaultBackendTimeoutSec,
		},
		Bot: BotConfig{
			ChannelType:       DefaultChannelType,
			ErrorReply:        DefaultErrorReply,
			ImageCreatePrefix: DefaultImageCreatePrefix,
		},
		Session: SessionConfig{
			TTLSeconds:    DefaultSessionTTLSec,
			MaxHistoryLen: DefaultMaxHistoryLen,
			MaxMessages:   DefaultMaxMessages,
			MaxTokens:     DefaultMaxTokens,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks required fields. Called once at startup; a failure here
// is fatal.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
