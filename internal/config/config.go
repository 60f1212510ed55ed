package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string `mapstructure:"mode"`
	Port       int    `mapstructure:"port"`
	StaticPath string `mapstructure:"static_path"`
	Secret     string `mapstructure:"secret"`
	LogLevel   string `mapstructure:"log_level"`

	WS    WSConfig    `mapstructure:"ws"`
	Rate  RateConfig  `mapstructure:"rate"`
	Rooms RoomsConfig `mapstructure:"rooms"`
	Feed  FeedConfig  `mapstructure:"feed"`
}

type WSConfig struct {
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`
	// Backpressure is one of kick, drop, mark_slow, none.
	Backpressure string `mapstructure:"backpressure"`
}

type RateConfig struct {
	Messages int           `mapstructure:"messages"`
	Interval time.Duration `mapstructure:"interval"`
}

type RoomsConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	SweepEnabled  bool          `mapstructure:"sweep_enabled"`
	AdminPassword string        `mapstructure:"admin_password"`
}

type FeedConfig struct {
	RedisURL      string `mapstructure:"redis_url"`
	ChannelPrefix string `mapstructure:"channel_prefix"`
	Retention     int64  `mapstructure:"retention"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("secret", "change-me")
	v.SetDefault("log_level", "info")

	v.SetDefault("ws.read_limit", 32768)
	v.SetDefault("ws.ping_period", "54s")
	v.SetDefault("ws.pong_wait", "60s")
	v.SetDefault("ws.write_wait", "10s")
	v.SetDefault("ws.send_buffer", 64)
	v.SetDefault("ws.backpressure", "kick")

	v.SetDefault("rate.messages", 20)
	v.SetDefault("rate.interval", "10s")

	v.SetDefault("rooms.ttl", "1h")
	v.SetDefault("rooms.idle_timeout", "30m")
	v.SetDefault("rooms.sweep_interval", "30s")
	v.SetDefault("rooms.sweep_enabled", true)
	v.SetDefault("rooms.admin_password", "")

	v.SetDefault("feed.redis_url", "")
	v.SetDefault("feed.channel_prefix", "chatter")
	v.SetDefault("feed.retention", 500)
}

// Load reads config/config.<CONFIG_ENV>.yaml (dev by default). A .env file,
// when present, is loaded into the environment first; CHATTER_* variables
// override file values.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Info().Str("module", "config").Msg("loaded .env")
	}

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	setDefaults(v)

	v.SetEnvPrefix("CHATTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Str("static", cfg.StaticPath).Bool("feed", cfg.Feed.RedisURL != "").Msg("config ready")
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("invalid port %d", c.Port)
	case c.WS.PingPeriod >= c.WS.PongWait:
		return fmt.Errorf("ws.ping_period (%s) must be shorter than ws.pong_wait (%s)", c.WS.PingPeriod, c.WS.PongWait)
	case c.WS.SendBuffer <= 0:
		return fmt.Errorf("invalid ws.send_buffer %d", c.WS.SendBuffer)
	}
	return nil
}

func (c *Config) Debug() bool { return c.Mode == "debug" }
