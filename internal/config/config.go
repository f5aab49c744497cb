package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode          string        `mapstructure:"mode"`
	ControlAddr   string        `mapstructure:"control_addr"`
	RelayAddr     string        `mapstructure:"relay_addr"`
	HTTPAddr      string        `mapstructure:"http_addr"`
	MaxMembers    int           `mapstructure:"max_members"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	ReadLimit     int           `mapstructure:"read_limit"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("control_addr", ":9002")
	v.SetDefault("relay_addr", ":9003")
	v.SetDefault("http_addr", ":9004")
	v.SetDefault("max_members", 1000)
	v.SetDefault("idle_timeout", "300s")
	v.SetDefault("sweep_interval", "5s")
	v.SetDefault("read_limit", 4096)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
