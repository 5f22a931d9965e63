package main

import (
	"fmt"
	"strings"

	"helpboard_miniapp/internal/repository"
	"helpboard_miniapp/internal/service"

	"github.com/spf13/viper"
)

const (
	configPath   = "./"
	configName   = "config"
	configFormat = "yaml"
)

type Config struct {
	Database repository.Config `yaml:"database"`
	Server   ServerConfig      `yaml:"server"`

	TelegramAuth TelegramAuthConfig `yaml:"telegramAuth"`
	Notifier     NotifierConfig     `yaml:"notifier"`

	Scoring     service.ScoringConfig     `yaml:"scoring"`
	Leaderboard service.LeaderboardConfig `yaml:"leaderboard"`

	LogLevel string `yaml:"logLevel"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

type TelegramAuthConfig struct {
	TelegramBotToken string `yaml:"telegramBotToken"`
	DebugMode        bool   `yaml:"debugMode"`
}

type NotifierConfig struct {
	TelegramEnabled bool `yaml:"telegramEnabled"`
	BotDebug        bool `yaml:"botDebug"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName(configName)
	viper.AddConfigPath(configPath)
	viper.SetConfigType(configFormat)

	viper.AutomaticEnv()
	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Score tables and window policy fall back to compiled-in defaults so a
	// minimal config file still yields a working engine.
	if cfg.Scoring.DefaultBasePoints == 0 {
		cfg.Scoring = service.DefaultScoringConfig()
	}
	if cfg.Leaderboard.MaxLimit == 0 {
		aligned := cfg.Leaderboard.CalendarAligned
		cfg.Leaderboard = service.DefaultLeaderboardConfig()
		cfg.Leaderboard.CalendarAligned = aligned
	}

	return &cfg, nil
}
