package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port        string   `yaml:"port"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Game Game `yaml:"game"`
}

// Game carries the session tuning knobs shared with the bot collaborator.
type Game struct {
	RoundsPerGame     int    `yaml:"rounds_per_game"`
	QuestionsPerRound int    `yaml:"questions_per_round"`
	QuestionTimeLimit string `yaml:"question_time_limit"`
	TieBreakTimeLimit string `yaml:"tie_break_time_limit"`
	QuestionPause     string `yaml:"question_pause"`
	BotMinDelay       string `yaml:"bot_min_delay"`
	BotMaxDelay       string `yaml:"bot_max_delay"`
	BotAccuracy       struct {
		Novice  float64 `yaml:"novice"`
		Amateur float64 `yaml:"amateur"`
		Expert  float64 `yaml:"expert"`
	} `yaml:"bot_accuracy"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Postgres.URL = url
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	return cfg, nil
}

// Duration parses a duration string or returns the fallback if empty or invalid.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// IntOr returns v unless it is zero.
func IntOr(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}

// FloatOr returns v unless it is zero.
func FloatOr(v, fallback float64) float64 {
	if v == 0 {
		return fallback
	}
	return v
}
