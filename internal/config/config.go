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
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Topic struct {
		TTL string `yaml:"ttl"`
	} `yaml:"topic"`
	Competition struct {
		QuestionSeconds   int      `yaml:"question_seconds"`
		PracticeQuestions int      `yaml:"practice_questions"`
		Sections          []string `yaml:"sections"`
	} `yaml:"competition"`
	PowerUps struct {
		FiftyFifty   int `yaml:"fifty_fifty"`
		Hint         int `yaml:"hint"`
		StreakShield int `yaml:"streak_shield"`
	} `yaml:"power_ups"`
	LLM struct {
		APIKey      string `yaml:"api_key"`
		Model       string `yaml:"model"`
		MaxAttempts int    `yaml:"max_attempts"`
		Timeout     string `yaml:"timeout"`
	} `yaml:"llm"`
	Tutor struct {
		RequestsPerMinute int `yaml:"requests_per_minute"`
	} `yaml:"tutor"`
	Seed struct {
		File string `yaml:"file"`
	} `yaml:"seed"`
}

// DefaultSections are the class sections competitions run for.
var DefaultSections = []string{"8A", "8B", "8C", "8D", "8E", "8F"}

// Load reads YAML config from path, then applies env overrides and defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// Default is the configuration used when no file is present.
func Default() Config {
	cfg := Config{}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyEnv() {
	if v := os.Getenv("AUTH_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Postgres.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Competition.QuestionSeconds <= 0 {
		c.Competition.QuestionSeconds = 15
	}
	if c.Competition.PracticeQuestions <= 0 {
		c.Competition.PracticeQuestions = 10
	}
	if len(c.Competition.Sections) == 0 {
		c.Competition.Sections = append([]string(nil), DefaultSections...)
	}
	if c.PowerUps.FiftyFifty <= 0 {
		c.PowerUps.FiftyFifty = 30
	}
	if c.PowerUps.Hint <= 0 {
		c.PowerUps.Hint = 20
	}
	if c.PowerUps.StreakShield <= 0 {
		c.PowerUps.StreakShield = 100
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gemini-2.0-flash"
	}
	if c.LLM.MaxAttempts <= 0 {
		c.LLM.MaxAttempts = 3
	}
	if c.Tutor.RequestsPerMinute <= 0 {
		c.Tutor.RequestsPerMinute = 20
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
