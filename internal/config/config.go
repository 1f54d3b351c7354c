package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	ListenAddr string `yaml:"listen_addr"`

	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`

	// AdminSecret signs administrative tokens. Validated at use time, not
	// here: a missing or short secret must surface as a 500, never as an
	// authentication failure.
	AdminSecret string `yaml:"admin_secret"`

	AllowedOrigins []string `yaml:"allowed_origins"`

	RateLimitIPPerMin     int `yaml:"rate_limit_ip_per_min"`
	RateLimitFPPerMin     int `yaml:"rate_limit_fp_per_min"`
	RateLimitGlobalPerMin int `yaml:"rate_limit_global_per_min"`

	ValidatorWorkers int `yaml:"validator_workers"`

	BehaviorCooldownSec    int  `yaml:"behavior_cooldown_sec"`
	BehaviorBlockThreshold int  `yaml:"behavior_block_threshold"`
	FlagSuddenImprovement  bool `yaml:"flag_sudden_improvement"`

	CacheTTLSec     int `yaml:"cache_ttl_sec"`
	LeaderboardSize int `yaml:"leaderboard_size"`
}

// Load reads the optional YAML file named by BOARD_CONFIG, then applies
// environment overrides on top of the defaults.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:             ":8080",
		RateLimitIPPerMin:      20,
		RateLimitFPPerMin:      15,
		RateLimitGlobalPerMin:  1000,
		ValidatorWorkers:       8,
		BehaviorCooldownSec:    300,
		BehaviorBlockThreshold: 3,
		FlagSuddenImprovement:  false,
		CacheTTLSec:            60,
		LeaderboardSize:        20,
	}

	if path := strings.TrimSpace(os.Getenv("BOARD_CONFIG")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("ADMIN_SECRET")); v != "" {
		cfg.AdminSecret = v
	}

	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		cfg.AllowedOrigins = nil
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, s)
			}
		}
	}

	intEnv(&cfg.RateLimitIPPerMin, "RATE_LIMIT_IP_PER_MIN")
	intEnv(&cfg.RateLimitFPPerMin, "RATE_LIMIT_FP_PER_MIN")
	intEnv(&cfg.RateLimitGlobalPerMin, "RATE_LIMIT_GLOBAL_PER_MIN")
	intEnv(&cfg.ValidatorWorkers, "VALIDATOR_WORKERS")
	intEnv(&cfg.BehaviorCooldownSec, "BEHAVIOR_COOLDOWN_SEC")
	intEnv(&cfg.BehaviorBlockThreshold, "BEHAVIOR_BLOCK_THRESHOLD")
	intEnv(&cfg.CacheTTLSec, "CACHE_TTL_SEC")
	intEnv(&cfg.LeaderboardSize, "LEADERBOARD_SIZE")

	if v := strings.TrimSpace(os.Getenv("FLAG_SUDDEN_IMPROVEMENT")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.FlagSuddenImprovement = b
		}
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}

func intEnv(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}
