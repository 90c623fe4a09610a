package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	TelegramToken    string   `yaml:"telegram_token"`
	AnthropicAPIKey  string   `yaml:"anthropic_api_key"`
	NewsAPIKey       string   `yaml:"news_api_key"`
	ChatID           int64    `yaml:"chat_id"`
	ClaudeModel      string   `yaml:"claude_model"`
	Language         string   `yaml:"language"`
	UTCOffset        string   `yaml:"utc_offset"`
	DigestTimes      []string `yaml:"digest_times"`
	ArticleCount     int      `yaml:"article_count"`
	FetchTimeoutSecs int      `yaml:"fetch_timeout_secs"`
	LogLevel         string   `yaml:"log_level"`
}

// timeRegex validates HH:MM delivery times with proper ranges.
var timeRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// offsetRegex validates fixed UTC offsets like "+05:30" or "-03:00".
var offsetRegex = regexp.MustCompile(`^([+-])([01][0-9]|2[0-3]):([0-5][0-9])$`)

// Load reads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	applyDefaults(cfg)
	applyEnvironmentOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// GetConfigPath returns the config file path from environment or default.
func GetConfigPath() string {
	if path := os.Getenv("DIGEST_BOT_CONFIG"); path != "" {
		return path
	}
	return "./config.yaml"
}

func applyDefaults(cfg *Config) {
	if cfg.ClaudeModel == "" {
		cfg.ClaudeModel = "claude-sonnet-4-20250514"
	}
	if cfg.UTCOffset == "" {
		cfg.UTCOffset = "+05:30"
	}
	if len(cfg.DigestTimes) == 0 {
		cfg.DigestTimes = []string{"07:00"}
	}
	if cfg.ArticleCount == 0 {
		cfg.ArticleCount = 5
	}
	if cfg.FetchTimeoutSecs == 0 {
		cfg.FetchTimeoutSecs = 20
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

func applyEnvironmentOverrides(cfg *Config) {
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		cfg.TelegramToken = token
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		cfg.AnthropicAPIKey = key
	}
	if key := os.Getenv("NEWS_API_KEY"); key != "" {
		cfg.NewsAPIKey = key
	}
}

func validate(cfg *Config) error {
	if cfg.TelegramToken == "" {
		return fmt.Errorf("telegram_token is required")
	}
	if cfg.AnthropicAPIKey == "" {
		return fmt.Errorf("anthropic_api_key is required")
	}
	if len(cfg.DigestTimes) > 2 {
		return fmt.Errorf("at most 2 digest_times allowed, got %d", len(cfg.DigestTimes))
	}
	for _, t := range cfg.DigestTimes {
		if !timeRegex.MatchString(t) {
			return fmt.Errorf("digest time must be in HH:MM format (00:00-23:59), got %q", t)
		}
	}
	if cfg.ArticleCount < 1 || cfg.ArticleCount > 10 {
		return fmt.Errorf("article_count must be between 1 and 10, got %d", cfg.ArticleCount)
	}
	if _, err := ParseUTCOffset(cfg.UTCOffset); err != nil {
		return err
	}
	return nil
}

// ParseUTCOffset converts a fixed offset string like "+05:30" into minutes
// east of UTC.
func ParseUTCOffset(s string) (int, error) {
	matches := offsetRegex.FindStringSubmatch(strings.TrimSpace(s))
	if len(matches) != 4 {
		return 0, fmt.Errorf("utc_offset must look like \"+05:30\", got %q", s)
	}
	hours, _ := strconv.Atoi(matches[2])
	minutes, _ := strconv.Atoi(matches[3])
	total := hours*60 + minutes
	if matches[1] == "-" {
		total = -total
	}
	return total, nil
}
