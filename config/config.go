package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Telegram configuration
	TelegramBotToken string
	ChannelUsername  string // channel the user must be subscribed to, e.g. "@valera_channel"
	ProviderToken    string // payment provider token; empty for Telegram Stars
	OperatorChatID   int64  // chat that receives error notifications, 0 disables them

	// Completion model configuration
	GeminiAPIKey      string
	CompletionModel   string
	CompletionTimeout time.Duration

	// Database configuration
	DatabaseURL string

	// State store configuration; empty falls back to the in-process store
	RedisURL string

	// Token economy settings
	StartBonus      int64
	RefBonus        int64
	GenerateCost    int64
	CooldownSeconds int64

	// Optional allow-list; empty admits everyone
	AllowedUserIDs []int64

	// Environment
	Environment string // "development" or "production"
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the global configuration instance
func Get() *Config {
	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// Cooldown returns the gate cooldown window as a duration
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{
		// Telegram
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		ChannelUsername:  os.Getenv("CHANNEL_USERNAME"),
		ProviderToken:    os.Getenv("PROVIDER_TOKEN"),

		// Completion model
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		CompletionModel:   os.Getenv("COMPLETION_MODEL"),
		CompletionTimeout: 60 * time.Second,

		// Database
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		// Token economy defaults
		StartBonus:      10,
		RefBonus:        10,
		GenerateCost:    1,
		CooldownSeconds: 5,

		// Environment
		Environment: os.Getenv("ENVIRONMENT"),
	}

	if config.CompletionModel == "" {
		config.CompletionModel = "gemini-2.5-flash"
	}

	// Override defaults if environment variables are set
	if bonus := os.Getenv("START_BONUS"); bonus != "" {
		if parsed, err := strconv.ParseInt(bonus, 10, 64); err == nil {
			config.StartBonus = parsed
		}
	}
	if bonus := os.Getenv("REF_BONUS"); bonus != "" {
		if parsed, err := strconv.ParseInt(bonus, 10, 64); err == nil {
			config.RefBonus = parsed
		}
	}
	if cost := os.Getenv("GENERATE_COST"); cost != "" {
		if parsed, err := strconv.ParseInt(cost, 10, 64); err == nil {
			config.GenerateCost = parsed
		}
	}
	if cooldown := os.Getenv("COOLDOWN_SECONDS"); cooldown != "" {
		if parsed, err := strconv.ParseInt(cooldown, 10, 64); err == nil {
			config.CooldownSeconds = parsed
		}
	}
	if timeout := os.Getenv("COMPLETION_TIMEOUT_SECONDS"); timeout != "" {
		if parsed, err := strconv.ParseInt(timeout, 10, 64); err == nil {
			config.CompletionTimeout = time.Duration(parsed) * time.Second
		}
	}
	if chatID := os.Getenv("OPERATOR_CHAT_ID"); chatID != "" {
		if parsed, err := strconv.ParseInt(chatID, 10, 64); err == nil {
			config.OperatorChatID = parsed
		}
	}

	// Parse the allowed Telegram user IDs
	if allowedIDs := os.Getenv("ALLOWED_USER_IDS"); allowedIDs != "" {
		idStrings := strings.Split(allowedIDs, ",")
		for _, idStr := range idStrings {
			idStr = strings.TrimSpace(idStr)
			if idStr != "" {
				if id, err := strconv.ParseInt(idStr, 10, 64); err == nil {
					config.AllowedUserIDs = append(config.AllowedUserIDs, id)
				}
			}
		}
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.TelegramBotToken == "" {
			return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
		}
		if config.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required")
		}
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	}

	return config, nil
}
