package config

import (
	"log"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig describes the bot configuration.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"Asia/Jerusalem"`
	Port   int    `envconfig:"PORT" default:"8080"`

	Channels struct {
		Admins  string `envconfig:"ADMIN_CHANNEL_JID"`
		Players string `envconfig:"PLAYERS_CHANNEL_JID"`
		Test    string `envconfig:"TEST_CHANNEL_JID"`
	} `envconfig:""`

	Bridge struct {
		BaseURL string `envconfig:"BRIDGE_BASE_URL"`
		Token   string `envconfig:"BRIDGE_TOKEN"`
		BotJID  string `envconfig:"BRIDGE_BOT_JID"`
	} `envconfig:""`

	LLM struct {
		APIKey     string `envconfig:"LLM_API_KEY"`
		BaseURL    string `envconfig:"LLM_BASE_URL"`
		Model      string `envconfig:"LLM_MODEL" default:"gpt-4.1-mini"`
		TimeoutSec int    `envconfig:"LLM_TIMEOUT_SEC" default:"30"`
	} `envconfig:""`

	Storage struct {
		Backend    string `envconfig:"STORAGE_BACKEND" default:"postgres"` // postgres | sqlite
		PGDSN      string `envconfig:"PG_DSN"`
		SQLitePath string `envconfig:"SQLITE_PATH" default:"./data/registry.db"`
	} `envconfig:""`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	Queue struct {
		Backend string `envconfig:"QUEUE_BACKEND" default:"redis"` // redis | rabbitmq
		Key     string `envconfig:"FLUSH_QUEUE_KEY" default:"flush_jobs"`
		AMQPURL string `envconfig:"AMQP_URL"`
	} `envconfig:""`

	Admin struct {
		SeedJID  string `envconfig:"INITIAL_ADMIN_JID"`
		SeedName string `envconfig:"INITIAL_ADMIN_NAME"`
	} `envconfig:""`

	Schedule struct {
		BurstDelayMin        int `envconfig:"BURST_DELAY_MIN" default:"3"`
		CadenceMin           int `envconfig:"CADENCE_MIN" default:"60"`
		WarnBeforeWarmupMin  int `envconfig:"WARN_BEFORE_WARMUP_MIN" default:"20"`
		CloseBeforeWarmupMin int `envconfig:"CLOSE_BEFORE_WARMUP_MIN" default:"15"`
		DebounceSec          int `envconfig:"DEBOUNCE_SEC" default:"90"`
	} `envconfig:""`
}

// Load reads the config from the environment.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}
