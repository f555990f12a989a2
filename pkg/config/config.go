package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // greeting.time_zone must load on images without zoneinfo

	"github.com/ilyakaznacheev/cleanenv"
)

// Memory store backends.
const (
	MemoryBackendRedis  = "redis"
	MemoryBackendBadger = "badger"
)

// DefaultConfigPath is read when present; environment variables always win.
const DefaultConfigPath = "config.yaml"

// Config holds all configuration for voice-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (API keys, passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"` // Set at load time, not from config

	Memory      MemoryConfig      `yaml:"memory"`
	CRM         CRMConfig         `yaml:"crm"`
	Lookup      LookupConfig      `yaml:"lookup"`
	Greeting    GreetingConfig    `yaml:"greeting"`
	Situational SituationalConfig `yaml:"situational"`
	Audit       AuditConfig       `yaml:"audit"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	MCP         MCPConfig         `yaml:"mcp"`
}

// MemoryConfig selects and configures the call-history store.
type MemoryConfig struct {
	Backend   string        `yaml:"backend" env:"MEMORY_BACKEND" env-default:"redis"`
	KeyPrefix string        `yaml:"key_prefix" env:"MEMORY_KEY_PREFIX" env-default:"customer_memory:"`
	Retention time.Duration `yaml:"retention" env:"MEMORY_RETENTION" env-default:"720h"`

	// MaxEntries caps how many calls are kept per phone.
	MaxEntries int `yaml:"max_entries" env:"MEMORY_MAX_ENTRIES" env-default:"50"`

	Redis  RedisConfig  `yaml:"redis"`
	Badger BadgerConfig `yaml:"badger"`
}

// RedisConfig holds Redis connection settings for the memory store.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// Addr returns host:port for the Redis client.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BadgerConfig holds settings for the embedded memory store.
type BadgerConfig struct {
	// Path is the data directory. Empty runs fully in memory.
	Path string `yaml:"path" env:"BADGER_PATH" env-default:"./data/memory"`
}

// CRMConfig holds dispatch CRM connection settings.
type CRMConfig struct {
	BaseURL string `yaml:"base_url" env:"CRM_BASE_URL" env-default:"http://localhost:9090/api/v1"`
	APIKey  string `yaml:"-" env:"CRM_API_KEY"` // Secret - not in YAML
	// AttemptTimeout bounds each phone-format probe.
	AttemptTimeout time.Duration `yaml:"attempt_timeout" env:"CRM_ATTEMPT_TIMEOUT" env-default:"1200ms"`
	// MaxRetries applies to transient failures of idempotent reads.
	MaxRetries int `yaml:"max_retries" env:"CRM_MAX_RETRIES" env-default:"1"`
}

// LookupConfig tunes the customer context lookup.
type LookupConfig struct {
	MemoryTimeout   time.Duration `yaml:"memory_timeout" env:"LOOKUP_MEMORY_TIMEOUT" env-default:"2s"`
	CRMTimeout      time.Duration `yaml:"crm_timeout" env:"LOOKUP_CRM_TIMEOUT" env-default:"6s"`
	CreateTimeout   time.Duration `yaml:"create_timeout" env:"LOOKUP_CREATE_TIMEOUT" env-default:"3s"`
	RecorderTimeout time.Duration `yaml:"recorder_timeout" env:"LOOKUP_RECORDER_TIMEOUT" env-default:"2s"`
	// PreferenceWindow is how many recent calls feed preference aggregation.
	PreferenceWindow int `yaml:"preference_window" env:"LOOKUP_PREFERENCE_WINDOW" env-default:"5"`
	// HistoryLimit is how many calls feed pickup pattern detection.
	HistoryLimit int `yaml:"history_limit" env:"LOOKUP_HISTORY_LIMIT" env-default:"50"`
	// PatternThreshold is the minimum uses before a pickup address is inferred.
	PatternThreshold int `yaml:"pattern_threshold" env:"LOOKUP_PATTERN_THRESHOLD" env-default:"2"`
}

// GreetingConfig tunes scenario selection and template rendering.
type GreetingConfig struct {
	SupportedLanguages  []string      `yaml:"supported_languages" env:"GREETING_SUPPORTED_LANGUAGES" env-default:"english,spanish,french"`
	TemplatesPath       string        `yaml:"templates_path" env:"GREETING_TEMPLATES_PATH" env-default:""`
	ActiveTripLookahead time.Duration `yaml:"active_trip_lookahead" env:"GREETING_ACTIVE_TRIP_LOOKAHEAD" env-default:"2h"`
	ActiveTripLookback  time.Duration `yaml:"active_trip_lookback" env:"GREETING_ACTIVE_TRIP_LOOKBACK" env-default:"30m"`
	CallbackWindow      time.Duration `yaml:"callback_window" env:"GREETING_CALLBACK_WINDOW" env-default:"2h"`
	DroppedCallWindow   time.Duration `yaml:"dropped_call_window" env:"GREETING_DROPPED_CALL_WINDOW" env-default:"1h"`

	// TimeZone is the IANA zone clock times are spoken in.
	TimeZone string `yaml:"time_zone" env:"GREETING_TIME_ZONE" env-default:"America/Denver"`
}

// SituationalConfig holds keyword sets for destination hints. They are data:
// an empty list disables the hint.
type SituationalConfig struct {
	AirportKeywords []string `yaml:"airport_keywords" env:"SITUATIONAL_AIRPORT_KEYWORDS" env-default:"airport,terminal,departures,arrivals,DIA,DEN"`
	SkiKeywords     []string `yaml:"ski_keywords" env:"SITUATIONAL_SKI_KEYWORDS" env-default:"ski,vail,breckenridge,keystone,aspen,copper mountain,winter park,beaver creek,arapahoe basin,loveland"`
	MedicalKeywords []string `yaml:"medical_keywords" env:"SITUATIONAL_MEDICAL_KEYWORDS" env-default:"hospital,clinic,medical,urgent care,emergency room,health center,dialysis"`
}

// AuditConfig holds PostgreSQL settings for the greeting audit trail.
type AuditConfig struct {
	Enabled        bool   `yaml:"enabled" env:"AUDIT_ENABLED" env-default:"false"`
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"voice"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"voice_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"AUDIT_MIGRATIONS_PATH" env-default:"./migrations"`
}

// KafkaConfig holds settings for greeting decision events.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled" env:"KAFKA_ENABLED" env-default:"false"`
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"greeting.decided"`
}

// MCPConfig controls the MCP tool endpoint.
type MCPConfig struct {
	Enabled bool `yaml:"enabled" env:"MCP_ENABLED" env-default:"true"`
	// LogPayloads logs JSON-RPC request bodies at debug level.
	LogPayloads bool `yaml:"log_payloads" env:"MCP_LOG_PAYLOADS" env-default:"false"`
}

// Load reads configuration from config.yaml (when present) with environment
// variable overrides. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	return LoadFrom(DefaultConfigPath, version)
}

// LoadFrom is Load with an explicit config file path.
func LoadFrom(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Auto-derive BaseURL from Port if not explicitly set
	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

// normalize trims list entries and lowercases language names.
func (c *Config) normalize() {
	c.Memory.Backend = strings.ToLower(strings.TrimSpace(c.Memory.Backend))
	c.Greeting.SupportedLanguages = cleanList(c.Greeting.SupportedLanguages, true)
	c.Situational.AirportKeywords = cleanList(c.Situational.AirportKeywords, false)
	c.Situational.SkiKeywords = cleanList(c.Situational.SkiKeywords, false)
	c.Situational.MedicalKeywords = cleanList(c.Situational.MedicalKeywords, false)
	c.Kafka.Brokers = cleanList(c.Kafka.Brokers, false)
}

// Validate checks values that would otherwise fail deep inside a lookup.
func (c *Config) Validate() error {
	switch c.Memory.Backend {
	case MemoryBackendRedis, MemoryBackendBadger:
	default:
		return fmt.Errorf("memory.backend must be %q or %q, got %q", MemoryBackendRedis, MemoryBackendBadger, c.Memory.Backend)
	}
	if c.Memory.MaxEntries < 1 {
		return fmt.Errorf("memory.max_entries must be positive")
	}

	timeouts := map[string]time.Duration{
		"lookup.memory_timeout":   c.Lookup.MemoryTimeout,
		"lookup.crm_timeout":      c.Lookup.CRMTimeout,
		"lookup.create_timeout":   c.Lookup.CreateTimeout,
		"lookup.recorder_timeout": c.Lookup.RecorderTimeout,
		"crm.attempt_timeout":     c.CRM.AttemptTimeout,
	}
	for name, d := range timeouts {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if c.Lookup.PreferenceWindow < 1 {
		return fmt.Errorf("lookup.preference_window must be positive")
	}
	if c.Lookup.HistoryLimit < c.Lookup.PreferenceWindow {
		return fmt.Errorf("lookup.history_limit must be at least lookup.preference_window")
	}
	if c.Lookup.PatternThreshold < 1 {
		return fmt.Errorf("lookup.pattern_threshold must be positive")
	}

	hasEnglish := false
	for _, lang := range c.Greeting.SupportedLanguages {
		if lang == "english" {
			hasEnglish = true
		}
	}
	if !hasEnglish {
		return fmt.Errorf("greeting.supported_languages must include english")
	}

	if _, err := time.LoadLocation(c.Greeting.TimeZone); err != nil {
		return fmt.Errorf("greeting.time_zone: %w", err)
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}

	return nil
}

// ConnectionString returns a PostgreSQL connection URL for the audit database.
func (c *AuditConfig) ConnectionString() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

func cleanList(in []string, lower bool) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if lower {
			s = strings.ToLower(s)
		}
		out = append(out, s)
	}
	return out
}
