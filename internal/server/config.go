package server

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Tyrowin/challengehub/internal/models"
	"github.com/Tyrowin/challengehub/internal/observability"
	"github.com/Tyrowin/challengehub/internal/store"
)

const (
	defaultPort              = ":8080"
	defaultMaxMessageSize    = 4096
	defaultRateLimitBurst    = 5
	defaultHeartbeatInterval = 30 * time.Second
	defaultRecentMessages    = 50
	defaultRecentActivity    = 10
	defaultSendBuffer        = 256
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int           `yaml:"burst"`
	RefillInterval time.Duration `yaml:"refill_interval"`
}

// ServerConfig holds the HTTP listener settings including security controls.
type ServerConfig struct {
	Port           string          `yaml:"port"`
	AllowedOrigins []string        `yaml:"allowed_origins"`
	MaxMessageSize int64           `yaml:"max_message_size"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
}

// HubConfig tunes the room hub.
type HubConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	RecentMessages    int           `yaml:"recent_messages"`
	RecentActivity    int           `yaml:"recent_activity"`
	SendBuffer        int           `yaml:"send_buffer"`
}

// StorageConfig selects the storage backend.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// AuthConfig configures session token checks. With no tokens every positive
// user id is trusted.
type AuthConfig struct {
	Tokens map[int64]string `yaml:"tokens"`
}

// ChallengeSeed declares a challenge to create at startup.
type ChallengeSeed struct {
	ID              int64                `yaml:"id"`
	Title           string               `yaml:"title"`
	Description     string               `yaml:"description"`
	Kind            models.ChallengeKind `yaml:"kind"`
	MaxParticipants int                  `yaml:"max_participants"`
	StartsAt        time.Time            `yaml:"starts_at"`
	EndsAt          time.Time            `yaml:"ends_at"`
}

// Challenge converts the seed into a model record.
func (s ChallengeSeed) Challenge() *models.Challenge {
	kind := s.Kind
	if kind == "" {
		kind = models.KindCollaborative
	}
	return &models.Challenge{
		ID:              s.ID,
		Title:           s.Title,
		Description:     s.Description,
		Kind:            kind,
		MaxParticipants: s.MaxParticipants,
		StartsAt:        s.StartsAt,
		EndsAt:          s.EndsAt,
	}
}

// Config is the complete service configuration.
type Config struct {
	Server     ServerConfig            `yaml:"server"`
	Hub        HubConfig               `yaml:"hub"`
	Storage    StorageConfig           `yaml:"storage"`
	Logging    observability.LogConfig `yaml:"logging"`
	Auth       AuthConfig              `yaml:"auth"`
	Challenges []ChallengeSeed         `yaml:"challenges"`
}

// DefaultConfig returns a Config populated with default values for all settings.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port: defaultPort,
			AllowedOrigins: []string{
				"http://localhost:8080",
			},
			MaxMessageSize: defaultMaxMessageSize,
			RateLimit: RateLimitConfig{
				Burst:          defaultRateLimitBurst,
				RefillInterval: time.Second,
			},
		},
		Hub: HubConfig{
			HeartbeatInterval: defaultHeartbeatInterval,
			RecentMessages:    defaultRecentMessages,
			RecentActivity:    defaultRecentActivity,
			SendBuffer:        defaultSendBuffer,
		},
		Storage: StorageConfig{Driver: store.DriverMemory},
		Logging: observability.LogConfig{Level: "info", Format: "json"},
	}
}

// LoadConfig builds the configuration from defaults, the YAML file at path
// (skipped when path is empty) and environment overrides, in that order.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv(os.Getenv)
	return cfg.sanitize(), nil
}

// applyEnv overrides fields from environment variables. Unparseable values
// keep the current setting.
func (c *Config) applyEnv(getenv func(string) string) {
	if port := getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if origins := getenv("ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = parseOrigins(origins)
	}
	if maxSize := getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		c.Server.MaxMessageSize = parseMaxMessageSize(maxSize, c.Server.MaxMessageSize)
	}
	if burst := getenv("RATE_LIMIT_BURST"); burst != "" {
		c.Server.RateLimit.Burst = parseIntValue(burst, c.Server.RateLimit.Burst)
	}
	if interval := getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		c.Server.RateLimit.RefillInterval = parseInterval(interval, c.Server.RateLimit.RefillInterval)
	}
	if interval := getenv("HEARTBEAT_INTERVAL"); interval != "" {
		c.Hub.HeartbeatInterval = parseInterval(interval, c.Hub.HeartbeatInterval)
	}
	if driver := getenv("STORAGE_DRIVER"); driver != "" {
		c.Storage.Driver = driver
	}
	if path := getenv("STORAGE_PATH"); path != "" {
		c.Storage.Path = path
	}
	if level := getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := getenv("LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}
}

// sanitize replaces missing or invalid values with defaults. Origins are
// normalized later by the origin policy.
func (c Config) sanitize() Config {
	if c.Server.Port == "" {
		c.Server.Port = defaultPort
	}
	if !strings.Contains(c.Server.Port, ":") {
		c.Server.Port = ":" + c.Server.Port
	}
	if c.Server.MaxMessageSize <= 0 {
		c.Server.MaxMessageSize = defaultMaxMessageSize
	}
	if c.Server.RateLimit.Burst <= 0 {
		c.Server.RateLimit.Burst = defaultRateLimitBurst
	}
	if c.Server.RateLimit.RefillInterval <= 0 {
		c.Server.RateLimit.RefillInterval = time.Second
	}
	c.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)

	if c.Hub.HeartbeatInterval <= 0 {
		c.Hub.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Hub.RecentMessages <= 0 {
		c.Hub.RecentMessages = defaultRecentMessages
	}
	if c.Hub.RecentActivity <= 0 {
		c.Hub.RecentActivity = defaultRecentActivity
	}
	if c.Hub.SendBuffer <= 0 {
		c.Hub.SendBuffer = defaultSendBuffer
	}

	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if c.Storage.Driver == "" {
		c.Storage.Driver = store.DriverMemory
	}
	return c
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseMaxMessageSize(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

// parseInterval accepts a Go duration ("500ms") or a whole number of seconds.
func parseInterval(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return defaultValue
}
