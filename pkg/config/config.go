package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Scheduler     SchedulerConfig
	Notifications NotificationConfig
	Cache         CacheConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// TimeSlotConfig is one numbered entry of the lesson-period catalog.
type TimeSlotConfig struct {
	Number int
	Start  string
	End    string
}

// SchedulerConfig tunes the session generator and the period catalog it plans against.
type SchedulerConfig struct {
	ProposalTTL          time.Duration
	MaxWindowDays        int
	DefaultMaxSlots      int
	SuggestionSearchDays int
	TimeSlots            []TimeSlotConfig
	MorningSlots         []int
}

// NotificationConfig sizes the asynchronous notification worker pool.
type NotificationConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// CacheConfig governs Redis caching of weekly schedule views.
type CacheConfig struct {
	Enabled   bool
	WeeklyTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	slots, err := ParseTimeSlots(v.GetString("SCHEDULER_TIME_SLOTS"))
	if err != nil {
		return nil, err
	}
	morning, err := parseInts(v.GetString("SCHEDULER_MORNING_SLOTS"))
	if err != nil {
		return nil, fmt.Errorf("SCHEDULER_MORNING_SLOTS: %w", err)
	}
	cfg.Scheduler = SchedulerConfig{
		ProposalTTL:          parseDuration(v.GetString("SCHEDULER_PROPOSAL_TTL"), 30*time.Minute),
		MaxWindowDays:        v.GetInt("SCHEDULER_MAX_WINDOW_DAYS"),
		DefaultMaxSlots:      v.GetInt("SCHEDULER_DEFAULT_MAX_SLOTS"),
		SuggestionSearchDays: v.GetInt("SCHEDULER_SUGGESTION_SEARCH_DAYS"),
		TimeSlots:            slots,
		MorningSlots:         morning,
	}

	cfg.Notifications = NotificationConfig{
		Workers:    v.GetInt("NOTIFICATION_WORKERS"),
		BufferSize: v.GetInt("NOTIFICATION_BUFFER_SIZE"),
		MaxRetries: v.GetInt("NOTIFICATION_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("NOTIFICATION_RETRY_DELAY"), time.Second),
	}

	cfg.Cache = CacheConfig{
		Enabled:   v.GetBool("ENABLE_SCHEDULE_CACHE"),
		WeeklyTTL: parseDuration(v.GetString("SCHEDULE_CACHE_TTL"), 5*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "lingua_center")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", false)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "lingua-scheduler")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCHEDULER_PROPOSAL_TTL", "30m")
	v.SetDefault("SCHEDULER_MAX_WINDOW_DAYS", 120)
	v.SetDefault("SCHEDULER_DEFAULT_MAX_SLOTS", 0)
	v.SetDefault("SCHEDULER_SUGGESTION_SEARCH_DAYS", 7)
	v.SetDefault("SCHEDULER_TIME_SLOTS", "08:00-09:30,09:45-11:15,13:00-14:30,14:45-16:15,17:30-19:00,19:15-20:45")
	v.SetDefault("SCHEDULER_MORNING_SLOTS", "1,2")

	v.SetDefault("NOTIFICATION_WORKERS", 2)
	v.SetDefault("NOTIFICATION_BUFFER_SIZE", 256)
	v.SetDefault("NOTIFICATION_MAX_RETRIES", 3)
	v.SetDefault("NOTIFICATION_RETRY_DELAY", "1s")

	v.SetDefault("ENABLE_SCHEDULE_CACHE", false)
	v.SetDefault("SCHEDULE_CACHE_TTL", "5m")
}

// ParseTimeSlots reads a comma separated list of "HH:MM-HH:MM" ranges numbered from 1 in order.
func ParseTimeSlots(raw string) ([]TimeSlotConfig, error) {
	parts := splitAndTrim(raw)
	if len(parts) == 0 {
		return nil, fmt.Errorf("SCHEDULER_TIME_SLOTS must define at least one slot")
	}
	slots := make([]TimeSlotConfig, 0, len(parts))
	for i, part := range parts {
		bounds := strings.SplitN(part, "-", 2)
		if len(bounds) != 2 {
			return nil, fmt.Errorf("time slot %q must look like HH:MM-HH:MM", part)
		}
		start := strings.TrimSpace(bounds[0])
		end := strings.TrimSpace(bounds[1])
		startAt, err := time.Parse("15:04", start)
		if err != nil {
			return nil, fmt.Errorf("time slot %q: invalid start: %w", part, err)
		}
		endAt, err := time.Parse("15:04", end)
		if err != nil {
			return nil, fmt.Errorf("time slot %q: invalid end: %w", part, err)
		}
		if !endAt.After(startAt) {
			return nil, fmt.Errorf("time slot %q ends before it starts", part)
		}
		slots = append(slots, TimeSlotConfig{Number: i + 1, Start: start, End: end})
	}
	return slots, nil
}

func parseInts(raw string) ([]int, error) {
	parts := splitAndTrim(raw)
	result := make([]int, 0, len(parts))
	for _, part := range parts {
		value, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		result = append(result, value)
	}
	return result, nil
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
