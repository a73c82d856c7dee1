package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Schedule ScheduleConfig
	Booking  BookingConfig
	Auth     AuthConfig
}

type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	DSN          string
	AutoMigrate  bool
	SeedData     bool
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

type RedisConfig struct {
	Addr string
}

type KafkaConfig struct {
	Brokers []string
	GroupID string
	Enabled bool
}

type ScheduleConfig struct {
	// MonthsAhead is the default forward window for instance generation.
	MonthsAhead int
	// Daily generation run fires at DailyHour:DailyMinute in Timezone.
	DailyHour   int
	DailyMinute int
	Timezone    string
}

type BookingConfig struct {
	CancelWindowMinutes int
	ClassLockTTLSeconds int
	QRSecretKey         string
}

type AuthConfig struct {
	OIDCIssuer string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         getEnv("HTTP_ADDR", ":8085"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:          getEnv("POSTGRES_DSN", ""),
			AutoMigrate:  getEnvBool("DB_AUTO_MIGRATE", true),
			SeedData:     getEnvBool("DB_SEED_DATA", false),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
		Kafka: KafkaConfig{
			Brokers: []string{getEnv("KAFKA_ADDR", "localhost:9092")},
			GroupID: getEnv("KAFKA_GROUP_ID", "gym-booking-service"),
			Enabled: getEnvBool("KAFKA_ENABLED", true),
		},
		Schedule: ScheduleConfig{
			MonthsAhead: getEnvInt("GENERATE_MONTHS_AHEAD", 2),
			DailyHour:   getEnvInt("GENERATE_DAILY_HOUR", 3),
			DailyMinute: getEnvInt("GENERATE_DAILY_MINUTE", 0),
			Timezone:    getEnv("TIMEZONE", "UTC"),
		},
		Booking: BookingConfig{
			CancelWindowMinutes: getEnvInt("CANCEL_WINDOW_MINUTES", 60),
			ClassLockTTLSeconds: getEnvInt("CLASS_LOCK_TTL_SECONDS", 10),
			QRSecretKey:         getEnv("QR_SECRET_KEY", ""),
		},
		Auth: AuthConfig{
			OIDCIssuer: getEnv("OIDC_ISSUER", ""),
		},
	}
}

// Location resolves the configured timezone, falling back to UTC on a bad
// name so a typo never takes the service down.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) CancelWindow() time.Duration {
	return time.Duration(c.Booking.CancelWindowMinutes) * time.Minute
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
