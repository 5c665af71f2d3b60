package config

import (
	"errors"
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

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Mail       MailConfig
	Admissions AdmissionsConfig
	Import     ImportConfig
	Jobs       JobsConfig
	Storage    StorageConfig
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
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// MailConfig selects the outbound mail transport. With an empty API key the
// console mailer is used, which only logs messages.
type MailConfig struct {
	SendgridAPIKey string
	FromName       string
	FromAddress    string
	SchoolName     string
}

// AdmissionsConfig tunes admission workflow guards.
type AdmissionsConfig struct {
	MaxClassCapacity int
}

// ImportConfig bounds the CSV import pipeline.
type ImportConfig struct {
	BatchSize        int
	MaxRows          int
	ProgressInterval int
	FailureTTL       time.Duration
}

// JobsConfig configures the background worker pool.
type JobsConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// StorageConfig locates uploaded CSV files and generated letters on disk.
type StorageConfig struct {
	UploadDir string
	LetterDir string
}

// Load reads configuration from the environment, with .env support for
// local development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "sms_core")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("MAIL_SENDGRID_API_KEY", "")
	v.SetDefault("MAIL_FROM_NAME", "School Office")
	v.SetDefault("MAIL_FROM_ADDRESS", "no-reply@school.example")
	v.SetDefault("MAIL_SCHOOL_NAME", "The School")

	v.SetDefault("ADMISSIONS_MAX_CLASS_CAPACITY", 40)

	v.SetDefault("IMPORT_BATCH_SIZE", 100)
	v.SetDefault("IMPORT_MAX_ROWS", 10000)
	v.SetDefault("IMPORT_PROGRESS_INTERVAL", 100)
	v.SetDefault("IMPORT_FAILURE_TTL", "1h")

	v.SetDefault("JOBS_WORKERS", 2)
	v.SetDefault("JOBS_BUFFER_SIZE", 64)
	v.SetDefault("JOBS_MAX_RETRIES", 2)
	v.SetDefault("JOBS_RETRY_DELAY", "5s")

	v.SetDefault("STORAGE_UPLOAD_DIR", "./uploads")
	v.SetDefault("STORAGE_LETTER_DIR", "./letters")

	cfg := &Config{
		Env:       v.GetString("ENV"),
		Port:      v.GetInt("PORT"),
		APIPrefix: v.GetString("API_PREFIX"),
		Database: DatabaseConfig{
			Host:         v.GetString("DB_HOST"),
			Port:         v.GetInt("DB_PORT"),
			User:         v.GetString("DB_USER"),
			Password:     v.GetString("DB_PASSWORD"),
			Name:         v.GetString("DB_NAME"),
			SSLMode:      v.GetString("DB_SSLMODE"),
			MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("JWT_SECRET"),
			Expiration: v.GetDuration("JWT_EXPIRATION"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitAndTrim(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Mail: MailConfig{
			SendgridAPIKey: v.GetString("MAIL_SENDGRID_API_KEY"),
			FromName:       v.GetString("MAIL_FROM_NAME"),
			FromAddress:    v.GetString("MAIL_FROM_ADDRESS"),
			SchoolName:     v.GetString("MAIL_SCHOOL_NAME"),
		},
		Admissions: AdmissionsConfig{
			MaxClassCapacity: v.GetInt("ADMISSIONS_MAX_CLASS_CAPACITY"),
		},
		Import: ImportConfig{
			BatchSize:        v.GetInt("IMPORT_BATCH_SIZE"),
			MaxRows:          v.GetInt("IMPORT_MAX_ROWS"),
			ProgressInterval: v.GetInt("IMPORT_PROGRESS_INTERVAL"),
			FailureTTL:       v.GetDuration("IMPORT_FAILURE_TTL"),
		},
		Jobs: JobsConfig{
			Workers:    v.GetInt("JOBS_WORKERS"),
			BufferSize: v.GetInt("JOBS_BUFFER_SIZE"),
			MaxRetries: v.GetInt("JOBS_MAX_RETRIES"),
			RetryDelay: v.GetDuration("JOBS_RETRY_DELAY"),
		},
		Storage: StorageConfig{
			UploadDir: v.GetString("STORAGE_UPLOAD_DIR"),
			LetterDir: v.GetString("STORAGE_LETTER_DIR"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Env == EnvProduction && c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required in production")
	}
	if c.Import.BatchSize <= 0 || c.Import.MaxRows <= 0 {
		return errors.New("import batch size and max rows must be positive")
	}
	return nil
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
