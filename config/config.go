package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	AppPort string `yaml:"app_port"`
	AppMode string `yaml:"app_mode"`

	DBDriver   string `yaml:"db_driver"`
	DBHost     string `yaml:"db_host"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBName     string `yaml:"db_name"`
	DBPort     string `yaml:"db_port"`
	DBMaxConns int    `yaml:"db_max_conns"`

	JWTSecret string `yaml:"jwt_secret"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	S3Region     string `yaml:"s3_region"`
	S3Bucket     string `yaml:"s3_bucket"`
	S3AccessKey  string `yaml:"s3_access_key"`
	S3SecretKey  string `yaml:"s3_secret_key"`
	S3Endpoint   string `yaml:"s3_endpoint"`
	S3PublicBase string `yaml:"s3_public_base"`
	S3PresignTTL int    `yaml:"s3_presign_ttl_sec"`

	MaxAttachmentBytes   int64 `yaml:"max_attachment_bytes"`
	MessageRateLimit     int   `yaml:"message_rate_limit"`
	MessageRateWindowSec int   `yaml:"message_rate_window_sec"`
	IdentityCacheTTLSec  int   `yaml:"identity_cache_ttl_sec"`

	// ExternalMessaging enables the relationship gate. When false every
	// external send is denied.
	ExternalMessaging bool     `yaml:"external_messaging"`
	CORSOrigins       []string `yaml:"cors_origins"`
}

// LoadConfig reads an optional YAML file named by CONFIG_FILE and then lets
// environment variables override every key.
func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			log.Printf("Ignoring config file %s: %v", path, err)
		}
	}
	applyEnv(cfg)
	return cfg
}

func defaults() *Config {
	return &Config{
		AppPort:              "8080",
		AppMode:              "debug",
		DBDriver:             "postgres",
		DBHost:               "localhost",
		DBUser:               "postgres",
		DBPassword:           "postgres",
		DBName:               "messaging",
		DBPort:               "5432",
		DBMaxConns:           20,
		JWTSecret:            "change-me",
		S3Region:             "us-east-1",
		S3PresignTTL:         900,
		MaxAttachmentBytes:   25 << 20,
		MessageRateLimit:     60,
		MessageRateWindowSec: 60,
		IdentityCacheTTLSec:  300,
		ExternalMessaging:    true,
	}
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.AppPort = getEnv("APP_PORT", cfg.AppPort)
	cfg.AppMode = getEnv("APP_MODE", cfg.AppMode)
	cfg.DBDriver = getEnv("DB_DRIVER", cfg.DBDriver)
	cfg.DBHost = getEnv("DB_HOST", cfg.DBHost)
	cfg.DBUser = getEnv("DB_USER", cfg.DBUser)
	cfg.DBPassword = getEnv("DB_PASSWORD", cfg.DBPassword)
	cfg.DBName = getEnv("DB_NAME", cfg.DBName)
	cfg.DBPort = getEnv("DB_PORT", cfg.DBPort)
	cfg.DBMaxConns = getEnvAsInt("DB_MAX_CONNS", cfg.DBMaxConns)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getEnvAsInt("REDIS_DB", cfg.RedisDB)
	cfg.S3Region = getEnv("S3_REGION", cfg.S3Region)
	cfg.S3Bucket = getEnv("S3_BUCKET", cfg.S3Bucket)
	cfg.S3AccessKey = getEnv("S3_ACCESS_KEY", cfg.S3AccessKey)
	cfg.S3SecretKey = getEnv("S3_SECRET_KEY", cfg.S3SecretKey)
	cfg.S3Endpoint = getEnv("S3_ENDPOINT", cfg.S3Endpoint)
	cfg.S3PublicBase = getEnv("S3_PUBLIC_BASE", cfg.S3PublicBase)
	cfg.S3PresignTTL = getEnvAsInt("S3_PRESIGN_TTL_SEC", cfg.S3PresignTTL)
	cfg.MaxAttachmentBytes = int64(getEnvAsInt("MAX_ATTACHMENT_BYTES", int(cfg.MaxAttachmentBytes)))
	cfg.MessageRateLimit = getEnvAsInt("MESSAGE_RATE_LIMIT", cfg.MessageRateLimit)
	cfg.MessageRateWindowSec = getEnvAsInt("MESSAGE_RATE_WINDOW_SEC", cfg.MessageRateWindowSec)
	cfg.IdentityCacheTTLSec = getEnvAsInt("IDENTITY_CACHE_TTL_SEC", cfg.IdentityCacheTTLSec)
	cfg.ExternalMessaging = getEnvAsBool("EXTERNAL_MESSAGING", cfg.ExternalMessaging)
	if origins := getEnv("CORS_ORIGINS", ""); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}
}

// DatabaseURL builds the pgx connection string.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&timezone=UTC",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func (c *Config) MessageRateWindow() time.Duration {
	return time.Duration(c.MessageRateWindowSec) * time.Second
}

func (c *Config) IdentityCacheTTL() time.Duration {
	return time.Duration(c.IdentityCacheTTLSec) * time.Second
}

func (c *Config) PresignTTL() time.Duration {
	return time.Duration(c.S3PresignTTL) * time.Second
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
