package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string
	AppName string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	StoreBackend  string // "dynamo" | "redis"
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	OTP       OTPConfig
	RateLimit RateLimitConfig

	DeliveryProvider string // "smtp" | "sns"
	DeliveryTimeout  time.Duration
	SMTPHost         string
	SMTPPort         string
	SMTPFrom         string
	SMTPUsername     string
	SMTPPassword     string
	SNSRegion        string
	SNSTopicARN      string

	IPRateLimitRPS    float64
	IPRateLimitBurst  int
	TrustProxyHeaders bool     // key the IP limiter on X-Forwarded-For / X-Real-Ip
	AllowedOrigins    []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	OTPs        string
	OTPAttempts string
	Users       string
}

// OTPConfig controls code lifetime and verification guesses.
type OTPConfig struct {
	Validity             time.Duration // expiresAt = createdAt + Validity
	RecordTTL            time.Duration // storage-level cleanup, independent of Validity
	MaxVerifyAttempts    int
	LockAfterMaxAttempts bool
}

// RateLimitConfig controls per-email issuance admission.
type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
}

const (
	StoreDynamo = "dynamo"
	StoreRedis  = "redis"

	ProviderSMTP = "smtp"
	ProviderSNS  = "sns"
)

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		AppName:        getEnv("APP_NAME", "DonorHub"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			OTPs:        getEnv("DYNAMO_TABLE_OTPS", "otps"),
			OTPAttempts: getEnv("DYNAMO_TABLE_OTP_ATTEMPTS", "otp_attempts"),
			Users:       getEnv("DYNAMO_TABLE_USERS", "users"),
		},
		StoreBackend:  strings.ToLower(getEnv("STORE_BACKEND", StoreDynamo)),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		OTP: OTPConfig{
			Validity:             time.Duration(getEnvInt("OTP_VALIDITY_MINUTES", 10)) * time.Minute,
			RecordTTL:            time.Duration(getEnvInt("OTP_RECORD_TTL_MINUTES", 10)) * time.Minute,
			MaxVerifyAttempts:    getEnvInt("OTP_MAX_VERIFY_ATTEMPTS", 5),
			LockAfterMaxAttempts: getEnvBool("OTP_LOCK_AFTER_MAX_ATTEMPTS", false),
		},
		RateLimit: RateLimitConfig{
			MaxRequests: getEnvInt("OTP_RATE_LIMIT_MAX", 5),
			Window:      time.Duration(getEnvInt("OTP_RATE_LIMIT_WINDOW_MINUTES", 60)) * time.Minute,
		},
		DeliveryProvider:  strings.ToLower(getEnv("DELIVERY_PROVIDER", ProviderSMTP)),
		DeliveryTimeout:   time.Duration(getEnvInt("DELIVERY_TIMEOUT_SECONDS", 10)) * time.Second,
		SMTPHost:          getEnv("SMTP_HOST", "localhost"),
		SMTPPort:          getEnv("SMTP_PORT", "1025"),
		SMTPFrom:          getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		SNSRegion:         getEnv("SNS_REGION", "us-east-1"),
		SNSTopicARN:       getEnv("SNS_TOPIC_ARN", ""),
		IPRateLimitRPS:    getEnvFloat("IP_RATE_LIMIT_RPS", 5),
		IPRateLimitBurst:  getEnvInt("IP_RATE_LIMIT_BURST", 10),
		TrustProxyHeaders: getEnvBool("TRUST_PROXY_HEADERS", false),
		AllowedOrigins:    strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
