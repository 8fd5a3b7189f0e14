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

	// StoreBackend selects the document store: "dynamo" or "memory".
	StoreBackend   string
	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	// Archive bucket and audit topic are optional; empty disables them.
	S3ArchiveBucket  string
	SNSRegion        string
	SNSAuditTopicARN string

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration
	RefreshTokenTTL   time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	OTPTTL                   time.Duration
	OTPResendCooldown        time.Duration
	RequireEmailVerification bool
	BcryptCost               int
	VaultSecret              string

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users       string
	Credentials string
	OTPs        string
	Sessions    string
}

// Names lists every configured table name.
func (t DynamoTables) Names() []string {
	return []string{t.Users, t.Credentials, t.OTPs, t.Sessions}
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		StoreBackend:   getEnv("STORE_BACKEND", "dynamo"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:       getEnv("DYNAMO_TABLE_USERS", "users"),
			Credentials: getEnv("DYNAMO_TABLE_CREDENTIALS", "credentials"),
			OTPs:        getEnv("DYNAMO_TABLE_OTPS", "otps"),
			Sessions:    getEnv("DYNAMO_TABLE_SESSIONS", "sessions"),
		},
		S3ArchiveBucket:   getEnv("S3_ARCHIVE_BUCKET", ""),
		SNSRegion:         getEnv("SNS_REGION", "us-east-1"),
		SNSAuditTopicARN:  getEnv("SNS_AUDIT_TOPIC_ARN", ""),
		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         getEnvDuration("JWT_EXPIRY", 24*time.Hour),
		RefreshTokenTTL:   getEnvDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		SMTPHost:          getEnv("SMTP_HOST", "localhost"),
		SMTPPort:          getEnv("SMTP_PORT", "1025"),
		SMTPFrom:          getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),

		OTPTTL:                   getEnvDuration("OTP_TTL", 10*time.Minute),
		OTPResendCooldown:        getEnvDuration("OTP_RESEND_COOLDOWN", 30*time.Second),
		RequireEmailVerification: getEnvBool("REQUIRE_EMAIL_VERIFICATION", true),
		BcryptCost:               getEnvInt("BCRYPT_COST", 12),
		VaultSecret:              getEnv("VAULT_SECRET", ""),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
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

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("15m", "720h").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
