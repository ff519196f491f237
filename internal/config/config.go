package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode   string // Set via flag, not env
	LogLevel  string
	LogFormat string
	Location  *time.Location // Calendar used for streak days

	// Document store
	StoreDriver string // "mongo" or "memory"
	MongoURI    string
	MongoDbName string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT
	JwtSecret string
	JwtTTL    time.Duration

	// Server
	ApiPort           string
	ServiceApiPort    string
	ServiceApiKeyHash string
	CorsAllowedOrigin string

	// Object storage
	StorageDriver       string // "s3", "cloudinary" or "memory"
	AwsAccessKeyID      string
	AwsSecretAccessKey  string
	AwsRegion           string
	AwsS3Bucket         string
	AwsS3Endpoint       string // S3-compatible endpoint override, e.g. R2 or MinIO
	ImageBaseS3URL      string
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	ImageMaxDimension   int
	ImageMaxSizeMB      int

	// AI collaborator
	GeminiAPIKey string
	GeminiModel  string

	// Weather
	WeatherAPIKey  string
	WeatherBaseURL string

	// Catalog and reward tuning
	CatalogDir  string
	RewardsFile string

	// Fraud
	FraudSubmissionHistory int
	FraudSuspensionDays    int
	FraudMaxFarmDistanceKm float64
	FraudHashTTLDays       int

	// Verification worker
	VerifyMaxRetry int
	VerifyTimeout  time.Duration
	SweepInterval  time.Duration
	SweepStale     time.Duration

	// Leaderboard
	LeaderboardCacheTTL time.Duration

	// Rate Limiting Defaults
	RateLimitBucketSize       int
	RateLimitRefillRate       int // tokens per second
	RateLimitUploadBucketSize int
	RateLimitUploadRefillRate int // tokens per minute
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	godotenv.Load()

	cfg := &Config{
		RunMode: runMode,
	}

	var err error

	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}

	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists || value == "" {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	getSeconds := func(key, defaultValue string) (time.Duration, error) {
		seconds, err := strconv.ParseInt(getEnv(key, defaultValue), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}

	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "json")

	cfg.Location, err = time.LoadLocation(getEnv("TIMEZONE", "Asia/Kolkata"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	cfg.StoreDriver = getEnv("STORE_DRIVER", "mongo")
	switch cfg.StoreDriver {
	case "mongo":
		cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
		if err != nil {
			return nil, err
		}
	case "memory":
		cfg.MongoURI = getEnv("MONGO_URI", "")
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER: %q", cfg.StoreDriver)
	}
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "ecofarming")

	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	cfg.JwtTTL, err = getSeconds("JWT_TTL_SECONDS", "3600")
	if err != nil {
		return nil, err
	}

	cfg.ApiPort = getEnv("API_PORT", "8080")
	cfg.ServiceApiPort = getEnv("SERVICE_API_PORT", "12345")
	cfg.ServiceApiKeyHash = getEnv("SERVICE_API_KEY_HASH", "")
	cfg.CorsAllowedOrigin = getEnv("CORS_ALLOWED_ORIGIN", "")

	cfg.StorageDriver = getEnv("STORAGE_DRIVER", "s3")
	switch cfg.StorageDriver {
	case "s3", "cloudinary", "memory":
	default:
		return nil, fmt.Errorf("invalid STORAGE_DRIVER: %q", cfg.StorageDriver)
	}
	cfg.AwsAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	cfg.AwsSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	cfg.AwsRegion = getEnv("AWS_REGION", "ap-south-1")
	cfg.AwsS3Bucket = getEnv("AWS_S3_BUCKET", "")
	cfg.AwsS3Endpoint = getEnv("AWS_S3_ENDPOINT", "")
	cfg.ImageBaseS3URL = getEnv("IMAGE_BASE_S3_URL", "")
	cfg.CloudinaryCloudName = getEnv("CLOUDINARY_CLOUD_NAME", "")
	cfg.CloudinaryAPIKey = getEnv("CLOUDINARY_API_KEY", "")
	cfg.CloudinaryAPISecret = getEnv("CLOUDINARY_API_SECRET", "")

	cfg.ImageMaxDimension, err = strconv.Atoi(getEnv("IMAGE_MAX_DIMENSION", "2048"))
	if err != nil {
		return nil, fmt.Errorf("invalid IMAGE_MAX_DIMENSION: %w", err)
	}
	cfg.ImageMaxSizeMB, err = strconv.Atoi(getEnv("IMAGE_MAX_SIZE_MB", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid IMAGE_MAX_SIZE_MB: %w", err)
	}

	cfg.GeminiAPIKey = getEnv("GEMINI_API_KEY", "")
	cfg.GeminiModel = getEnv("GEMINI_MODEL", "gemini-2.5-flash")

	cfg.WeatherAPIKey = getEnv("WEATHER_API_KEY", "")
	cfg.WeatherBaseURL = getEnv("WEATHER_BASE_URL", "https://api.openweathermap.org")

	cfg.CatalogDir = getEnv("CATALOG_DIR", "")
	cfg.RewardsFile = getEnv("REWARDS_FILE", "")

	cfg.FraudSubmissionHistory, err = strconv.Atoi(getEnv("FRAUD_SUBMISSION_HISTORY", "50"))
	if err != nil {
		return nil, fmt.Errorf("invalid FRAUD_SUBMISSION_HISTORY: %w", err)
	}
	cfg.FraudSuspensionDays, err = strconv.Atoi(getEnv("FRAUD_SUSPENSION_DAYS", "7"))
	if err != nil {
		return nil, fmt.Errorf("invalid FRAUD_SUSPENSION_DAYS: %w", err)
	}
	cfg.FraudMaxFarmDistanceKm, err = strconv.ParseFloat(getEnv("FRAUD_MAX_FARM_DISTANCE_KM", "5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid FRAUD_MAX_FARM_DISTANCE_KM: %w", err)
	}
	cfg.FraudHashTTLDays, err = strconv.Atoi(getEnv("FRAUD_HASH_TTL_DAYS", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid FRAUD_HASH_TTL_DAYS: %w", err)
	}

	cfg.VerifyMaxRetry, err = strconv.Atoi(getEnv("VERIFY_MAX_RETRY", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid VERIFY_MAX_RETRY: %w", err)
	}
	if cfg.VerifyTimeout, err = getSeconds("VERIFY_TIMEOUT_SECONDS", "120"); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = getSeconds("SWEEP_INTERVAL_SECONDS", "300"); err != nil {
		return nil, err
	}
	if cfg.SweepStale, err = getSeconds("SWEEP_STALE_SECONDS", "900"); err != nil {
		return nil, err
	}
	if cfg.LeaderboardCacheTTL, err = getSeconds("LEADERBOARD_CACHE_TTL_SECONDS", "30"); err != nil {
		return nil, err
	}

	// Rate Limiting
	cfg.RateLimitBucketSize, err = strconv.Atoi(getEnv("RATE_LIMIT_BUCKET_SIZE", "20"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BUCKET_SIZE: %w", err)
	}
	cfg.RateLimitRefillRate, err = strconv.Atoi(getEnv("RATE_LIMIT_REFILL_RATE", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_REFILL_RATE: %w", err)
	}
	cfg.RateLimitUploadBucketSize, err = strconv.Atoi(getEnv("RATE_LIMIT_UPLOAD_BUCKET_SIZE", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_UPLOAD_BUCKET_SIZE: %w", err)
	}
	cfg.RateLimitUploadRefillRate, err = strconv.Atoi(getEnv("RATE_LIMIT_UPLOAD_REFILL_RATE", "6"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_UPLOAD_REFILL_RATE: %w", err)
	}

	return cfg, nil
}
