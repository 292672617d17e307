package config

import (
	"errors"  // For validation errors
	"os"      // For environment variables
	"strconv" // For string to int conversion
	"strings" // For trimming values
	"time"    // For durations

	"github.com/joho/godotenv" // For loading .env files
)

// Config holds the application configuration
type Config struct {
	AppPort  string // Application port
	IsProd   bool   // Is production environment
	LogLevel string // Logrus level name

	DBUser     string // Database user
	DBPassword string // Database password
	DBHost     string // Database host
	DBPort     string // Database port
	DBName     string // Database name

	RedisAddr string // Redis server address, empty disables caching and locking
	RedisPass string // Redis password
	RedisDB   int    // Redis database number

	JWTSecret   string // JWT secret key shared with the identity provider
	FrontendURL string // Base URL for callback redirects

	PaymentProvider    string // paystack or opay
	PaymentCallbackURL string // URL the gateway sends the customer back to
	PaystackSecretKey  string // Paystack secret key
	PaystackBaseURL    string // Paystack API base URL
	OPayMerchantID     string // OPay merchant id
	OPayPublicKey      string // OPay public key
	OPaySecretKey      string // OPay secret key
	OPayBaseURL        string // OPay API base URL

	WalletCurrency string // Currency for new wallets
	MaxDeposit     int64  // Largest single deposit, major units

	RabbitMQURL string // Optional broker for wallet events

	ReconcileSchedule string        // Cron spec for pending reconciliation
	ReconcileAfter    time.Duration // Minimum age before a pending deposit is re-verified
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	return &Config{
		AppPort:  getEnv("APP_PORT", "8080"),
		IsProd:   os.Getenv("IS_PROD") == "true",
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBName:     os.Getenv("DB_NAME"),

		RedisAddr: os.Getenv("REDIS_ADDR"),
		RedisPass: os.Getenv("REDIS_PASS"),
		RedisDB:   getInt("REDIS_DB", 0),

		JWTSecret:   os.Getenv("JWT_SECRET"),
		FrontendURL: strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),

		PaymentProvider:    strings.ToLower(getEnv("PAYMENT_PROVIDER", "paystack")),
		PaymentCallbackURL: os.Getenv("PAYMENT_CALLBACK_URL"),
		PaystackSecretKey:  os.Getenv("PAYSTACK_SECRET_KEY"),
		PaystackBaseURL:    getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		OPayMerchantID:     os.Getenv("OPAY_MERCHANT_ID"),
		OPayPublicKey:      os.Getenv("OPAY_PUBLIC_KEY"),
		OPaySecretKey:      os.Getenv("OPAY_SECRET_KEY"),
		OPayBaseURL:        getEnv("OPAY_BASE_URL", "https://testapi.opaycheckout.com"),

		WalletCurrency: strings.ToUpper(getEnv("WALLET_CURRENCY", "NGN")),
		MaxDeposit:     int64(getInt("MAX_DEPOSIT", 10000000)),

		RabbitMQURL: os.Getenv("RABBITMQ_URL"),

		ReconcileSchedule: getEnv("RECONCILE_SCHEDULE", "@every 5m"),
		ReconcileAfter:    getDuration("RECONCILE_AFTER", 15*time.Minute),
	}
}

// DSN builds the MySQL Data Source Name
func (c *Config) DSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true"
}

// Validate reports the first missing required setting
func (c *Config) Validate() error {
	switch {
	case c.JWTSecret == "":
		return errors.New("JWT_SECRET is required")
	case c.DBName == "":
		return errors.New("DB_NAME is required")
	case c.PaymentProvider == "paystack" && c.PaystackSecretKey == "":
		return errors.New("PAYSTACK_SECRET_KEY is required")
	case c.PaymentProvider == "opay" && (c.OPayMerchantID == "" || c.OPaySecretKey == "" || c.OPayPublicKey == ""):
		return errors.New("OPAY_MERCHANT_ID, OPAY_PUBLIC_KEY and OPAY_SECRET_KEY are required")
	case c.PaymentProvider != "paystack" && c.PaymentProvider != "opay":
		return errors.New("PAYMENT_PROVIDER must be paystack or opay")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
