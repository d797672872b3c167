package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	DatabaseName      string `mapstructure:"DATABASE_NAME"`
	Env               string `mapstructure:"ENV"`
	JWTSecret         string `mapstructure:"JWT_SECRET"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Redis configuration.
	RedisAddr        string `mapstructure:"REDIS_ADDR"`
	RedisPassword    string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB     int    `mapstructure:"REDIS_CACHE_DB"`
	RedisIdemDB      int    `mapstructure:"REDIS_IDEM_DB"`
	RedisTaskQueueDB int    `mapstructure:"REDIS_TASK_QUEUE_DB"`

	// Payment providers.
	StripeKey        string `mapstructure:"STRIPE_KEY"`
	MomoBaseURL      string `mapstructure:"MOMO_BASE_URL"`
	MomoAPIKey       string `mapstructure:"MOMO_API_KEY"`
	MomoPollSeconds  int    `mapstructure:"MOMO_POLL_SECONDS"`
	MomoPollMaxWait  int    `mapstructure:"MOMO_POLL_MAX_WAIT_SECONDS"`
	DefaultCurrency  string `mapstructure:"DEFAULT_CURRENCY"`
	CommissionBps    int64  `mapstructure:"COMMISSION_BPS"`
	SettleMaxRetries int    `mapstructure:"SETTLE_MAX_RETRIES"`

	// Escrow rate table and deadlines.
	SameCityFee           int64 `mapstructure:"SAME_CITY_FEE"`
	InterCityFee          int64 `mapstructure:"INTER_CITY_FEE"`
	FreeShippingThreshold int64 `mapstructure:"FREE_SHIPPING_THRESHOLD"`
	ProtectionFee         int64 `mapstructure:"PROTECTION_FEE"`
	AutoValidateHours     int   `mapstructure:"AUTO_VALIDATE_HOURS"`
	DisputeWindowHours    int   `mapstructure:"DISPUTE_WINDOW_HOURS"`
	SweepIntervalMinutes  int   `mapstructure:"SWEEP_INTERVAL_MINUTES"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_IDEM_DB", 1)
	viper.SetDefault("REDIS_TASK_QUEUE_DB", 2)
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("DATABASE_NAME", "vendra")
	viper.SetDefault("STRIPE_KEY", "")
	viper.SetDefault("MOMO_BASE_URL", "")
	viper.SetDefault("MOMO_API_KEY", "")
	viper.SetDefault("MOMO_POLL_SECONDS", 3)
	viper.SetDefault("MOMO_POLL_MAX_WAIT_SECONDS", 90)
	viper.SetDefault("DEFAULT_CURRENCY", "XAF")
	viper.SetDefault("COMMISSION_BPS", 500)
	viper.SetDefault("SETTLE_MAX_RETRIES", 8)
	viper.SetDefault("SAME_CITY_FEE", 1000)
	viper.SetDefault("INTER_CITY_FEE", 2000)
	viper.SetDefault("FREE_SHIPPING_THRESHOLD", 100000)
	viper.SetDefault("PROTECTION_FEE", 500)
	viper.SetDefault("AUTO_VALIDATE_HOURS", 14*24)
	viper.SetDefault("DISPUTE_WINDOW_HOURS", 48)
	viper.SetDefault("SWEEP_INTERVAL_MINUTES", 5)

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}

// AutoValidateWindow is the deadline after which an unconfirmed shipped
// order is deemed delivered.
func AutoValidateWindow() time.Duration {
	return time.Duration(AppConfig.AutoValidateHours) * time.Hour
}

// DisputeWindow is how long after the relevant proof a dispute may be opened.
func DisputeWindow() time.Duration {
	return time.Duration(AppConfig.DisputeWindowHours) * time.Hour
}
