package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort              string `mapstructure:"APP_PORT"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	DatabaseName         string `mapstructure:"DATABASE_NAME"`
	Env                  string `mapstructure:"ENV"`
	JWTSecret            string `mapstructure:"JWT_SECRET"`
	LogLevel             string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin    int    `mapstructure:"MAX_REQUESTS_PER_MIN"`
	PublicRequestsPerMin int    `mapstructure:"PUBLIC_REQUESTS_PER_MIN"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB  int    `mapstructure:"REDIS_CACHE_DB"`
	RedisQueueDB  int    `mapstructure:"REDIS_QUEUE_DB"`

	// M-Pesa Daraja credentials.
	MpesaBaseURL         string `mapstructure:"MPESA_BASE_URL"`
	MpesaConsumerKey     string `mapstructure:"MPESA_CONSUMER_KEY"`
	MpesaConsumerSecret  string `mapstructure:"MPESA_CONSUMER_SECRET"`
	MpesaShortcode       string `mapstructure:"MPESA_SHORTCODE"`
	MpesaPasskey         string `mapstructure:"MPESA_PASSKEY"`
	MpesaCallbackURL     string `mapstructure:"MPESA_CALLBACK_URL"`
	MpesaTransactionType string `mapstructure:"MPESA_TRANSACTION_TYPE"`

	// Payment session tracking.
	PaymentPollInterval     time.Duration `mapstructure:"PAYMENT_POLL_INTERVAL"`
	PaymentTickInterval     time.Duration `mapstructure:"PAYMENT_TICK_INTERVAL"`
	PaymentSlowThreshold    time.Duration `mapstructure:"PAYMENT_SLOW_THRESHOLD"`
	PaymentSessionTTL       time.Duration `mapstructure:"PAYMENT_SESSION_TTL"`
	PaymentIntentTTL        time.Duration `mapstructure:"PAYMENT_INTENT_TTL"`
	PaymentReconcileDelay   time.Duration `mapstructure:"PAYMENT_RECONCILE_DELAY"`
	MandatoryFeeAmount      int64         `mapstructure:"MANDATORY_FEE_AMOUNT"`
	MandatoryFeeTerm        string        `mapstructure:"MANDATORY_FEE_TERM"`
	MinContributionAmount   int64         `mapstructure:"MIN_CONTRIBUTION_AMOUNT"`
	MinWalletRechargeAmount int64         `mapstructure:"MIN_WALLET_RECHARGE_AMOUNT"`
	MinTicketAmount         int64         `mapstructure:"MIN_TICKET_AMOUNT"`
	MinRechargeLinkAmount   int64         `mapstructure:"MIN_RECHARGE_LINK_AMOUNT"`
	RechargeLinkMaxTTL      time.Duration `mapstructure:"RECHARGE_LINK_MAX_TTL"`

	// PubNub realtime notifications.
	PubNubPublishKey   string `mapstructure:"PUBNUB_PUBLISH_KEY"`
	PubNubSubscribeKey string `mapstructure:"PUBNUB_SUBSCRIBE_KEY"`
	PubNubSecretKey    string `mapstructure:"PUBNUB_SECRET_KEY"`
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
	viper.SetDefault("JWT_SECRET", "")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 200)
	viper.SetDefault("PUBLIC_REQUESTS_PER_MIN", 20)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_QUEUE_DB", 3)
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("DATABASE_NAME", "harambee")

	viper.SetDefault("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke")
	viper.SetDefault("MPESA_CONSUMER_KEY", "")
	viper.SetDefault("MPESA_CONSUMER_SECRET", "")
	viper.SetDefault("MPESA_SHORTCODE", "174379")
	viper.SetDefault("MPESA_PASSKEY", "")
	viper.SetDefault("MPESA_CALLBACK_URL", "")
	viper.SetDefault("MPESA_TRANSACTION_TYPE", "CustomerPayBillOnline")

	viper.SetDefault("PAYMENT_POLL_INTERVAL", "3s")
	viper.SetDefault("PAYMENT_TICK_INTERVAL", "1s")
	viper.SetDefault("PAYMENT_SLOW_THRESHOLD", "60s")
	viper.SetDefault("PAYMENT_SESSION_TTL", "30m")
	viper.SetDefault("PAYMENT_INTENT_TTL", "3m")
	viper.SetDefault("PAYMENT_RECONCILE_DELAY", "2m")
	viper.SetDefault("MANDATORY_FEE_AMOUNT", 1000)
	viper.SetDefault("MANDATORY_FEE_TERM", "2026")
	viper.SetDefault("MIN_CONTRIBUTION_AMOUNT", 10)
	viper.SetDefault("MIN_WALLET_RECHARGE_AMOUNT", 10)
	viper.SetDefault("MIN_TICKET_AMOUNT", 1)
	viper.SetDefault("MIN_RECHARGE_LINK_AMOUNT", 1)
	viper.SetDefault("RECHARGE_LINK_MAX_TTL", "720h")

	viper.SetDefault("PUBNUB_PUBLISH_KEY", "")
	viper.SetDefault("PUBNUB_SUBSCRIBE_KEY", "")
	viper.SetDefault("PUBNUB_SECRET_KEY", "")

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
