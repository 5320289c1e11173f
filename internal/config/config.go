/**
 * @description
 * This package handles the configuration management for the service. It uses
 * the Viper library to read configuration from environment variables (with an
 * optional .env file), providing a centralized way to manage settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the wallet-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort               string `mapstructure:"SERVER_PORT"`
	DatabaseURL              string `mapstructure:"DATABASE_URL"`
	RedisURL                 string `mapstructure:"REDIS_URL"`
	RabbitMQURL              string `mapstructure:"RABBITMQ_URL"`
	SettlementQueue          string `mapstructure:"SETTLEMENT_QUEUE"`
	SettlementMaxAttempts    int    `mapstructure:"SETTLEMENT_MAX_ATTEMPTS"`
	SettlementBackoffSeconds int    `mapstructure:"SETTLEMENT_BACKOFF_SECONDS"`
	SettlementTimeoutSeconds int    `mapstructure:"SETTLEMENT_TIMEOUT_SECONDS"`
	PaystackBaseURL          string `mapstructure:"PAYSTACK_URL"`
	PaystackSecretKey        string `mapstructure:"PAYSTACK_SECRET_KEY"`
	WebhookSecret            string `mapstructure:"WEBHOOK_SECRET"`
	JWTSecret                string `mapstructure:"JWT_SECRET"`
	FrontendDomain           string `mapstructure:"FRONTEND_DOMAIN"`
	MinFundingAmount         int64  `mapstructure:"MIN_FUNDING_AMOUNT"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SETTLEMENT_QUEUE", "wallet_service.settlements")
	viper.SetDefault("SETTLEMENT_MAX_ATTEMPTS", 3)
	viper.SetDefault("SETTLEMENT_BACKOFF_SECONDS", 2)
	viper.SetDefault("SETTLEMENT_TIMEOUT_SECONDS", 300)
	viper.SetDefault("PAYSTACK_URL", "https://api.paystack.co")
	viper.SetDefault("MIN_FUNDING_AMOUNT", 100)

	// Bind environment variables explicitly to ensure they appear in Unmarshal.
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("SETTLEMENT_QUEUE")
	_ = viper.BindEnv("SETTLEMENT_MAX_ATTEMPTS")
	_ = viper.BindEnv("SETTLEMENT_BACKOFF_SECONDS")
	_ = viper.BindEnv("SETTLEMENT_TIMEOUT_SECONDS")
	_ = viper.BindEnv("PAYSTACK_URL")
	_ = viper.BindEnv("PAYSTACK_SECRET_KEY")
	_ = viper.BindEnv("WEBHOOK_SECRET")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("FRONTEND_DOMAIN")
	_ = viper.BindEnv("MIN_FUNDING_AMOUNT")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}

	// The provider signs webhooks with the API secret key unless a dedicated
	// webhook secret is configured.
	config.WebhookSecret = strings.TrimSpace(config.WebhookSecret)
	if config.WebhookSecret == "" {
		config.WebhookSecret = strings.TrimSpace(config.PaystackSecretKey)
	}

	if config.MinFundingAmount <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive minimum funding amount; using default\" value=%d", config.MinFundingAmount)
		config.MinFundingAmount = 100
	}
	if config.SettlementMaxAttempts <= 0 {
		config.SettlementMaxAttempts = 3
	}
	if config.SettlementBackoffSeconds <= 0 {
		config.SettlementBackoffSeconds = 2
	}
	if config.SettlementTimeoutSeconds <= 0 {
		config.SettlementTimeoutSeconds = 300
	}

	return
}
