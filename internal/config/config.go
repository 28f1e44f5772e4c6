package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cartloop/recurbill/internal/types"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Server     ServerConfig     `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Postgres   PostgresConfig   `validate:"required"`
	PayPal     PayPalConfig     `validate:"required"`
	Email      EmailConfig
	Billing    BillingConfig
	Cache      CacheConfig
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type ServerConfig struct {
	Address string `validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

type PostgresConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// PayPalConfig holds credentials and endpoints for both payment back ends:
// the REST orders API and the legacy NVP API.
type PayPalConfig struct {
	// REST API
	RESTBaseURL  string
	ClientID     string
	ClientSecret string
	// Intent is the default order intent: CAPTURE or AUTHORIZE
	Intent string

	// Legacy NVP API
	NVPEndpoint  string
	NVPUser      string
	NVPPassword  string
	NVPSignature string

	// TimeoutSeconds bounds every outbound gateway call
	TimeoutSeconds int
}

type EmailConfig struct {
	Enabled      bool
	APIKey       string
	FromAddress  string
	ReplyTo      string
	AdminAddress string
	// AccountURL is included in failure notifications so customers can
	// update their payment method
	AccountURL string
}

type BillingConfig struct {
	// DunningThreshold is the number of consecutive failures after which the
	// surrounding dunning policy kicks in
	DunningThreshold int
	// CancellationLogPath is a dedicated diagnostic log file for automatic
	// cancellations caused by deleted source order lines, kept out of the
	// subscription comments to avoid repeated identical messages
	CancellationLogPath string
}

type CacheConfig struct {
	Enabled bool
}

func NewConfig() (*Configuration, error) {
	// local development convenience; absent .env files are fine
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/recurbill")

	v.SetEnvPrefix("RECURBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c Configuration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// GetDSN returns the postgres connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode,
	)
}

// GetDefaultConfig returns a default configuration for local development
// This is useful for running scripts or other non-web applications
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		PayPal: PayPalConfig{
			Intent:         "CAPTURE",
			TimeoutSeconds: 30,
		},
		Billing: BillingConfig{
			DunningThreshold:    3,
			CancellationLogPath: "recurbill_cancellations.log",
		},
	}
}
