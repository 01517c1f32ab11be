package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every runtime setting for the platform.
type Config struct {
	Environment string
	HTTPAddr    string

	Database Database
	SMTP     SMTP
	Payment  Payment
	Sweeper  Sweeper
	Tracing  Tracing
}

type Database struct {
	DSN string
}

type SMTP struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Payment configures the external payment provider used for trade settlement.
type Payment struct {
	Provider    string
	BaseURL     string
	ConsumerKey string
	Secret      string
	ShortCode   string
	Passkey     string
	CallbackURL string
}

// Tracing configures the OTLP trace exporter.
type Tracing struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	SamplingRatio    float64
}

// Sweeper configures the background sweep loop.
type Sweeper struct {
	PollInterval       time.Duration
	BatchSize          int
	InvoiceGraceWindow time.Duration
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Load reads configuration from plant.yaml (optional) and PLANT_* env vars.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("plant")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/plant")
	v.SetEnvPrefix("PLANT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("environment", "development")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("database.dsn", "host=localhost port=5432 user=plant dbname=plant sslmode=disable")
	v.SetDefault("smtp.host", "localhost")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.from", "no-reply@plantmetrics.app")
	v.SetDefault("payment.provider", "mpesa")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.sampling_ratio", 0.1)
	v.SetDefault("sweeper.poll_interval", "30s")
	v.SetDefault("sweeper.batch_size", 50)
	v.SetDefault("sweeper.invoice_grace_window", "5m")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	cfg := Config{
		Environment: v.GetString("environment"),
		HTTPAddr:    v.GetString("http.addr"),
		Database: Database{
			DSN: v.GetString("database.dsn"),
		},
		SMTP: SMTP{
			Host:     v.GetString("smtp.host"),
			Port:     v.GetInt("smtp.port"),
			Username: v.GetString("smtp.username"),
			Password: v.GetString("smtp.password"),
			From:     v.GetString("smtp.from"),
		},
		Payment: Payment{
			Provider:    v.GetString("payment.provider"),
			BaseURL:     v.GetString("payment.base_url"),
			ConsumerKey: v.GetString("payment.consumer_key"),
			Secret:      v.GetString("payment.secret"),
			ShortCode:   v.GetString("payment.short_code"),
			Passkey:     v.GetString("payment.passkey"),
			CallbackURL: v.GetString("payment.callback_url"),
		},
		Tracing: Tracing{
			Enabled:          v.GetBool("tracing.enabled"),
			ExporterEndpoint: v.GetString("tracing.exporter_endpoint"),
			ExporterProtocol: v.GetString("tracing.exporter_protocol"),
			SamplingRatio:    v.GetFloat64("tracing.sampling_ratio"),
		},
		Sweeper: Sweeper{
			PollInterval:       v.GetDuration("sweeper.poll_interval"),
			BatchSize:          v.GetInt("sweeper.batch_size"),
			InvoiceGraceWindow: v.GetDuration("sweeper.invoice_grace_window"),
		},
	}
	return cfg, nil
}
