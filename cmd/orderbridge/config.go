package main

import (
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/Renal37/orderbridge/internal/services"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// MerchantConfig is the marketplace integration of the single merchant this process serves.
// ClientSecret is always stored encrypted with the vault key.
type MerchantConfig struct {
	BaseURL                string  `yaml:"base_url"`
	MerchantID             string  `yaml:"merchant_id"`
	ClientID               string  `yaml:"client_id"`
	ClientSecret           string  `yaml:"client_secret"`
	PollingIntervalSeconds int     `yaml:"polling_interval_seconds"`
	Active                 bool    `yaml:"active"`
	AutoConfirm            bool    `yaml:"auto_confirm"`
	WebhookSecret          string  `yaml:"webhook_secret"`
	RequestsPerSecond      float64 `yaml:"requests_per_second"`
}

func (m MerchantConfig) PollingInterval() time.Duration {
	if m.PollingIntervalSeconds <= 0 {
		return services.DefaultPollingInterval
	}
	return time.Duration(m.PollingIntervalSeconds) * time.Second
}

type Config struct {
	endpoint      string
	dsn           string
	logLevel      string
	env           string
	authSecretKey string

	encryptionKey  string
	encryptionSalt string
	// encryptSecret включает режим утилиты: зашифровать строку и выйти.
	encryptSecret string

	merchant MerchantConfig
}

func generateRandomString(length int) string {
	b := make([]byte, length)
	_, err := rand.Read(b)
	if err != nil {
		panic(err)
	}
	return base64.StdEncoding.EncodeToString(b)
}

func NewConfig() Config {
	config, err := parseConfig(os.Args[1:], os.Getenv)
	if err != nil {
		log.Fatalf("Configuration wasn't loaded due to %s", err)
	}
	return config
}

// parseConfig читает флаги, затем переменные окружения, которые имеют приоритет.
func parseConfig(args []string, getenv func(string) string) (Config, error) {
	var (
		config       Config
		merchantPath string
	)

	fs := flag.NewFlagSet("orderbridge", flag.ContinueOnError)
	fs.StringVar(&config.endpoint, "a", "localhost:8090", "address and port to run server")
	fs.StringVar(&config.dsn, "d", "", "data source name for database connection")
	fs.StringVar(&merchantPath, "c", "", "path to the merchant YAML config")
	fs.StringVar(&config.encryptSecret, "encrypt-secret", "", "encrypt a client secret with ENCRYPTION_KEY, print it and exit")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if address := getenv("RUN_ADDRESS"); address != "" {
		config.endpoint = address
	}

	if d := getenv("DATABASE_URI"); d != "" {
		config.dsn = d
	}

	config.logLevel = "error"
	if l := getenv("LOG_LEVEL"); l != "" {
		config.logLevel = l
	}

	config.env = "production"
	if e := getenv("ENV"); e != "" {
		config.env = e
	}

	config.encryptionKey = getenv("ENCRYPTION_KEY")
	config.encryptionSalt = getenv("ENCRYPTION_SALT")

	if secret := getenv("AUTH_SECRET_KEY"); secret != "" {
		config.authSecretKey = secret
	} else if config.env == "production" {
		config.authSecretKey = generateRandomString(10)
		log.Printf("WARNING: AUTH_SECRET_KEY has to be defined for production environment\n")
	} else {
		config.authSecretKey = "development-key"
	}

	if path := getenv("MERCHANT_CONFIG"); path != "" {
		merchantPath = path
	}

	if merchantPath != "" {
		merchant, err := loadMerchantConfig(merchantPath)
		if err != nil {
			return Config{}, err
		}
		config.merchant = merchant
	}

	if err := applyMerchantEnv(&config.merchant, getenv); err != nil {
		return Config{}, err
	}

	return config, nil
}

func loadMerchantConfig(path string) (MerchantConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return MerchantConfig{}, fmt.Errorf("failed to read merchant config: %w", err)
	}

	var merchant MerchantConfig
	if err := yaml.Unmarshal(data, &merchant); err != nil {
		return MerchantConfig{}, fmt.Errorf("failed to parse merchant config %s: %w", path, err)
	}

	return merchant, nil
}

func applyMerchantEnv(merchant *MerchantConfig, getenv func(string) string) error {
	fields := map[string]*string{
		"MARKETPLACE_BASE_URL": &merchant.BaseURL,
		"MERCHANT_ID":          &merchant.MerchantID,
		"CLIENT_ID":            &merchant.ClientID,
		"CLIENT_SECRET":        &merchant.ClientSecret,
		"WEBHOOK_SECRET":       &merchant.WebhookSecret,
	}
	for name, field := range fields {
		if value := getenv(name); value != "" {
			*field = value
		}
	}

	var errs error

	if value := getenv("POLLING_INTERVAL"); value != "" {
		seconds, err := strconv.Atoi(value)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("POLLING_INTERVAL: %w", err))
		}
		merchant.PollingIntervalSeconds = seconds
	}

	if value := getenv("POLLING_ACTIVE"); value != "" {
		active, err := strconv.ParseBool(value)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("POLLING_ACTIVE: %w", err))
		}
		merchant.Active = active
	}

	if value := getenv("AUTO_CONFIRM"); value != "" {
		autoConfirm, err := strconv.ParseBool(value)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("AUTO_CONFIRM: %w", err))
		}
		merchant.AutoConfirm = autoConfirm
	}

	if value := getenv("MARKETPLACE_RPS"); value != "" {
		rps, err := strconv.ParseFloat(value, 64)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("MARKETPLACE_RPS: %w", err))
		}
		merchant.RequestsPerSecond = rps
	}

	return errs
}
