package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	PublicBaseURL      string `validate:"required,url"`
	CORSAllowedOrigins []string

	// merchant account; the gateway boots with empty credentials and
	// refuses provider calls until they are set
	SkrillMerchantEmail string `validate:"omitempty,email"`
	SkrillSecretWord    string
	SkrillAPIPassword   string
	SkrillFlow          string `validate:"oneof=redirect inline"`
	SkrillTimeout       time.Duration

	StoreName          string
	PlatformVersion    string
	PendingCheckoutTTL time.Duration

	// host commerce platform API the gateway calls back into
	HostAPIURL     string `validate:"required,url"`
	HostAPIToken   string
	HostAPITimeout time.Duration

	ExchangeBaseCurrency string
	ExchangeRates        map[string]float64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:           k.String("REDIS_URL"),
		PublicBaseURL:      strings.TrimRight(strings.TrimSpace(k.String("PUBLIC_BASE_URL")), "/"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		SkrillMerchantEmail: strings.TrimSpace(k.String("SKRILL_MERCHANT_EMAIL")),
		SkrillSecretWord:    k.String("SKRILL_SECRET_WORD"),
		SkrillAPIPassword:   k.String("SKRILL_API_PASSWORD"),
		SkrillFlow:          valueOrDefault(strings.ToLower(k.String("SKRILL_FLOW")), "redirect"),
		SkrillTimeout:       parseDuration(k.String("SKRILL_TIMEOUT"), "10s"),

		StoreName:          valueOrDefault(k.String("STORE_NAME"), "Store"),
		PlatformVersion:    valueOrDefault(k.String("PLATFORM_VERSION"), "1.0.0"),
		PendingCheckoutTTL: parseDuration(k.String("PENDING_CHECKOUT_TTL"), "1h"),

		HostAPIURL:     strings.TrimRight(strings.TrimSpace(k.String("HOST_API_URL")), "/"),
		HostAPIToken:   k.String("HOST_API_TOKEN"),
		HostAPITimeout: parseDuration(k.String("HOST_API_TIMEOUT"), "5s"),

		ExchangeBaseCurrency: strings.ToUpper(valueOrDefault(k.String("EXCHANGE_BASE_CURRENCY"), "EUR")),
		ExchangeRates:        parseRates(k.String("EXCHANGE_RATES")),
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.PublicBaseURL == "" {
		return nil, errors.New("PUBLIC_BASE_URL is required")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// CredentialsConfigured reports whether the merchant account settings are
// complete enough to talk to the provider.
func (c *Config) CredentialsConfigured() bool {
	return c.SkrillMerchantEmail != "" && c.SkrillSecretWord != ""
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseRates reads "USD=1.25,GBP=0.85" style rate tables.
func parseRates(value string) map[string]float64 {
	rates := map[string]float64{}
	for _, pair := range splitAndTrim(value) {
		currency, rate, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(rate), 64)
		if err != nil || parsed <= 0 {
			continue
		}
		rates[strings.ToUpper(strings.TrimSpace(currency))] = parsed
	}
	return rates
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}
