package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Services  ServicesConfig  `yaml:"services"`
	JWT       JWTConfig       `yaml:"jwt"`
	PhoneAuth PhoneAuthConfig `yaml:"phone_auth"`
	Recaptcha RecaptchaConfig `yaml:"recaptcha"`
	Maps      MapsConfig      `yaml:"maps"`
	Tracking  TrackingConfig  `yaml:"tracking"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"database"`
}

type RabbitMQConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type ServicesConfig struct {
	AuthServicePort     int `yaml:"auth_service"`
	TrackingServicePort int `yaml:"tracking_service"`
	AdminServicePort    int `yaml:"admin_service"`
}

type JWTConfig struct {
	SecretKey string        `yaml:"secret_key"`
	AccessTTL time.Duration `yaml:"access_ttl"`
}

// PhoneAuthConfig drives the OTP session manager and the identity provider client.
type PhoneAuthConfig struct {
	APIKey         string        `yaml:"api_key"`
	BaseURL        string        `yaml:"base_url"`
	DefaultCountry string        `yaml:"default_country"`
	MinInterval    time.Duration `yaml:"min_interval"`
	Window         time.Duration `yaml:"window"`
	MaxAttempts    int           `yaml:"max_attempts"`
	RetryBackoff   time.Duration `yaml:"retry_backoff"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// CallTimeout bounds one send/resend/verify HTTP call; it must cover RetryBudget.
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// callHeadroom is added on top of the retry budget for local work around provider calls.
const callHeadroom = 5 * time.Second

// RetryBudget is the worst case a send spends on the provider: every attempt runs to
// RequestTimeout with RetryBackoff between attempts.
func (p PhoneAuthConfig) RetryBudget() time.Duration {
	if p.MaxAttempts < 1 {
		return p.RequestTimeout
	}
	n := time.Duration(p.MaxAttempts)
	return n*p.RequestTimeout + (n-1)*p.RetryBackoff
}

// WriteTimeout is the server write deadline the auth listener needs so a phone call that
// uses its full CallTimeout can still write its response.
func (p PhoneAuthConfig) WriteTimeout() time.Duration {
	return p.CallTimeout + callHeadroom
}

type RecaptchaConfig struct {
	SecretKey string        `yaml:"secret_key"`
	VerifyURL string        `yaml:"verify_url"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type MapsConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// TrackingConfig holds the cadence controller tunables.
type TrackingConfig struct {
	UpdateInterval       time.Duration `yaml:"update_interval"`
	FastInterval         time.Duration `yaml:"fast_interval"`
	SlowInterval         time.Duration `yaml:"slow_interval"`
	SignificantDistanceM float64       `yaml:"significant_distance_m"`
	ArrivalRadiusM       float64       `yaml:"arrival_radius_m"`
	MaxConsecutiveErrors int           `yaml:"max_consecutive_errors"`
}

// LoadFromFile loads config from a YAML file to a Config struct, overlays secrets from
// the environment (and an optional .env file), applies defaults, and validates required fields.
func LoadFromFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := loadDotEnv(); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets safe defaults for some fields.
func applyDefaults(cfg *Config) {
	// Database
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}

	// RabbitMQ
	if cfg.RabbitMQ.Host == "" {
		cfg.RabbitMQ.Host = "localhost"
	}
	if cfg.RabbitMQ.Port == 0 {
		cfg.RabbitMQ.Port = 5672
	}

	// Services
	if cfg.Services.AuthServicePort == 0 {
		cfg.Services.AuthServicePort = 3000
	}
	if cfg.Services.TrackingServicePort == 0 {
		cfg.Services.TrackingServicePort = 3001
	}
	if cfg.Services.AdminServicePort == 0 {
		cfg.Services.AdminServicePort = 3004
	}

	// JWT
	if cfg.JWT.SecretKey == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			// fallback: time-based bytes
			key = []byte(fmt.Sprintf("%d", time.Now().UnixNano()))
		}
		cfg.JWT.SecretKey = base64.StdEncoding.EncodeToString(key)
	}
	if cfg.JWT.AccessTTL == 0 {
		cfg.JWT.AccessTTL = 2 * time.Hour
	}

	// Phone auth
	pa := &cfg.PhoneAuth
	if pa.BaseURL == "" {
		pa.BaseURL = "https://identitytoolkit.googleapis.com/v1"
	}
	if pa.DefaultCountry == "" {
		pa.DefaultCountry = "+46"
	}
	if pa.MinInterval == 0 {
		pa.MinInterval = 60 * time.Second
	}
	if pa.Window == 0 {
		pa.Window = 5 * time.Minute
	}
	if pa.MaxAttempts == 0 {
		pa.MaxAttempts = 3
	}
	if pa.RetryBackoff == 0 {
		pa.RetryBackoff = 2 * time.Second
	}
	if pa.SessionTTL == 0 {
		pa.SessionTTL = 15 * time.Minute
	}
	if pa.RequestTimeout == 0 {
		pa.RequestTimeout = 10 * time.Second
	}
	if pa.CallTimeout == 0 {
		pa.CallTimeout = pa.RetryBudget() + callHeadroom
	}

	// reCAPTCHA
	if cfg.Recaptcha.VerifyURL == "" {
		cfg.Recaptcha.VerifyURL = "https://www.google.com/recaptcha/api/siteverify"
	}
	if cfg.Recaptcha.TokenTTL == 0 {
		cfg.Recaptcha.TokenTTL = 2 * time.Minute
	}

	// Maps
	if cfg.Maps.BaseURL == "" {
		cfg.Maps.BaseURL = "https://maps.googleapis.com"
	}
	if cfg.Maps.Timeout == 0 {
		cfg.Maps.Timeout = 5 * time.Second
	}

	// Tracking
	tr := &cfg.Tracking
	if tr.UpdateInterval == 0 {
		tr.UpdateInterval = 10 * time.Second
	}
	if tr.FastInterval == 0 {
		tr.FastInterval = 5 * time.Second
	}
	if tr.SlowInterval == 0 {
		tr.SlowInterval = 30 * time.Second
	}
	if tr.SignificantDistanceM == 0 {
		tr.SignificantDistanceM = 50
	}
	if tr.ArrivalRadiusM == 0 {
		tr.ArrivalRadiusM = 100
	}
	if tr.MaxConsecutiveErrors == 0 {
		tr.MaxConsecutiveErrors = 5
	}
}

// validate checks required fields and basic ranges.
func (c *Config) validate() error {
	var problems []string

	// DB
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		problems = append(problems, "database.port must be in 1..65535")
	}
	if c.Database.User == "" {
		problems = append(problems, "database.user is required")
	}
	if c.Database.Password == "" {
		problems = append(problems, "database.password is required")
	}
	if c.Database.Name == "" {
		problems = append(problems, "database.database is required")
	}

	// RabbitMQ
	if c.RabbitMQ.Port <= 0 || c.RabbitMQ.Port > 65535 {
		problems = append(problems, "rabbitmq.port must be in 1..65535")
	}
	if c.RabbitMQ.User == "" {
		problems = append(problems, "rabbitmq.user is required")
	}
	if c.RabbitMQ.Password == "" {
		problems = append(problems, "rabbitmq.password is required")
	}

	// Services
	for name, port := range map[string]int{
		"services.auth_service":     c.Services.AuthServicePort,
		"services.tracking_service": c.Services.TrackingServicePort,
		"services.admin_service":    c.Services.AdminServicePort,
	} {
		if port <= 0 || port > 65535 {
			problems = append(problems, name+" must be in 1..65535")
		}
	}

	// Phone auth
	if !strings.HasPrefix(c.PhoneAuth.DefaultCountry, "+") {
		problems = append(problems, "phone_auth.default_country must start with '+'")
	}
	if c.PhoneAuth.MaxAttempts < 1 {
		problems = append(problems, "phone_auth.max_attempts must be >= 1")
	}
	if c.PhoneAuth.Window < c.PhoneAuth.MinInterval {
		problems = append(problems, "phone_auth.window must not be shorter than phone_auth.min_interval")
	}
	if budget := c.PhoneAuth.RetryBudget(); c.PhoneAuth.CallTimeout < budget {
		problems = append(problems, fmt.Sprintf(
			"phone_auth.call_timeout (%s) must cover max_attempts*request_timeout + (max_attempts-1)*retry_backoff (%s)",
			c.PhoneAuth.CallTimeout, budget))
	}

	// Tracking
	if c.Tracking.FastInterval > c.Tracking.SlowInterval {
		problems = append(problems, "tracking.fast_interval must not exceed tracking.slow_interval")
	}
	if c.Tracking.MaxConsecutiveErrors < 1 {
		problems = append(problems, "tracking.max_consecutive_errors must be >= 1")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
