package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DotEnvPath is read on startup when present; variables already set in the process win.
var DotEnvPath = ".env"

// envNames maps config keys to the deployment variable names that override them. Keys not
// listed here still pick up their automatic name, e.g. PHONE_AUTH_CALL_TIMEOUT.
var envNames = map[string]string{
	"database.host":     "DB_HOST",
	"database.port":     "DB_PORT",
	"database.user":     "DB_USER",
	"database.password": "DB_PASSWORD",
	"database.database": "DB_NAME",

	"rabbitmq.host":     "RABBITMQ_HOST",
	"rabbitmq.port":     "RABBITMQ_PORT",
	"rabbitmq.user":     "RABBITMQ_USER",
	"rabbitmq.password": "RABBITMQ_PASSWORD",

	"jwt.secret_key":       "JWT_SECRET_KEY",
	"phone_auth.api_key":   "PHONE_AUTH_API_KEY",
	"recaptcha.secret_key": "RECAPTCHA_SECRET_KEY",
	"maps.api_key":         "MAPS_API_KEY",
}

func loadDotEnv() error {
	err := godotenv.Load(DotEnvPath)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// newEnv returns a viper instance that only reads the process environment.
func newEnv() (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, name := range envNames {
		if err := v.BindEnv(key, name); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// applyEnv overlays secrets and deployment-specific values from the environment.
func applyEnv(cfg *Config) error {
	v, err := newEnv()
	if err != nil {
		return err
	}

	setString(v, &cfg.Database.Host, "database.host")
	setInt(v, &cfg.Database.Port, "database.port")
	setString(v, &cfg.Database.User, "database.user")
	setString(v, &cfg.Database.Password, "database.password")
	setString(v, &cfg.Database.Name, "database.database")

	setString(v, &cfg.RabbitMQ.Host, "rabbitmq.host")
	setInt(v, &cfg.RabbitMQ.Port, "rabbitmq.port")
	setString(v, &cfg.RabbitMQ.User, "rabbitmq.user")
	setString(v, &cfg.RabbitMQ.Password, "rabbitmq.password")

	setString(v, &cfg.JWT.SecretKey, "jwt.secret_key")
	setString(v, &cfg.PhoneAuth.APIKey, "phone_auth.api_key")
	setString(v, &cfg.Recaptcha.SecretKey, "recaptcha.secret_key")
	setString(v, &cfg.Maps.APIKey, "maps.api_key")

	// operational knobs, automatic names only
	setDuration(v, &cfg.PhoneAuth.RequestTimeout, "phone_auth.request_timeout")
	setDuration(v, &cfg.PhoneAuth.CallTimeout, "phone_auth.call_timeout")
	setDuration(v, &cfg.Maps.Timeout, "maps.timeout")
	return nil
}

func setString(v *viper.Viper, dst *string, key string) {
	if s := strings.TrimSpace(v.GetString(key)); s != "" {
		*dst = s
	}
}

func setInt(v *viper.Viper, dst *int, key string) {
	if !v.IsSet(key) {
		return
	}
	if n := v.GetInt(key); n != 0 {
		*dst = n
	}
}

func setDuration(v *viper.Viper, dst *time.Duration, key string) {
	if !v.IsSet(key) {
		return
	}
	if d := v.GetDuration(key); d > 0 {
		*dst = d
	}
}
