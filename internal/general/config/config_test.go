package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
database:
  host: db
  user: ridebooking
  password: from-file
  database: ridebooking
rabbitmq:
  user: guest
  password: guest
phone_auth:
  min_interval: 90s
  default_country: "+47"
tracking:
  slow_interval: 45s
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	old := DotEnvPath
	DotEnvPath = filepath.Join(dir, ".env")
	t.Cleanup(func() { DotEnvPath = old })
	return path
}

func TestLoadFromFileAppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "db", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 3000, cfg.Services.AuthServicePort)
	assert.Equal(t, 3001, cfg.Services.TrackingServicePort)
	assert.Equal(t, 3004, cfg.Services.AdminServicePort)
	assert.NotEmpty(t, cfg.JWT.SecretKey)
	assert.Equal(t, 2*time.Hour, cfg.JWT.AccessTTL)

	assert.Equal(t, 90*time.Second, cfg.PhoneAuth.MinInterval)
	assert.Equal(t, 5*time.Minute, cfg.PhoneAuth.Window)
	assert.Equal(t, "+47", cfg.PhoneAuth.DefaultCountry)
	assert.Equal(t, 3, cfg.PhoneAuth.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.PhoneAuth.RetryBackoff)
	assert.Equal(t, 34*time.Second, cfg.PhoneAuth.RetryBudget())
	assert.Equal(t, 39*time.Second, cfg.PhoneAuth.CallTimeout)
	assert.Equal(t, 44*time.Second, cfg.PhoneAuth.WriteTimeout())

	assert.Equal(t, 10*time.Second, cfg.Tracking.UpdateInterval)
	assert.Equal(t, 5*time.Second, cfg.Tracking.FastInterval)
	assert.Equal(t, 45*time.Second, cfg.Tracking.SlowInterval)
	assert.Equal(t, 50.0, cfg.Tracking.SignificantDistanceM)
	assert.Equal(t, 100.0, cfg.Tracking.ArrivalRadiusM)
	assert.Equal(t, 5, cfg.Tracking.MaxConsecutiveErrors)
}

func TestEnvironmentOverridesSecrets(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	t.Setenv("DB_PASSWORD", "from-env")
	t.Setenv("PHONE_AUTH_API_KEY", "key-123")
	t.Setenv("RABBITMQ_PORT", "5673")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Database.Password)
	assert.Equal(t, "key-123", cfg.PhoneAuth.APIKey)
	assert.Equal(t, 5673, cfg.RabbitMQ.Port)
}

func TestEnvironmentOverridesTimeouts(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	t.Setenv("PHONE_AUTH_REQUEST_TIMEOUT", "4s")
	t.Setenv("PHONE_AUTH_CALL_TIMEOUT", "1m")
	t.Setenv("MAPS_TIMEOUT", "not-a-duration")
	t.Setenv("DB_PORT", "abc")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4*time.Second, cfg.PhoneAuth.RequestTimeout)
	assert.Equal(t, time.Minute, cfg.PhoneAuth.CallTimeout)
	assert.Equal(t, 5*time.Second, cfg.Maps.Timeout)
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestDotEnvFileIsRead(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	require.NoError(t, os.WriteFile(DotEnvPath, []byte("MAPS_API_KEY=maps-from-dotenv\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("MAPS_API_KEY") })

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "maps-from-dotenv", cfg.Maps.APIKey)
}

func TestValidateCollectsProblems(t *testing.T) {
	_, err := LoadFromFile(writeConfig(t, `
database:
  port: 70000
phone_auth:
  default_country: "46"
  min_interval: 10m
`))
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "database.port must be in 1..65535")
	assert.Contains(t, msg, "database.user is required")
	assert.Contains(t, msg, "rabbitmq.user is required")
	assert.Contains(t, msg, "phone_auth.default_country must start with '+'")
	assert.Contains(t, msg, "phone_auth.window must not be shorter")
}

func TestCallTimeoutMustCoverRetryBudget(t *testing.T) {
	const base = `
database:
  user: ridebooking
  password: secret
  database: ridebooking
rabbitmq:
  user: guest
  password: guest
phone_auth:
  max_attempts: 4
  request_timeout: 10s
  retry_backoff: 3s
`
	_, err := LoadFromFile(writeConfig(t, base+"  call_timeout: 30s\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "phone_auth.call_timeout (30s) must cover")
	assert.Contains(t, err.Error(), "(49s)")

	cfg, err := LoadFromFile(writeConfig(t, base+"  call_timeout: 50s\n"))
	require.NoError(t, err)
	assert.Equal(t, 50*time.Second, cfg.PhoneAuth.CallTimeout)
	assert.Equal(t, 55*time.Second, cfg.PhoneAuth.WriteTimeout())

	cfg, err = LoadFromFile(writeConfig(t, base))
	require.NoError(t, err)
	assert.Equal(t, 54*time.Second, cfg.PhoneAuth.CallTimeout)
}

func TestMissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open config file")
}
