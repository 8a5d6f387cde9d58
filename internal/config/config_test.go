package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setBase(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("POSTGRES_CONN", "postgres://localhost/tendering")
	t.Setenv("MONGO_URI", "")
	t.Setenv("TOKEN_TTL", "")
	t.Setenv("LOCKOUT_THRESHOLD", "")
	t.Setenv("LOCKOUT_DURATION", "")
	t.Setenv("CLOSER_INTERVAL", "")
	t.Setenv("LOG_PRETTY", "")
	t.Setenv("CORS_ORIGINS", "")
	t.Setenv("ADMIN_EMAIL", "")
	t.Setenv("ADMIN_PASSWORD", "")
}

func TestLoadDefaults(t *testing.T) {
	setBase(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DriverPostgres, cfg.Storage.Driver)
	require.Equal(t, 3, cfg.Auth.LockoutThreshold)
	require.Equal(t, 15*time.Minute, cfg.Auth.LockoutDuration)
	require.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	require.Equal(t, time.Minute, cfg.Jobs.CloserInterval)
	require.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
}

func TestLoadOverrides(t *testing.T) {
	setBase(t)
	t.Setenv("STORAGE_DRIVER", "mongo")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("LOCKOUT_THRESHOLD", "5")
	t.Setenv("LOCKOUT_DURATION", "1h")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DriverMongo, cfg.Storage.Driver)
	require.Equal(t, 5, cfg.Auth.LockoutThreshold)
	require.Equal(t, time.Hour, cfg.Auth.LockoutDuration)
	require.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSOrigins)
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret":    {"JWT_SECRET": ""},
		"unknown driver":    {"STORAGE_DRIVER": "redis"},
		"mongo without uri": {"STORAGE_DRIVER": "mongo"},
		"bad threshold":     {"LOCKOUT_THRESHOLD": "zero"},
		"zero threshold":    {"LOCKOUT_THRESHOLD": "0"},
		"bad duration":      {"LOCKOUT_DURATION": "soon"},
		"half admin config": {"ADMIN_EMAIL": "admin@city.test"},
		"negative interval": {"CLOSER_INTERVAL": "-1s"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			setBase(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}
