package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"PORT", "MONGODB_URI", "DB_NAME", "DB_DRIVER", "JWT_SECRET", "JWT_EXPIRE",
	"NODE_ENV", "APP_ENV", "LOG_LEVEL", "CORS_ORIGINS", "CONFIG_FILE",
	"CLOUDINARY_CLOUD_NAME", "CLOUDINARY_API_KEY", "CLOUDINARY_API_SECRET",
	"ZEPTO_API_URL", "ZEPTO_API_KEY", "EMAIL_FROM", "ADMIN_EMAIL", "ADMIN_PASSWORD",
	"AUTH_RATE_LIMIT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")

	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, "charitychain", cfg.DBName)
	assert.Equal(t, DriverMongo, cfg.DBDriver)
	assert.Equal(t, 30*24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSOrigins)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.CloudinaryEnabled())
	assert.False(t, cfg.MailEnabled())
	assert.Equal(t, 10, cfg.AuthRateLimit)
}

func TestLoadRequiresSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_DRIVER", DriverMemory)

	_, err := Load(missingEnvFile(t))
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoadRequiresMongoURI(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")

	_, err := Load(missingEnvFile(t))
	assert.ErrorContains(t, err, "MONGODB_URI")
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	// godotenv does not override variables that are already set, even empty.
	for _, k := range []string{"JWT_SECRET", "DB_DRIVER", "PORT"} {
		require.NoError(t, os.Unsetenv(k))
	}
	t.Cleanup(func() {
		for _, k := range []string{"JWT_SECRET", "DB_DRIVER", "PORT"} {
			_ = os.Unsetenv(k)
		}
	})

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET=fromfile\nDB_DRIVER=memory\nPORT=8081\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "fromfile", cfg.JWTSecret)
	assert.Equal(t, DriverMemory, cfg.DBDriver)
	assert.Equal(t, "8081", cfg.Port)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "7000"
db_driver: memory
jwt_secret: yaml-secret
jwt_expire: 12h
cors_origins:
  - https://charity-chain-xi.vercel.app
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9000")
	t.Setenv("NODE_ENV", EnvProduction)

	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port, "environment wins over file")
	assert.Equal(t, "yaml-secret", cfg.JWTSecret)
	assert.Equal(t, 12*time.Hour, cfg.TokenTTL)
	assert.Equal(t, []string{"https://charity-chain-xi.vercel.app"}, cfg.CORSOrigins)
	assert.False(t, cfg.IsDevelopment())
}

func TestCORSOriginsFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("DB_DRIVER", DriverMemory)
	t.Setenv("CORS_ORIGINS", " http://localhost:5173 , https://charity-chain-xi.vercel.app,")

	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"http://localhost:5173", "https://charity-chain-xi.vercel.app"}, cfg.CORSOrigins)
}

func TestAuthRateLimitFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", DriverMemory)

	t.Setenv("AUTH_RATE_LIMIT", "0")
	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.AuthRateLimit)

	t.Setenv("AUTH_RATE_LIMIT", "lots")
	_, err = Load(missingEnvFile(t))
	assert.ErrorContains(t, err, "AUTH_RATE_LIMIT")
}

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"30d": 30 * 24 * time.Hour,
		"1d":  24 * time.Hour,
		"90m": 90 * time.Minute,
		"2h":  2 * time.Hour,
	}
	for in, want := range cases {
		got, err := ParseDuration(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "xd", "soon"} {
		_, err := ParseDuration(bad)
		assert.Error(t, err, bad)
	}
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	cfg := defaults()
	cfg.JWTSecret = "s"
	cfg.DBDriver = "postgres"
	assert.ErrorContains(t, cfg.Validate(), "DB_DRIVER")
}

func TestNewLogger(t *testing.T) {
	log, err := NewLogger("debug", false)
	require.NoError(t, err)
	assert.NotNil(t, log)

	_, err = NewLogger("loud", false)
	assert.Error(t, err)
}
