// Package config resolves the process configuration once at startup and
// carries the shared runtime handles every handler needs.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/charitychain/charitychain-api/ledger"
	"github.com/charitychain/charitychain-api/store"
	"github.com/charitychain/charitychain-api/utils"
)

const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"

	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Port        string   `yaml:"port"`
	MongoURI    string   `yaml:"mongodb_uri"`
	DBName      string   `yaml:"db_name"`
	DBDriver    string   `yaml:"db_driver"`
	JWTSecret   string   `yaml:"jwt_secret"`
	JWTExpire   string   `yaml:"jwt_expire"`
	Env         string   `yaml:"env"`
	CORSOrigins []string `yaml:"cors_origins"`
	LogLevel    string   `yaml:"log_level"`

	// AuthRateLimit is requests per minute per IP on login and password
	// reset. Zero disables the limiter.
	AuthRateLimit int `yaml:"auth_rate_limit"`

	CloudinaryCloudName string `yaml:"cloudinary_cloud_name"`
	CloudinaryAPIKey    string `yaml:"cloudinary_api_key"`
	CloudinaryAPISecret string `yaml:"cloudinary_api_secret"`

	ZeptoAPIURL string `yaml:"zepto_api_url"`
	ZeptoAPIKey string `yaml:"zepto_api_key"`
	EmailFrom   string `yaml:"email_from"`

	AdminEmail    string `yaml:"admin_email"`
	AdminPassword string `yaml:"admin_password"`

	// TokenTTL is JWTExpire parsed.
	TokenTTL time.Duration `yaml:"-"`

	// Runtime handles, set by the serve command.
	MongoClient *mongo.Client       `yaml:"-"`
	Store       store.Store         `yaml:"-"`
	Ledger      *ledger.Ledger      `yaml:"-"`
	Logger      *zap.Logger         `yaml:"-"`
	Mailer      utils.Mailer        `yaml:"-"`
	Uploader    utils.ImageUploader `yaml:"-"`
}

func defaults() *Config {
	return &Config{
		Port:        "5000",
		DBName:      "charitychain",
		DBDriver:    DriverMongo,
		JWTExpire:   "30d",
		Env:         EnvDevelopment,
		CORSOrigins: []string{"http://localhost:5173"},
		LogLevel:    "info",

		AuthRateLimit: 10,
	}
}

// Load reads envFile (".env" when empty, a missing file is fine), then the
// YAML file named by CONFIG_FILE if set, then the process environment. Later
// sources win.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.MongoURI, "MONGODB_URI")
	setString(&c.DBName, "DB_NAME")
	setString(&c.DBDriver, "DB_DRIVER")
	setString(&c.JWTSecret, "JWT_SECRET")
	setString(&c.JWTExpire, "JWT_EXPIRE")
	setString(&c.Env, "NODE_ENV")
	setString(&c.Env, "APP_ENV")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.CloudinaryCloudName, "CLOUDINARY_CLOUD_NAME")
	setString(&c.CloudinaryAPIKey, "CLOUDINARY_API_KEY")
	setString(&c.CloudinaryAPISecret, "CLOUDINARY_API_SECRET")
	setString(&c.ZeptoAPIURL, "ZEPTO_API_URL")
	setString(&c.ZeptoAPIKey, "ZEPTO_API_KEY")
	setString(&c.EmailFrom, "EMAIL_FROM")
	setString(&c.AdminEmail, "ADMIN_EMAIL")
	setString(&c.AdminPassword, "ADMIN_PASSWORD")

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.CORSOrigins = origins
	}

	if v := os.Getenv("AUTH_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("AUTH_RATE_LIMIT: invalid value %q", v)
		}
		c.AuthRateLimit = n
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// Validate checks required values and fills TokenTTL.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.DBDriver {
	case DriverMongo:
		if c.MongoURI == "" {
			return errors.New("MONGODB_URI is required when DB_DRIVER=mongo")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	ttl, err := ParseDuration(c.JWTExpire)
	if err != nil {
		return fmt.Errorf("JWT_EXPIRE: %w", err)
	}
	if ttl <= 0 {
		return errors.New("JWT_EXPIRE must be positive")
	}
	c.TokenTTL = ttl
	return nil
}

func (c *Config) IsDevelopment() bool { return c.Env == EnvDevelopment }

func (c *Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

func (c *Config) MailEnabled() bool {
	return c.ZeptoAPIURL != "" && c.ZeptoAPIKey != "" && c.EmailFrom != ""
}

// ParseDuration accepts anything time.ParseDuration does plus a whole number
// of days such as "30d".
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// NewLogger builds the JSON production logger at the given level. Development
// environments get the console encoder.
func NewLogger(level string, development bool) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("log level %q: %w", level, err)
		}
	}
	zc := zap.NewProductionConfig()
	if development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}
