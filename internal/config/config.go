package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides, e.g. CICI_SERVER_PORT.
const EnvPrefix = "CICI"

type Config struct {
	Server struct {
		Port            int           `yaml:"port" split_words:"true"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout" split_words:"true"`
	} `yaml:"server"`

	Scan struct {
		APIBaseURL string        `yaml:"apiBaseURL" split_words:"true"`
		APIKey     string        `yaml:"apiKey" split_words:"true"`
		Timeout    time.Duration `yaml:"timeout" split_words:"true"`
		Retries    int           `yaml:"retries" split_words:"true"`
	} `yaml:"scan"`

	Quota struct {
		DailyLimit int `yaml:"dailyLimit" split_words:"true"`
	} `yaml:"quota"`

	Cache struct {
		TTL        time.Duration `yaml:"ttl" split_words:"true"`
		MaxEntries int           `yaml:"maxEntries" split_words:"true"`
	} `yaml:"cache"`

	Hover struct {
		Debounce time.Duration `yaml:"debounce" split_words:"true"`
	} `yaml:"hover"`

	// Storage picks the durable settings/quota store.
	Storage struct {
		Driver string `yaml:"driver" split_words:"true"` // memory, sqlite, postgres, mysql
		Path   string `yaml:"path" split_words:"true"`   // sqlite file, empty for the XDG default
		DSN    string `yaml:"dsn" split_words:"true"`    // postgres
	} `yaml:"storage"`

	Database struct {
		Host     string `yaml:"host" split_words:"true"`
		Port     int    `yaml:"port" split_words:"true"`
		User     string `yaml:"user" split_words:"true"`
		Password string `yaml:"password" split_words:"true"`
		Name     string `yaml:"name" split_words:"true"`
	} `yaml:"database"`

	// Archive keeps a copy of each remote scan result when enabled.
	Archive struct {
		Driver     string `yaml:"driver" split_words:"true"` // none, minio, s3
		Endpoint   string `yaml:"endpoint" split_words:"true"`
		AccessKey  string `yaml:"accessKey" split_words:"true"`
		SecretKey  string `yaml:"secretKey" split_words:"true"`
		BucketName string `yaml:"bucketName" split_words:"true"`
		Region     string `yaml:"region" split_words:"true"`
		UseSSL     bool   `yaml:"useSSL" split_words:"true"`
	} `yaml:"archive"`

	Auth struct {
		Token     string `yaml:"token" split_words:"true"`
		JWTSecret string `yaml:"jwtSecret" split_words:"true"`
	} `yaml:"auth"`

	RateLimit struct {
		Enabled           bool    `yaml:"enabled" split_words:"true"`
		RequestsPerSecond float64 `yaml:"requestsPerSecond" split_words:"true"`
		Burst             int     `yaml:"burst" split_words:"true"`
	} `yaml:"rateLimit"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowedOrigins" split_words:"true"`
	} `yaml:"cors"`

	Logging struct {
		Level       string `yaml:"level" split_words:"true"`
		Development bool   `yaml:"development" split_words:"true"`
	} `yaml:"logging"`
}

// Default is the configuration used before the file and environment apply.
func Default() *Config {
	var c Config
	c.Server.Port = 8787
	c.Server.ShutdownTimeout = 5 * time.Second
	c.Scan.APIBaseURL = "http://localhost:8880"
	c.Scan.Timeout = 10 * time.Second
	c.Scan.Retries = 2
	c.Quota.DailyLimit = 5
	c.Cache.TTL = 5 * time.Minute
	c.Cache.MaxEntries = 512
	c.Hover.Debounce = 300 * time.Millisecond
	c.Storage.Driver = "sqlite"
	c.Database.Port = 3306
	c.Archive.Driver = "none"
	c.RateLimit.Enabled = true
	c.RateLimit.RequestsPerSecond = 20
	c.RateLimit.Burst = 40
	c.CORS.AllowedOrigins = []string{"chrome-extension://*"}
	c.Logging.Level = "info"
	return &c
}

// Load baca file config (optional) lalu override dari environment CICI_*.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOptional is Load that treats a missing file as absent.
func LoadOptional(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}
	return Load(path)
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if u, err := url.Parse(c.Scan.APIBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("scan.apiBaseURL %q is not an http(s) URL", c.Scan.APIBaseURL))
	}
	if c.Scan.Timeout <= 0 {
		errs = append(errs, errors.New("scan.timeout must be positive"))
	}
	if c.Scan.Retries < 0 {
		errs = append(errs, errors.New("scan.retries must not be negative"))
	}
	if c.Quota.DailyLimit <= 0 {
		errs = append(errs, errors.New("quota.dailyLimit must be positive"))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache.ttl must be positive"))
	}
	if c.Hover.Debounce <= 0 {
		errs = append(errs, errors.New("hover.debounce must be positive"))
	}
	switch c.Storage.Driver {
	case "memory", "sqlite":
	case "postgres":
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("storage.dsn is required for postgres"))
		}
	case "mysql":
		if c.Database.Host == "" || c.Database.Name == "" {
			errs = append(errs, errors.New("database.host and database.name are required for mysql"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}
	switch c.Archive.Driver {
	case "", "none":
	case "minio", "s3":
		if c.Archive.BucketName == "" {
			errs = append(errs, errors.New("archive.bucketName is required"))
		}
		if c.Archive.Driver == "minio" && c.Archive.Endpoint == "" {
			errs = append(errs, errors.New("archive.endpoint is required for minio"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown archive.driver %q", c.Archive.Driver))
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		errs = append(errs, errors.New("rateLimit needs positive requestsPerSecond and burst"))
	}
	return errors.Join(errs...)
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}
