package config

import (
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
)

// Prefix is prepended to every environment variable below.
const Prefix = "JOBLEDGER_"

// Runtime backends.
const (
	RuntimeDocker = "docker"
	RuntimeCLI    = "cli"
	RuntimeNomad  = "nomad"
)

type Config struct {
	Port     int    `env:"PORT" envDefault:"8800"`
	BindAddr string `env:"BIND_ADDR" envDefault:"127.0.0.1"`
	JobsFile string `env:"JOBS_FILE"` // empty means the built-in table

	Runtime        string        `env:"RUNTIME" envDefault:"docker"`
	DockerHosts    []string      `env:"DOCKER_HOSTS" envSeparator:"," envDefault:"tcp://127.0.0.1:2375,env"`
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" envDefault:"3s"`
	RunTimeout     time.Duration `env:"RUN_TIMEOUT" envDefault:"60s"`
	RunMemory      string        `env:"RUN_MEMORY" envDefault:"512m"`
	RunNetwork     string        `env:"RUN_NETWORK" envDefault:"none"`
	MaxConcurrent  int           `env:"MAX_CONCURRENT_RUNS" envDefault:"8"`
	RunRate        float64       `env:"RUN_RATE"` // requests/sec on /run, 0 disables
	RunBurst       int           `env:"RUN_BURST" envDefault:"10"`

	DatabaseURL string `env:"DATABASE_URL"`

	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`
	S3Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Bucket    string `env:"S3_BUCKET" envDefault:"jobledger-outputs"`
	S3UseSSL    bool   `env:"S3_USE_SSL" envDefault:"true"`

	NomadAddr       string `env:"NOMAD_ADDR" envDefault:"http://localhost:4646"`
	NomadDatacenter string `env:"NOMAD_DATACENTER" envDefault:"dc1"`

	ConsulAddr  string `env:"CONSUL_ADDR"` // empty disables registration
	ServiceName string `env:"SERVICE_NAME" envDefault:"jobledger"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	LogJSON        bool     `env:"LOG_JSON" envDefault:"false"`
	LegacyRoutes   bool     `env:"LEGACY_ROUTES" envDefault:"true"`
	RecentErrors   int      `env:"RECENT_ERRORS" envDefault:"3"`
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, errors.Wrap(err, "load .env file")
		}
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: Prefix}); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	cfg.Sanitize()
	return &cfg, nil
}

// Sanitize applies guardrails to values loaded from the environment.
func (c *Config) Sanitize() {
	if c.Port <= 0 || c.Port > 65535 {
		c.Port = 8800
	}
	c.Runtime = strings.ToLower(strings.TrimSpace(c.Runtime))
	switch c.Runtime {
	case RuntimeDocker, RuntimeCLI, RuntimeNomad:
	default:
		c.Runtime = RuntimeDocker
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 3 * time.Second
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = 60 * time.Second
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 8
	}
	if c.RunRate < 0 {
		c.RunRate = 0
	}
	if c.RunBurst <= 0 {
		c.RunBurst = 1
	}
	if c.RecentErrors <= 0 {
		c.RecentErrors = 3
	}

	var origins []string
	for _, o := range c.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.AllowedOrigins = origins
}
