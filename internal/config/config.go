// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration lets yaml carry values like "30m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`

	Directory struct {
		URL string `yaml:"url"`
	} `yaml:"directory"`

	Store struct {
		// SharedName is the deterministic identifier of the shared-RLS store.
		SharedName string `yaml:"shared_name"`
		// SharedURL is the DSN of the shared store pool.
		SharedURL string `yaml:"shared_url"`
		// IsolatedDSNTemplate expands a store locator into a DSN, e.g.
		// "postgres://app:%s@db.internal:5432/%s?sslmode=require".
		IsolatedDSNTemplate string `yaml:"isolated_dsn_template"`
	} `yaml:"store"`

	RabbitMQ struct {
		URL string `yaml:"url"`
	} `yaml:"rabbitmq"`

	DNS struct {
		// WebhookURL is the external subdomain-activation endpoint. Empty
		// means no automation; the wildcard domain is assumed to cover new
		// tenants.
		WebhookURL string `yaml:"webhook_url"`
	} `yaml:"dns"`

	Resolver struct {
		AppDomain      string   `yaml:"app_domain"`
		PreviewDomains []string `yaml:"preview_domains"`
		DevTenantKey   string   `yaml:"dev_tenant_key"`
	} `yaml:"resolver"`

	Cache struct {
		MaxIdle      Duration `yaml:"max_idle"`
		ReapInterval Duration `yaml:"reap_interval"`
	} `yaml:"cache"`

	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
}

func LoadConfig(path string) (*Config, error) {
	// .env is optional; real deployments inject env vars directly.
	_ = godotenv.Load()

	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Secrets and endpoints may be overridden from the environment so the
	// yaml file never has to carry credentials.
	if v := os.Getenv("DIRECTORY_URL"); v != "" {
		cfg.Directory.URL = v
	}
	if v := os.Getenv("SHARED_STORE_URL"); v != "" {
		cfg.Store.SharedURL = v
	}
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		cfg.RabbitMQ.URL = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Store.SharedName == "" {
		c.Store.SharedName = "clinica_shared"
	}
	if c.Resolver.DevTenantKey == "" {
		c.Resolver.DevTenantKey = "desenvolvimento"
	}
	if c.Cache.MaxIdle == 0 {
		c.Cache.MaxIdle = Duration(30 * time.Minute)
	}
	if c.Cache.ReapInterval == 0 {
		c.Cache.ReapInterval = Duration(5 * time.Minute)
	}
}
