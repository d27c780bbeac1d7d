package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config models crewline.yml (or crewline.toml).
type Config struct {
	Server struct {
		Addr     string `yaml:"addr" toml:"addr"`
		BasePath string `yaml:"base_path" toml:"base_path"`
	} `yaml:"server" toml:"server"`
	Database struct {
		Workspace string `yaml:"workspace" toml:"workspace"`
	} `yaml:"database" toml:"database"`
	Auth struct {
		JWTSecret              string `yaml:"jwt_secret" toml:"jwt_secret"`
		AllowLegacyActorHeader bool   `yaml:"allow_legacy_actor_header" toml:"allow_legacy_actor_header"`
		// DevLogin exposes an unauthenticated token minting route for local use.
		DevLogin bool `yaml:"dev_login" toml:"dev_login"`
	} `yaml:"auth" toml:"auth"`
	Generator     GeneratorConfig     `yaml:"generator" toml:"generator"`
	Notifications NotificationsConfig `yaml:"notifications" toml:"notifications"`
	Logging       struct {
		Level  string `yaml:"level" toml:"level"`
		Format string `yaml:"format" toml:"format"`
	} `yaml:"logging" toml:"logging"`
}

type GeneratorConfig struct {
	Provider  string `yaml:"provider" toml:"provider"`
	Model     string `yaml:"model" toml:"model"`
	APIKey    string `yaml:"api_key" toml:"api_key"`
	MaxTokens int64  `yaml:"max_tokens" toml:"max_tokens"`
	Timeout   string `yaml:"timeout" toml:"timeout"`
}

// TimeoutDuration parses Timeout, falling back to the default on empty input.
func (g GeneratorConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(g.Timeout)
	if err != nil || d <= 0 {
		return DefaultGeneratorTimeout
	}
	return d
}

type NotificationsConfig struct {
	Log      bool            `yaml:"log" toml:"log"`
	Webhooks []WebhookConfig `yaml:"webhooks" toml:"webhooks"`
	Realtime struct {
		Enabled bool   `yaml:"enabled" toml:"enabled"`
		Path    string `yaml:"path" toml:"path"`
	} `yaml:"realtime" toml:"realtime"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url" toml:"url"`
	Secret         string   `yaml:"secret" toml:"secret"`
	Events         []string `yaml:"events" toml:"events"`
	Enabled        *bool    `yaml:"enabled" toml:"enabled"`
	TimeoutSeconds int      `yaml:"timeout_seconds" toml:"timeout_seconds"`
}

const DefaultGeneratorTimeout = 90 * time.Second

var knownProviders = map[string]bool{"none": true, "anthropic": true}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	if !knownProviders[c.Generator.Provider] {
		return fmt.Errorf("config.generator.provider must be one of none, anthropic (got %q)", c.Generator.Provider)
	}
	if c.Generator.Timeout != "" {
		if _, err := time.ParseDuration(c.Generator.Timeout); err != nil {
			return fmt.Errorf("config.generator.timeout: %w", err)
		}
	}
	if c.Generator.MaxTokens < 0 {
		return fmt.Errorf("config.generator.max_tokens must be positive")
	}
	for i, hook := range c.Notifications.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("config.notifications.webhooks[%d].url is required", i)
		}
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("config.logging.format must be text or json")
	}
	return nil
}

// Path returns the default config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "crewline.yml")
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Load reads a config file, choosing the decoder by extension. A missing
// file at the default path yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; write one with crewline config init", path)
		}
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FromTOML(data)
	}
	return FromYAML(data)
}

// LoadOptional returns Default() if the file does not exist.
func LoadOptional(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// FromYAML parses and validates config from raw YAML bytes layered over the defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromTOML parses and validates config from raw TOML bytes layered over the defaults.
func FromTOML(data []byte) (*Config, error) {
	cfg := Default()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("invalid config toml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: /v1

database:
  workspace: .

auth:
  jwt_secret: ""
  allow_legacy_actor_header: false
  dev_login: false

generator:
  provider: none
  model: claude-sonnet-4-5
  max_tokens: 8192
  timeout: 90s

notifications:
  log: true
  webhooks: []
  realtime:
    enabled: false
    path: /socket.io/

logging:
  level: info
  format: text
`
