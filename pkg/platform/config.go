// Package platform wires configuration, stores and the HTTP server into a
// runnable session authority.
package platform

import (
	"encoding/base64"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend selects a storage implementation.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Config holds the complete authority configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Token    TokenConfig    `yaml:"token"`
	Session  SessionConfig  `yaml:"session"`
	Policy   PolicyConfig   `yaml:"policy"`
	Database DatabaseConfig `yaml:"database"`
	Audit    AuditConfig    `yaml:"audit"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	TLS             TLSConfig     `yaml:"tls"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TLSConfig configures TLS.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// TokenConfig configures token issuance.
type TokenConfig struct {
	// SigningKey is the base64-encoded HMAC key for JWT signing. Either it
	// or SigningKeyFile must be set.
	SigningKey string `yaml:"signing_key"`

	// SigningKeyFile points to a file holding the base64-encoded key.
	SigningKeyFile string `yaml:"signing_key_file"`

	// AccessTTL is the access token lifetime.
	AccessTTL time.Duration `yaml:"access_ttl"`

	// RefreshTTL is the refresh token lifetime.
	RefreshTTL time.Duration `yaml:"refresh_ttl"`

	// BcryptCost tunes the credential hasher. Zero uses the bcrypt default.
	BcryptCost int `yaml:"bcrypt_cost"`
}

// SessionConfig configures session state storage.
type SessionConfig struct {
	Backend       string        `yaml:"backend"` // "memory", "postgres"
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	QueryTimeout  time.Duration `yaml:"query_timeout"`
}

// PolicyConfig configures the access policy gate.
type PolicyConfig struct {
	// ElevatedRoles may operate on other principals' resources.
	ElevatedRoles []string `yaml:"elevated_roles"`
}

// DatabaseConfig configures the PostgreSQL connection used by the postgres
// backends.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// AuditConfig configures audit logging.
type AuditConfig struct {
	Backend string `yaml:"backend"` // "slog", "postgres", "none"
}

// LoadConfig loads configuration from a file.
// The path is expected to come from command line arguments, controlled by
// the administrator.
func LoadConfig(path string) (*Config, error) {
	// #nosec G304 -- path is from CLI args, controlled by admin
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	data = []byte(expandEnvVars(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// applyDefaults applies default values to the config.
func applyDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Token.AccessTTL == 0 {
		cfg.Token.AccessTTL = time.Hour
	}
	if cfg.Token.RefreshTTL == 0 {
		cfg.Token.RefreshTTL = 30 * 24 * time.Hour
	}
	if cfg.Session.Backend == "" {
		cfg.Session.Backend = BackendMemory
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = 24 * time.Hour
	}
	if cfg.Session.SweepInterval == 0 {
		cfg.Session.SweepInterval = 5 * time.Minute
	}
	if cfg.Policy.ElevatedRoles == nil {
		cfg.Policy.ElevatedRoles = []string{"admin"}
	}
	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = "slog"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Token.SigningKey == "" && c.Token.SigningKeyFile == "" {
		errs = append(errs, "token.signing_key or token.signing_key_file is required")
	}
	if c.Session.Backend != BackendMemory && c.Session.Backend != BackendPostgres {
		errs = append(errs, fmt.Sprintf("session.backend %q is not supported", c.Session.Backend))
	}
	if c.Session.Backend == BackendPostgres && c.Database.DSN == "" {
		errs = append(errs, "database.dsn is required for the postgres backend")
	}
	if c.Audit.Backend == "postgres" && c.Database.DSN == "" {
		errs = append(errs, "database.dsn is required for the postgres audit backend")
	}
	if c.Server.TLS.Enabled && (c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "") {
		errs = append(errs, "server.tls.cert_file and key_file are required when TLS is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

// LoadSigningKey decodes the configured signing key, loading it from the
// key file when one is set.
func (c *Config) LoadSigningKey() ([]byte, error) {
	encoded := c.Token.SigningKey
	if c.Token.SigningKeyFile != "" {
		// #nosec G304 -- path is from the admin-controlled config file
		data, err := os.ReadFile(c.Token.SigningKeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading signing key file: %w", err)
		}
		encoded = strings.TrimSpace(string(data))
	}

	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding signing key: %w", err)
	}
	return key, nil
}
