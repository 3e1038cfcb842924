package core

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/coregx/daokit/internal/security"
)

// Config is the YAML form of a connection's settings.
//
//	driver: postgres
//	dsn: postgres://localhost:5432/app
//	username: app
//	password: secret
//	attributes:
//	  sslmode: disable
//	table_prefix: tbl_
//	charset: utf8
//	init_sql: SET search_path TO app
//	schema_caching:
//	  duration: 1h
//	  exclude: [audit_log]
//	query_caching:
//	  duration: 30s
//	  count: 0
//	sql_guard:
//	  enabled: true
//	  check_values: true
//	debug: true
type Config struct {
	Driver       string            `yaml:"driver,omitempty"`
	DSN          string            `yaml:"dsn"`
	Username     string            `yaml:"username,omitempty"`
	Password     string            `yaml:"password,omitempty"`
	Attributes   map[string]string `yaml:"attributes,omitempty"`
	TablePrefix  string            `yaml:"table_prefix,omitempty"`
	Charset      string            `yaml:"charset,omitempty"`
	InitSQL      StringList        `yaml:"init_sql,omitempty"`
	MaxOpenConns int               `yaml:"max_open_conns,omitempty"`
	MaxIdleConns int               `yaml:"max_idle_conns,omitempty"`

	SchemaCaching SchemaCachingConfig `yaml:"schema_caching,omitempty"`
	QueryCaching  QueryCachingConfig  `yaml:"query_caching,omitempty"`
	SQLGuard      SQLGuardConfig      `yaml:"sql_guard,omitempty"`

	EnableParamLogging bool     `yaml:"enable_param_logging,omitempty"`
	EnableProfiling    bool     `yaml:"enable_profiling,omitempty"`
	Debug              bool     `yaml:"debug,omitempty"`
	SensitiveFields    []string `yaml:"sensitive_fields,omitempty"`
}

// SchemaCachingConfig configures table metadata caching.
type SchemaCachingConfig struct {
	// Duration is the TTL; negative disables caching, zero never expires.
	Duration time.Duration `yaml:"duration,omitempty"`
	Exclude  []string      `yaml:"exclude,omitempty"`
}

// QueryCachingConfig configures query result caching.
type QueryCachingConfig struct {
	Duration time.Duration `yaml:"duration,omitempty"`
	Count    int           `yaml:"count,omitempty"`
}

// SQLGuardConfig enables statement validation.
type SQLGuardConfig struct {
	Enabled     bool `yaml:"enabled,omitempty"`
	Strict      bool `yaml:"strict,omitempty"`
	CheckValues bool `yaml:"check_values,omitempty"`
}

// StringList accepts a YAML scalar or sequence of strings.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler for StringList.
func (s *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = []string{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	default:
		return fmt.Errorf("expected string or list of strings, got node kind %d", node.Kind)
	}
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read daokit config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML config data.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse daokit config: %w", err)
	}
	if cfg.DSN == "" {
		return nil, ErrEmptyDSN
	}
	return &cfg, nil
}

// Options converts the config into connection options. Driver and DSN are
// passed to NewConnection separately.
func (c *Config) Options() []Option {
	opts := []Option{
		WithTablePrefix(c.TablePrefix),
		WithCharset(c.Charset),
		WithSchemaCaching(c.SchemaCaching.Duration, c.SchemaCaching.Exclude...),
		WithParamLogging(c.EnableParamLogging),
		WithProfiling(c.EnableProfiling),
		WithDebug(c.Debug),
		WithMaxOpenConns(c.MaxOpenConns),
		WithMaxIdleConns(c.MaxIdleConns),
	}
	if c.Username != "" || c.Password != "" {
		opts = append(opts, WithCredentials(c.Username, c.Password))
	}
	if len(c.Attributes) > 0 {
		opts = append(opts, WithAttributes(c.Attributes))
	}
	if len(c.InitSQL) > 0 {
		opts = append(opts, WithInitSQL(c.InitSQL...))
	}
	if c.QueryCaching.Count > 0 {
		opts = append(opts, WithQueryCaching(c.QueryCaching.Duration, nil, c.QueryCaching.Count))
	}
	if c.SQLGuard.Enabled {
		opts = append(opts, WithValidator(security.NewValidator(
			security.WithStrict(c.SQLGuard.Strict),
			security.WithValueChecks(c.SQLGuard.CheckValues),
		)))
	}
	if len(c.SensitiveFields) > 0 {
		opts = append(opts, WithSensitiveFields(c.SensitiveFields))
	}
	return opts
}

// Connect creates a connection from the config; extra options are applied
// after the configured ones. The connection is opened lazily.
func (c *Config) Connect(extra ...Option) *Connection {
	return NewConnection(c.Driver, c.DSN, append(c.Options(), extra...)...)
}

// OpenConfig loads a YAML config file and opens the connection it describes.
func OpenConfig(ctx context.Context, path string, extra ...Option) (*Connection, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	conn := cfg.Connect(extra...)
	if err := conn.Open(ctx); err != nil {
		return nil, err
	}
	return conn, nil
}
