package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
driver: pgsql
dsn: postgres://localhost:5432/app
username: app
password: secret
attributes:
  sslmode: disable
table_prefix: tbl_
charset: utf8
init_sql: SET search_path TO app
schema_caching:
  duration: 1h
  exclude: [audit_log]
query_caching:
  duration: 30s
  count: 5
sql_guard:
  enabled: true
  check_values: true
debug: true
`))
	require.NoError(t, err)

	assert.Equal(t, "pgsql", cfg.Driver)
	assert.Equal(t, "postgres://localhost:5432/app", cfg.DSN)
	assert.Equal(t, map[string]string{"sslmode": "disable"}, cfg.Attributes)
	assert.Equal(t, StringList{"SET search_path TO app"}, cfg.InitSQL)
	assert.Equal(t, time.Hour, cfg.SchemaCaching.Duration)
	assert.Equal(t, []string{"audit_log"}, cfg.SchemaCaching.Exclude)
	assert.Equal(t, 30*time.Second, cfg.QueryCaching.Duration)
	assert.Equal(t, 5, cfg.QueryCaching.Count)
	assert.True(t, cfg.Debug)
	assert.Equal(t, SQLGuardConfig{Enabled: true, CheckValues: true}, cfg.SQLGuard)

	c := cfg.Connect()
	require.NotNil(t, c.validator)
	assert.ErrorIs(t, c.validator.CheckValues([]any{"'; DROP TABLE x"}), ErrUnsafeSQL)
	assert.Equal(t, "pgsql", c.DriverName())
	assert.Equal(t, "tbl_", c.tablePrefix)
	assert.Equal(t, "app", c.username)
	assert.Equal(t, 5, c.queryCachingCount)
	assert.True(t, c.debug)
}

func TestParseConfig_InitSQLList(t *testing.T) {
	cfg, err := ParseConfig([]byte("dsn: \"sqlite::memory:\"\ninit_sql:\n  - PRAGMA foreign_keys = ON\n  - PRAGMA journal_mode = WAL\n"))
	require.NoError(t, err)
	assert.Equal(t, StringList{"PRAGMA foreign_keys = ON", "PRAGMA journal_mode = WAL"}, cfg.InitSQL)

	c := cfg.Connect()
	assert.Equal(t, "sqlite", c.DriverName())
	assert.Equal(t, ":memory:", c.DSN())
}

func TestParseConfig_Errors(t *testing.T) {
	_, err := ParseConfig([]byte("driver: mysql\n"))
	assert.ErrorIs(t, err, ErrEmptyDSN)

	_, err = ParseConfig([]byte("dsn: [unclosed"))
	assert.Error(t, err)

	_, err = ParseConfig([]byte("dsn: x\ninit_sql:\n  a: b\n"))
	assert.Error(t, err)
}

func TestOpenConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.yaml")
	require.NoError(t, os.WriteFile(path, []byte("driver: sqlite\ndsn: \":memory:\"\n"), 0o600))

	conn, err := OpenConfig(context.Background(), path)
	require.NoError(t, err)
	defer conn.Close()
	assert.True(t, conn.IsOpen())

	_, err = OpenConfig(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
