package daokit_test

import (
	"bytes"
	"context"
	"database/sql"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	_ "modernc.org/sqlite"

	"github.com/coregx/daokit"
)

func seed(t *testing.T, conn *daokit.Connection) {
	t.Helper()
	cmd := conn.CreateCommand(nil)
	_, err := cmd.CreateTable("{{post}}", []daokit.ColumnDef{
		{Name: "id", Type: "pk"},
		{Name: "title", Type: "string NOT NULL"},
		{Name: "views", Type: "integer NOT NULL DEFAULT 0"},
	}, "")
	require.NoError(t, err)
	_, err = cmd.Reset().BatchInsert("{{post}}", []string{"title", "views"}, [][]any{
		{"hello", 10},
		{"world", 3},
		{"100% done", 7},
	})
	require.NoError(t, err)
}

func TestConnection_EndToEnd(t *testing.T) {
	ctx := context.Background()
	conn, err := daokit.Open(ctx, "", "sqlite::memory:", daokit.WithTablePrefix("tbl_"))
	require.NoError(t, err)
	defer conn.Close()
	seed(t, conn)

	t.Run("query", func(t *testing.T) {
		q := daokit.NewQuery().
			Select("title").
			From("{{post}}").
			Where(daokit.GreaterThan("views", 5)).
			OrderBy("views DESC")
		titles, err := conn.CreateCommand(q).QueryColumn()
		require.NoError(t, err)
		assert.Equal(t, []any{"hello", "100% done"}, titles)
	})

	t.Run("like escapes wildcards", func(t *testing.T) {
		q := daokit.NewQuery().From("{{post}}").Where(daokit.Like("title", "100%"))
		rows, err := conn.CreateCommand(q).QueryAll()
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "100% done", rows[0].String("title"))
	})

	t.Run("raw sql with named params", func(t *testing.T) {
		v, err := conn.CreateCommand("SELECT SUM([[views]]) FROM {{post}} WHERE [[views]] < {:max}").
			QueryScalar(daokit.Params{"max": 10})
		require.NoError(t, err)
		assert.Equal(t, int64(10), v)
	})

	t.Run("no rows", func(t *testing.T) {
		_, err := conn.CreateCommand(daokit.NewQuery().From("{{post}}").Where(daokit.HashExp{"id": 99})).QueryRow()
		assert.True(t, daokit.IsNoRows(err))
	})

	t.Run("schema typecast", func(t *testing.T) {
		s, err := conn.Schema()
		require.NoError(t, err)
		table, err := s.TableSchema(ctx, "{{post}}")
		require.NoError(t, err)
		require.NotNil(t, table)

		row := table.Typecast(map[string]any{"views": "12", "title": 5})
		assert.Equal(t, int64(12), row["views"])
		assert.Equal(t, "5", row["title"])
	})
}

func TestWrapDB(t *testing.T) {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer sqlDB.Close()

	conn, err := daokit.WrapDB(sqlDB)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", conn.DriverName())

	v, err := conn.CreateCommand("SELECT 1 + 1").QueryScalar()
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	require.NoError(t, conn.Close())
	assert.NoError(t, sqlDB.Ping())
}

func TestConnection_LoggingAndProfiling(t *testing.T) {
	var buf bytes.Buffer
	log := daokit.NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	conn, err := daokit.Open(context.Background(), "sqlite", ":memory:",
		daokit.WithLogger(log),
		daokit.WithTracer(daokit.NewOtelTracer(tp.Tracer("daokit-test"))),
		daokit.WithProfiling(true),
		daokit.WithParamLogging(true),
		daokit.WithSensitiveFields([]string{"password"}))
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.CreateCommand("SELECT :password AS p, :name AS n").
		QueryRow(daokit.Params{"password": "hunter2", "name": "alice"})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "category=daokit.command")
	assert.Contains(t, out, "alice")
	assert.NotContains(t, out, "hunter2")

	var names []string
	for _, s := range exporter.GetSpans() {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "daokit.connection.open")
	assert.Contains(t, names, "daokit.command.query")
}

func TestConnection_SQLGuard(t *testing.T) {
	var buf bytes.Buffer
	auditor := daokit.NewAuditor(daokit.NewSlogLogger(slog.New(slog.NewTextHandler(&buf, nil))), daokit.AuditWrites)

	conn, err := daokit.Open(context.Background(), "sqlite", ":memory:",
		daokit.WithValidator(daokit.NewValidator()),
		daokit.WithAuditor(auditor))
	require.NoError(t, err)
	defer conn.Close()
	seed(t, conn)

	_, err = conn.CreateCommand("SELECT * FROM {{post}} WHERE id = 1 OR 1=1").QueryAll()
	assert.ErrorIs(t, err, daokit.ErrUnsafeSQL)

	ctx := daokit.WithUser(context.Background(), "editor")
	_, err = conn.CreateCommand(nil).WithContext(ctx).
		Update("{{post}}", map[string]any{"views": 0}, daokit.HashExp{"title": "hello"}, nil)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "statement rejected")
	assert.Contains(t, out, "operation=UPDATE")
	assert.Contains(t, out, "user=editor")
}
