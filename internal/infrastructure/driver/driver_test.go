package driver

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMysqlAdapter(t *testing.T) {
	got := mysqlAdapter(`
SELECT "status"
FROM watch_record
WHERE learner_id = $1
	AND lesson_id = $2`)
	assert.Equal(t, "SELECT `status` FROM watch_record WHERE learner_id = ? AND lesson_id = ?", got)
}

func TestPgsqlAdapter(t *testing.T) {
	got := pgsqlAdapter(`
SELECT status
FROM   watch_record
WHERE  learner_id = $1`)
	assert.Equal(t, "SELECT status FROM watch_record WHERE learner_id = $1", got)
}

func TestGetDSN(t *testing.T) {
	cfg := &DBConfig{User: "u", Password: "p", Host: "db", Port: 3306, Schema: "course", Protocol: "tcp", Query: "parseTime=true"}
	assert.Equal(t, "u:p@tcp(db:3306)/course?parseTime=true", getDSN(cfg))

	cfg.Protocol = ""
	cfg.Query = ""
	assert.Equal(t, "u:p@db:3306/course", getDSN(cfg))
}

func TestMysqlDSN_ForcesParseTime(t *testing.T) {
	for _, dsn := range []string{
		"u:p@tcp(db:3306)/course",
		"u:p@tcp(db:3306)/course?parseTime=false&timeout=5s",
	} {
		got, err := mysqlDSN(dsn)
		require.NoError(t, err)
		cfg, err := mysql.ParseDSN(got)
		require.NoError(t, err)
		assert.True(t, cfg.ParseTime, dsn)
		assert.Equal(t, "course", cfg.DBName)
		assert.Equal(t, "db:3306", cfg.Addr)
	}

	got, err := mysqlDSN("u:p@tcp(db:3306)/course?timeout=5s")
	require.NoError(t, err)
	cfg, err := mysql.ParseDSN(got)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Timeout)

	_, err = mysqlDSN("u:p@tcp(db:3306)/course?timeout=soon")
	assert.Error(t, err)
}

func TestGetDBConnection_UnsupportedDriver(t *testing.T) {
	_, err := GetDBConnection(&DBConfig{Driver: "sqlite"})
	assert.EqualError(t, err, "Unsupported driver: sqlite")
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&mysql.MySQLError{Number: 1062}))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&mysql.MySQLError{Number: 1045}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "40001"}))
	assert.False(t, IsUniqueViolation(sql.ErrNoRows))
}

func TestPgTxOptionAdapter(t *testing.T) {
	opts := pgTxOptionAdapter(&TxOptions{
		Isolation:      sql.LevelRepeatableRead,
		AccessMode:     AccessReadWrite,
		DeferrableMode: NotDeferrable,
	})
	assert.Equal(t, pgx.RepeatableRead, opts.IsoLevel)
	assert.Equal(t, pgx.ReadWrite, opts.AccessMode)
	assert.Equal(t, pgx.NotDeferrable, opts.DeferrableMode)
	assert.Equal(t, pgx.TxOptions{}, pgTxOptionAdapter(nil))
}

func TestLogQueryArgs_Truncates(t *testing.T) {
	long := make([]byte, 100)
	args := logQueryArgs([]interface{}{"short", long, 42})
	require.Len(t, args, 3)
	assert.Equal(t, "short", args[0])
	assert.Contains(t, args[1], "(truncated 36 bytes)")
	assert.Equal(t, 42, args[2])
}

func TestMemoryKV_SetNXAndExpiry(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	kv.now = func() time.Time { return now }

	ok, err := kv.SetNX(ctx, "k", "v1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = kv.SetNX(ctx, "k", "v2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	now = now.Add(2 * time.Minute)
	_, err = kv.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	ok, err = kv.SetNX(ctx, "k", "v3", 0)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, kv.Del(ctx, "k"))
	exists, err := kv.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryKV_PubSub(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	kv := NewMemoryKV()

	var got []string
	require.NoError(t, kv.Subscribe(ctx, "events", func(p []byte) { got = append(got, string(p)) }))
	require.NoError(t, kv.Publish(ctx, "events", []byte("a")))
	require.NoError(t, kv.Publish(ctx, "other", []byte("b")))

	assert.Equal(t, []string{"a"}, got)
}
