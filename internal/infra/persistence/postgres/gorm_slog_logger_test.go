package postgres

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"jwtauth/config"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newBufferedLogger(debug bool) (*bytes.Buffer, *gormSlogLogger) {
	buf := &bytes.Buffer{}
	base := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	cfg := &config.Config{}
	cfg.Env.Debug = debug

	l, _ := newGormSlogLogger(base, cfg).(*gormSlogLogger)

	return buf, l
}

func TestGormSlogLogger_ParamsFilter(t *testing.T) {
	_, quiet := newBufferedLogger(false)
	sql, params := quiet.ParamsFilter(context.Background(), "SELECT * FROM refresh_tokens WHERE token_hash = $1", "deadbeef")
	assert.Equal(t, "SELECT * FROM refresh_tokens WHERE token_hash = $1", sql)
	assert.Nil(t, params)

	_, verbose := newBufferedLogger(true)
	_, params = verbose.ParamsFilter(context.Background(), "SELECT 1", "deadbeef")
	assert.Equal(t, []any{"deadbeef"}, params)
}

func TestGormSlogLogger_Trace(t *testing.T) {
	sqlFn := func() (string, int64) { return "SELECT 1", 1 }

	t.Run("record not found is ignored", func(t *testing.T) {
		buf, l := newBufferedLogger(false)
		l.Trace(context.Background(), time.Now(), sqlFn, gorm.ErrRecordNotFound)
		assert.Empty(t, buf.String())
	})

	t.Run("errors are logged", func(t *testing.T) {
		buf, l := newBufferedLogger(false)
		l.Trace(context.Background(), time.Now(), sqlFn, errors.New("boom"))
		assert.Contains(t, buf.String(), "GORM query failed")
		assert.Contains(t, buf.String(), "boom")
	})

	t.Run("slow queries warn", func(t *testing.T) {
		buf, l := newBufferedLogger(false)
		l.Trace(context.Background(), time.Now().Add(-time.Second), sqlFn, nil)
		assert.Contains(t, buf.String(), "GORM slow query")
	})

	t.Run("fast queries only at info", func(t *testing.T) {
		buf, l := newBufferedLogger(false)
		l.Trace(context.Background(), time.Now(), sqlFn, nil)
		assert.Empty(t, buf.String())

		verboseBuf, verbose := newBufferedLogger(true)
		verbose.Trace(context.Background(), time.Now(), sqlFn, nil)
		assert.Contains(t, verboseBuf.String(), "GORM query")
	})

	t.Run("silent", func(t *testing.T) {
		buf, l := newBufferedLogger(true)
		l.LogMode(logger.Silent).Trace(context.Background(), time.Now(), sqlFn, errors.New("boom"))
		assert.Empty(t, buf.String())
	})
}
