package logs

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"jwtauth/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "verbose", want: slog.LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseLogLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewLogger_JSONWithServiceAttrs(t *testing.T) {
	cfg := &config.Config{}
	cfg.Env.Env = "test"
	cfg.Env.ServiceName = "jwtauth"
	cfg.Env.Log.Level = "info"

	buf := &bytes.Buffer{}
	logger, err := newLogger(buf, cfg)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("refresh token rotated", slog.String("accountID", "a-1"))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "refresh token rotated", record["msg"])
	assert.Equal(t, "jwtauth", record["service"])
	assert.Equal(t, "test", record["env"])
	assert.Equal(t, "a-1", record["accountID"])
}
