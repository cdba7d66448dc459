package observability

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewCLILogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewCLILogger(zapcore.AddSync(&buf), "perfgate", zapcore.InfoLevel)

	logger.Debug("hidden")
	logger.Info("All tests passed!", zap.Int("test_id", 7))
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "perfgate")
	assert.Contains(t, out, "All tests passed!")
	assert.Contains(t, out, "test_id")
}

func TestInitCLILogger(t *testing.T) {
	orig := CLILogger
	defer SetCLILogger(orig)

	logger := InitCLILogger("test", true)
	assert.Same(t, logger, CLILogger)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger = InitCLILogger("test", false)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestSetCLILogger_Nil(t *testing.T) {
	orig := CLILogger
	defer SetCLILogger(orig)

	assert.NotPanics(t, func() {
		SetCLILogger(nil).Info("no-op")
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{in: "", want: zapcore.InfoLevel},
		{in: "DEBUG", want: zapcore.DebugLevel},
		{in: "warning", want: zapcore.WarnLevel},
		{in: "error", want: zapcore.ErrorLevel},
		{in: "trace", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
