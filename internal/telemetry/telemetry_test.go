package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_LogsJSONWithComponent(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("OTEL_ENABLED", "false")

	var buf bytes.Buffer
	tel, err := New(Options{ServiceName: "keeper", Output: &buf})
	require.NoError(t, err)
	defer func() { require.NoError(t, tel.Shutdown(context.Background())) }()

	logger := tel.GetLogger("executor")
	logger.Debug().Uint64("epoch", 4).Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "keeper.executor", line["component"])
	assert.Equal(t, "debug", line["level"])
	assert.Equal(t, "hello", line["message"])
	assert.InDelta(t, 4, line["epoch"], 0)
	assert.Contains(t, line, "time")
}

func TestNew_RespectsLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FORMAT", "pretty")

	var buf bytes.Buffer
	tel, err := New(Options{ServiceName: "keeper", Output: &buf})
	require.NoError(t, err)

	tel.Logger.Info().Msg("dropped")
	assert.Empty(t, buf.String())
	tel.Logger.Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNew_RequiresServiceName(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "defaults",
			cfg:  Config{Endpoint: "localhost:4317", TraceSampleRate: 1, LogLevel: "info", LogFormat: "json"},
		},
		{
			name:    "bad level",
			cfg:     Config{LogLevel: "loud", LogFormat: "json"},
			wantErr: true,
		},
		{
			name:    "bad format",
			cfg:     Config{LogLevel: "info", LogFormat: "xml"},
			wantErr: true,
		},
		{
			name:    "enabled without endpoint",
			cfg:     Config{Enabled: true, LogLevel: "info", LogFormat: "json", TraceSampleRate: 1},
			wantErr: true,
		},
		{
			name: "enabled with bad sample rate",
			cfg: Config{
				Enabled: true, Endpoint: "collector:4317", LogLevel: "info", LogFormat: "json", TraceSampleRate: 2,
			},
			wantErr: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.validate()
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestParseLogFormat(t *testing.T) {
	assert.Equal(t, LogFormatJSON, ParseLogFormat("JSON"))
	assert.Equal(t, LogFormatPretty, ParseLogFormat("pretty"))
	assert.Equal(t, LogFormatUndefined, ParseLogFormat("yaml"))
	assert.Equal(t, "undefined", LogFormatUndefined.String())
}
