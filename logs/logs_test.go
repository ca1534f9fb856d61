package logs

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNew_Fanout(t *testing.T) {
	var text, json bytes.Buffer
	logger := New(&text, Options{Level: slog.LevelInfo, JSON: &json})

	logger.Debug("hidden")
	logger.Info("run finished", "pc", 7)

	assert.NotContains(t, text.String(), "hidden")
	assert.Contains(t, text.String(), "run finished")
	assert.Contains(t, text.String(), "pc=7")
	assert.Contains(t, json.String(), `"pc":7`)
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	assert.False(t, logger.Enabled(context.Background(), slog.LevelError))
	logger.Error("nothing happens")
}
