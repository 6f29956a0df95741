package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("loud"))
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Writer: &buf, Level: "info", JSON: true})

	logger.Debug("hidden")
	logger.Info("viewing cancelled", "viewing_request_id", "vr-1")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "viewing cancelled", entry["msg"])
	assert.Equal(t, "vr-1", entry["viewing_request_id"])
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	New(Options{Writer: &buf, Level: "debug"}).Debug("sweep finished", "expired", 2)
	assert.Contains(t, buf.String(), "sweep finished")
	assert.Contains(t, buf.String(), "expired")
}
