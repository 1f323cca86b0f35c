package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Writer: &buf, Level: "info", Format: "json"})

	logger.Debug("hidden")
	logger.Info("saved offline", "property_id", "p1", Err(errors.New("boom")))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "saved offline", line["msg"])
	assert.Equal(t, "p1", line["property_id"])
	assert.Equal(t, "boom", line["err"])
}

func TestNew_TintFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Writer: &buf, Level: "debug", NoColor: true})
	logger.Debug("probe", "connected", true)
	assert.Contains(t, buf.String(), "probe")
	assert.Contains(t, buf.String(), "connected=true")
}
