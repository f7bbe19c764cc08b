package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadSettings(t *testing.T) {
	_, err := New(Config{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)

	_, err = New(Config{Level: "info", Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestNewJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)

	wrapped := &Logger{Logger: l, module: "transport"}
	wrapped.WithFields(Fields{"node": "hs1"}).Info("connected")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "connected", entry["message"])
	assert.Equal(t, "transport", entry["module"])
	assert.Equal(t, "hs1", entry["node"])
}

func TestNewDefaultsToInfo(t *testing.T) {
	l, err := New(Config{}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "topovlan.log")
	l, err := New(Config{Level: "debug", File: path, MaxSize: 1}, &bytes.Buffer{})
	require.NoError(t, err)
	l.Debug("hello file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello file")
}

func TestNewLoggerBeforeInit(t *testing.T) {
	globalMu.Lock()
	saved := globalLogger
	globalLogger = nil
	globalMu.Unlock()
	defer func() {
		globalMu.Lock()
		globalLogger = saved
		globalMu.Unlock()
	}()

	l := NewLogger("vlan")
	require.NotNil(t, l)
	assert.Equal(t, logrus.WarnLevel, l.GetLevel())
}
