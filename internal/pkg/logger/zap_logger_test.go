package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerAttachesModuleAndDetails(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewWithCore(core)

	l.Info("VectorStore", "store persisted", map[string]interface{}{"user_id": "alice"})
	l.Error("Session", "completion failed", map[string]interface{}{"error": "boom"})
	l.Warn("Listening", "no details", nil)

	entries := logs.All()
	require.Len(t, entries, 3)

	ctx := entries[0].ContextMap()
	assert.Equal(t, "VectorStore", ctx["module"])
	assert.Equal(t, map[string]interface{}{"user_id": "alice"}, ctx["details"])

	assert.Equal(t, "boom", entries[1].ContextMap()["error_ref"])
	assert.Equal(t, map[string]interface{}{}, entries[2].ContextMap()["details"])
}

func TestIsolatedLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.log")
	l := NewIsolatedLogger(path)

	l.Info("Capture", "tick", map[string]interface{}{"seq": 1})
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"tick"`)
	assert.Contains(t, string(data), `"module":"Capture"`)
}
