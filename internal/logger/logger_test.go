package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger_Fields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := Wrap(zap.New(core))

	l.Info("gateway", "message recorded", map[string]interface{}{"chatbot_id": 3})
	l.Error("worker", "index failed", map[string]interface{}{"error": errors.New("boom"), "chatbot_id": 7})
	l.Debug("cache", "miss", nil)

	entries := logs.All()
	assert.Len(t, entries, 3)

	first := entries[0].ContextMap()
	assert.Equal(t, "gateway", first["module"])
	assert.Equal(t, map[string]interface{}{"chatbot_id": 3}, first["details"])

	second := entries[1].ContextMap()
	assert.Equal(t, "boom", second["error"])
	assert.Equal(t, map[string]interface{}{"chatbot_id": 7}, second["details"])

	third := entries[2].ContextMap()
	_, hasDetails := third["details"]
	assert.False(t, hasDetails)
}

func TestNew_CreatesLogDir(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir+"/nested/app.log", true)
	assert.NoError(t, err)
	l.Info("test", "hello", nil)
	_ = l.Sync()
}
