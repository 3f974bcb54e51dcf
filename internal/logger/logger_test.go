package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_WritesDailyJSONFile(t *testing.T) {
	dir := t.TempDir()
	prev := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(prev) })

	log, err := New(dir, "debug", false)
	require.NoError(t, err)
	log.Debug("probe", zap.String("app", "blog"))
	require.NoError(t, log.Sync())

	body, err := os.ReadFile(filepath.Join(dir, time.Now().Format("2006-01-02")+".log"))
	require.NoError(t, err)
	assert.Contains(t, string(body), `"msg":"logger online"`)
	assert.Contains(t, string(body), `"app":"blog"`)
	assert.Same(t, log, zap.L())
}

func TestNew_LevelFilters(t *testing.T) {
	dir := t.TempDir()
	prev := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(prev) })

	log, err := New(dir, "warn", false)
	require.NoError(t, err)
	log.Info("hidden")
	log.Warn("shown")
	require.NoError(t, log.Sync())

	body, err := os.ReadFile(filepath.Join(dir, time.Now().Format("2006-01-02")+".log"))
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(body), "hidden"))
	assert.Contains(t, string(body), "shown")
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New(t.TempDir(), "loud", false)
	assert.Error(t, err)
}
