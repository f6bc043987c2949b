package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestL_SafeBeforeInit(t *testing.T) {
	require.NotNil(t, L())
	// no-op 日志器随便打，不能 panic
	L().Info("before init")
}

func TestInit_RejectsBadLevel(t *testing.T) {
	err := Init(Options{Level: "noisy"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse log level")
}

func TestInit_WritesJSONToFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "fetchguard.log")
	require.NoError(t, Init(Options{Level: "info", File: file, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1}))

	L().Info("guard.decision", zap.String("reason", "PRIVATE_IP"))
	Sync()

	raw, err := os.ReadFile(file)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"msg":"guard.decision"`)
	require.Contains(t, string(raw), `"reason":"PRIVATE_IP"`)
	require.Contains(t, string(raw), `"level":"info"`)
}

func TestInit_LevelFiltersDebug(t *testing.T) {
	file := filepath.Join(t.TempDir(), "fetchguard.log")
	require.NoError(t, Init(Options{Level: "warn", File: file}))

	L().Debug("too detailed")
	L().Warn("guard.notify_failed")
	Sync()

	raw, err := os.ReadFile(file)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "too detailed")
	require.Contains(t, string(raw), "guard.notify_failed")
}
