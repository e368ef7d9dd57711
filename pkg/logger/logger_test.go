package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLevels(t *testing.T) {
	for _, tc := range []struct {
		name          string
		expectedLevel zapcore.Level
	}{
		{name: "Debug", expectedLevel: zapcore.DebugLevel},
		{name: "Info", expectedLevel: zapcore.InfoLevel},
		{name: "Warn", expectedLevel: zapcore.WarnLevel},
		{name: "Error", expectedLevel: zapcore.ErrorLevel},
	} {
		t.Run(tc.name, func(t *testing.T) {
			observerLogger, logs := observer.New(zap.DebugLevel)
			dut := ZapLogger{zap.New(observerLogger)}
			const testMessage = "ABC"

			switch tc.name {
			case "Debug":
				dut.Debug(testMessage)
			case "Info":
				dut.Info(testMessage)
			case "Warn":
				dut.Warn(testMessage)
			case "Error":
				dut.Error(testMessage)
			}

			entries := logs.TakeAll()
			require.Len(t, entries, 1)
			require.Equal(t, tc.expectedLevel, entries[0].Level)
			require.Equal(t, testMessage, entries[0].Message)
		})
	}
}

func TestNewLogger(t *testing.T) {
	l, err := NewLogger("json", "info")
	require.NoError(t, err)
	require.NotNil(t, l)

	_, err = NewLogger("json", "verbose")
	require.Error(t, err)

	noop, err := NewLogger("json", "none")
	require.NoError(t, err)
	require.NotNil(t, noop)
}

func TestWithFields(t *testing.T) {
	observerLogger, logs := observer.New(zap.DebugLevel)
	dut := &ZapLogger{zap.New(observerLogger)}

	dut.With(zap.String("run_id", "01ARZ3")).Info("hello")

	entries := logs.TakeAll()
	require.Len(t, entries, 1)
	require.Equal(t, "01ARZ3", entries[0].ContextMap()["run_id"])
}
