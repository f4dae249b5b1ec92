package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitialize_SilentByDefault(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")

	require.NoError(t, Initialize(""))
	assert.False(t, GetLogger().Core().Enabled(zapcore.ErrorLevel))
}

func TestInitialize_FromEnv(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "warn")

	require.NoError(t, Initialize(""))
	assert.True(t, GetLogger().Core().Enabled(zapcore.WarnLevel))
	assert.False(t, GetLogger().Core().Enabled(zapcore.InfoLevel))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"info", zapcore.InfoLevel, false},
		{"warn", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"verbose", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLogStateTransition(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })

	LogStateTransition("Connecting", "Associated", "got_ip")

	entries := logs.FilterMessage("Connectivity state transition").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "Connecting", fields["from"])
	assert.Equal(t, "Associated", fields["to"])
}

func TestDumps(t *testing.T) {
	assert.Equal(t, "", hexDump(nil))
	assert.Equal(t, "0d0a", hexDump([]byte("\r\n")))
	assert.Equal(t, "ab..", asciiDump([]byte{'a', 'b', 0x00, 0xff}))

	long := make([]byte, 300)
	assert.Len(t, hexDump(long), 512+3)
	assert.Len(t, asciiDump(long), 256)
}

func TestLogRawBytes_OnlyAtDebug(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })

	LogRawBytes("frame channel", []byte("hello"))
	assert.Zero(t, logs.Len())

	core, logs = observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))

	LogRawBytes("frame channel", []byte("hi\r\n"))
	entries := logs.FilterMessage("frame channel").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "68690d0a", fields["hex"])
	assert.Equal(t, "hi..", fields["ascii"])
	assert.EqualValues(t, 4, fields["length"])
}
