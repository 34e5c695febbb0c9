package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func resetLogger(t *testing.T) {
	t.Cleanup(func() {
		Replace(nil)
		SetLevel("info")
	})
}

func TestConfigureLevels(t *testing.T) {
	resetLogger(t)

	require.NoError(t, Init("debug", false))
	require.True(t, Logger().Core().Enabled(zap.DebugLevel))

	require.NoError(t, Configure(Options{Level: "chatty", Development: true, Service: "hireflow"}))
	require.False(t, Logger().Core().Enabled(zap.DebugLevel))
	require.True(t, Logger().Core().Enabled(zap.InfoLevel))

	SetLevel("error")
	require.False(t, Logger().Core().Enabled(zap.WarnLevel), "level changes apply to the running logger")
}

func TestWithModuleAttachesModuleField(t *testing.T) {
	resetLogger(t)
	core, recorded := observer.New(zap.InfoLevel)
	Replace(zap.New(core))

	WithModule("auth").Info("sign-in failed", Email("email", "jane.doe@example.com"))

	entries := recorded.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "auth", fields["module"])
	require.Equal(t, "j***@example.com", fields["email"])
}

func TestEmailMasking(t *testing.T) {
	cases := map[string]string{
		"jane@example.com": "j***@example.com",
		"  x@hireflow.io ": "x***@hireflow.io",
		"not-an-address":   "***",
		"@example.com":     "***",
	}
	for input, want := range cases {
		require.Equal(t, want, Email("email", input).String, input)
	}
}

func TestReplaceNilDiscards(t *testing.T) {
	resetLogger(t)
	Replace(nil)
	require.NotNil(t, Logger())
	require.NoError(t, Sync())
}
