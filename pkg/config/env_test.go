package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("POSTDECK_TEST_STR", "value")
	require.Equal(t, "value", GetEnv("POSTDECK_TEST_STR", "fallback"))
	require.Equal(t, "fallback", GetEnv("POSTDECK_TEST_MISSING", "fallback"))
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("POSTDECK_TEST_INT", "42")
	require.Equal(t, 42, GetEnvInt("POSTDECK_TEST_INT", 7))

	t.Setenv("POSTDECK_TEST_INT", "not-a-number")
	require.Equal(t, 7, GetEnvInt("POSTDECK_TEST_INT", 7))
	require.Equal(t, 7, GetEnvInt("POSTDECK_TEST_INT_MISSING", 7))
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("POSTDECK_TEST_BOOL", "true")
	require.True(t, GetEnvBool("POSTDECK_TEST_BOOL", false))

	t.Setenv("POSTDECK_TEST_BOOL", "nope")
	require.True(t, GetEnvBool("POSTDECK_TEST_BOOL", true))
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("POSTDECK_TEST_DUR", "90s")
	require.Equal(t, 90*time.Second, GetEnvDuration("POSTDECK_TEST_DUR", time.Minute))

	t.Setenv("POSTDECK_TEST_DUR", "ninety seconds")
	require.Equal(t, time.Minute, GetEnvDuration("POSTDECK_TEST_DUR", time.Minute))
}
