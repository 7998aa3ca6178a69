package configuration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadEnv(t *testing.T) {
	tmp := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(tmp, ".env.local"),
		[]byte("PLANORA_TEST_ENV_LOAD=ok\n"),
		0o644,
	))

	origWd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	require.NoError(t, os.Chdir(tmp))

	_ = os.Unsetenv("PLANORA_TEST_ENV_LOAD")
	t.Cleanup(func() { _ = os.Unsetenv("PLANORA_TEST_ENV_LOAD") })

	n, err := LoadEnv([]string{".env", ".env.local"})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, "ok", os.Getenv("PLANORA_TEST_ENV_LOAD"))
}

func TestLoadEnv_NoFilesIsNotAnError(t *testing.T) {
	origWd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	require.NoError(t, os.Chdir(t.TempDir()))

	n, err := LoadEnv([]string{".env", ".env.local"})
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestChangeBusOptions_Validate(t *testing.T) {
	t.Parallel()

	valid := ChangeBusOptions{Transport: "memory", QueueSize: 64}
	require.NoError(t, valid.Validate())
	valid.Transport = "redis"
	require.NoError(t, valid.Validate())

	bad := ChangeBusOptions{Transport: "carrier-pigeon", QueueSize: 64}
	require.Error(t, bad.Validate())
	bad = ChangeBusOptions{Transport: "memory", QueueSize: 0}
	require.Error(t, bad.Validate())
}
