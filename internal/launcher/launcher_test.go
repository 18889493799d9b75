package launcher

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/agora/internal/appid"
	"github.com/teranos/agora/internal/logging"
)

func setupInstalledPlugin(t *testing.T, pluginRoot, name string) {
	t.Helper()
	dir := filepath.Join(pluginRoot, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	script := "#!/bin/sh\nenv_path=\"$1\"\ngrep -q WORKING_DIRECTORY \"$env_path\" && exit 0\nexit 1\n"
	entryPath := filepath.Join(dir, DefaultEntryScript)
	require.NoError(t, os.WriteFile(entryPath, []byte(script), 0o755))

	manifest := "name = \"" + name + "\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.toml"), []byte(manifest), 0o644))
}

func testID(t *testing.T) appid.ID {
	id, err := appid.New("app", "block", "1.0")
	require.NoError(t, err)
	return id
}

func TestInitializeWorkspace_CopiesInstalledDirectory(t *testing.T) {
	pluginRoot := t.TempDir()
	workspaceRoot := t.TempDir()
	setupInstalledPlugin(t, pluginRoot, "doe_plugin")

	l := New(workspaceRoot, pluginRoot, logging.NewNop())
	require.NoError(t, l.InitializeWorkspace(testID(t), "doe_plugin"))

	expected := filepath.Join(workspaceRoot, "app", "block", "1.0", "doe_plugin", DefaultEntryScript)
	_, err := os.Stat(expected)
	assert.NoError(t, err)
}

func TestInitializeWorkspace_MissingPluginFails(t *testing.T) {
	l := New(t.TempDir(), t.TempDir(), logging.NewNop())
	err := l.InitializeWorkspace(testID(t), "nonexistent")
	assert.Error(t, err)
}

func TestLaunchAndWait_RunsEntryScriptWithEnvFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("entry scripts are shell scripts")
	}

	pluginRoot := t.TempDir()
	workspaceRoot := t.TempDir()
	setupInstalledPlugin(t, pluginRoot, "model_plugin")

	l := New(workspaceRoot, pluginRoot, logging.NewNop())
	require.NoError(t, l.InitializeWorkspace(testID(t), "model_plugin"))

	pid, err := l.Launch(context.Background(), EnvConfiguration{
		Name:       "model",
		Properties: map[string]string{"METRIC_NAME": "latency"},
	})
	require.NoError(t, err)
	assert.Greater(t, pid, 0)

	require.NoError(t, l.Wait(pid))
}

func TestWait_NonZeroExitIsFatal(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("entry scripts are shell scripts")
	}

	pluginRoot := t.TempDir()
	workspaceRoot := t.TempDir()
	dir := filepath.Join(pluginRoot, "failing_plugin")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultEntryScript), []byte("#!/bin/sh\nexit 1\n"), 0o755))

	l := New(workspaceRoot, pluginRoot, logging.NewNop())
	require.NoError(t, l.InitializeWorkspace(testID(t), "failing_plugin"))

	pid, err := l.Launch(context.Background(), EnvConfiguration{Name: "model", Properties: map[string]string{}})
	require.NoError(t, err)

	err = l.Wait(pid)
	assert.Error(t, err)
}

func TestRelaunch_WithoutPriorLaunchFails(t *testing.T) {
	l := New(t.TempDir(), t.TempDir(), logging.NewNop())
	_, err := l.Relaunch(context.Background())
	assert.Error(t, err)
}
