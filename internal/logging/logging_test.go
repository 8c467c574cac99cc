package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDisabledLoggingIsNoop(t *testing.T) {
	Reset()
	require.NoError(t, Init(Options{Debug: false}))
	defer Reset()

	// Must not panic or create files.
	Get(CategoryStore).Infof("ignored %d", 1)
	Store("ignored")
	Shell("ignored")
	Sync()
}

func TestEnabledLoggingWritesCategoryFiles(t *testing.T) {
	dir := t.TempDir()
	Reset()
	require.NoError(t, Init(Options{Dir: dir, Debug: true}))
	defer Reset()

	Store("store message %d", 42)
	Shell("shell message")
	Sync()

	for _, category := range []string{"store", "shell"} {
		matches, err := filepath.Glob(filepath.Join(dir, "logs", "*_"+category+".log"))
		require.NoError(t, err)
		require.Len(t, matches, 1, "expected a %s log file", category)
		data, err := os.ReadFile(matches[0])
		require.NoError(t, err)
		require.NotEmpty(t, data)
	}
}

func TestCategoryFilter(t *testing.T) {
	dir := t.TempDir()
	Reset()
	require.NoError(t, Init(Options{
		Dir:        dir,
		Debug:      true,
		Categories: map[string]bool{"store": false},
	}))
	defer Reset()

	Store("filtered out")
	Shell("kept")
	Sync()

	matches, err := filepath.Glob(filepath.Join(dir, "logs", "*_store.log"))
	require.NoError(t, err)
	require.Empty(t, matches, "store category is disabled")

	matches, err = filepath.Glob(filepath.Join(dir, "logs", "*_shell.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
}

func TestTimerDoesNotPanicWhenDisabled(t *testing.T) {
	Reset()
	timer := StartTimer(CategoryStore, "op")
	require.NotNil(t, timer)
	_ = timer.Stop()
}
