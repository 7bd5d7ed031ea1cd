package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func waitForUpdate(t *testing.T, w *Watcher) Config {
	t.Helper()
	select {
	case cfg := <-w.Updates():
		return cfg
	case <-time.After(5 * time.Second):
		t.Fatal("no config update observed")
		return Config{}
	}
}

func TestWatcher_DeliversReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gridos.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transport:\n  tag: FIRST\n"), 0o644))

	w, err := Watch(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("transport:\n  tag: SECOND\n"), 0o644))

	cfg := waitForUpdate(t, w)
	assert.Equal(t, "SECOND", cfg.Transport.Tag)
}

func TestWatcher_RejectsBrokenEdit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gridos.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transport:\n  tag: GOOD\n"), 0o644))

	w, err := Watch(path)
	require.NoError(t, err)
	defer w.Close()

	// Invalid budget: must not be published.
	require.NoError(t, os.WriteFile(path, []byte("budget:\n  instructions_soft: 9\n  instructions_hard: 1\n"), 0o644))
	// A later good edit is.
	require.NoError(t, os.WriteFile(path, []byte("transport:\n  tag: FIXED\n"), 0o644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-w.Updates():
			if cfg.Transport.Tag == "FIXED" {
				return
			}
			t.Fatalf("unexpected snapshot published: %+v", cfg)
		case <-deadline:
			t.Fatal("good edit never published")
		}
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gridos.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transport:\n  tag: KEEP\n"), 0o644))

	w, err := Watch(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))

	select {
	case cfg := <-w.Updates():
		t.Fatalf("unexpected update from unrelated file: %+v", cfg)
	case <-time.After(300 * time.Millisecond):
	}
}
