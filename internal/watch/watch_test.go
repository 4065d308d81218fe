package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dbt-governance/internal/testutil"
)

func TestNew(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	dir := t.TempDir()
	w, err := New([]string{
		filepath.Join(dir, "a", "target", "manifest.json"),
		filepath.Join(dir, "rules.yml"),
		filepath.Join(dir, "a", "target", "manifest.json"),
	})
	require.NoError(t, err)
	assert.Len(t, w.files, 2)
	assert.Equal(t, []string{dir, filepath.Join(dir, "a", "target")}, w.dirs)
	assert.Equal(t, DefaultDelay, w.delay)
}

func TestRun_DebouncesChanges(t *testing.T) {
	dir := t.TempDir()
	rules := testutil.WriteFile(t, dir, "rules.yml", "rules: []\n")
	manifest := testutil.WriteFile(t, dir, "target/manifest.json", "{}")
	other := filepath.Join(dir, "notes.txt")

	w, err := New([]string{rules, manifest}, WithDelay(50*time.Millisecond), WithLogger(testutil.NewTestLogger(t)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan []string, 4)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(_ context.Context, changed []string) {
			calls <- changed
		})
	}()

	// Give the watcher time to register its directories.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(other, []byte("ignored"), 0o600))
	require.NoError(t, os.WriteFile(rules, []byte("rules:\n"), 0o600))
	require.NoError(t, os.WriteFile(manifest, []byte(`{"nodes":{}}`), 0o600))
	require.NoError(t, os.WriteFile(rules, []byte("rules: []\n"), 0o600))

	select {
	case changed := <-calls:
		assert.ElementsMatch(t, []string{rules, manifest}, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	select {
	case changed := <-calls:
		t.Fatalf("unexpected second call: %v", changed)
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestRun_MissingDirectory(t *testing.T) {
	w, err := New([]string{filepath.Join(t.TempDir(), "missing", "manifest.json")})
	require.NoError(t, err)

	err = w.Run(context.Background(), func(context.Context, []string) {})
	assert.Error(t, err)
}
