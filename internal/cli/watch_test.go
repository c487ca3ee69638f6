package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe for one writer and one reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// startWatch runs the watch command in the background until the returned
// stop function is called.
func startWatch(t *testing.T, env *testEnv, args ...string) (*syncBuffer, func() error) {
	t.Helper()
	out := &syncBuffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&syncBuffer{})
	cmd.SetArgs(append([]string{"--config", env.config, "--db", env.db, "watch", "--debounce", "20ms"}, args...))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	var once sync.Once
	var runErr error
	stop := func() error {
		once.Do(func() {
			cancel()
			select {
			case runErr = <-done:
			case <-time.After(5 * time.Second):
				t.Fatal("watch did not stop")
			}
		})
		return runErr
	}
	t.Cleanup(func() { _ = stop() })
	return out, stop
}

func copyGlide(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	data, err := os.ReadFile("testdata/glide.yaml")
	require.NoError(t, err)
	path := filepath.Join(dir, "glide.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return dir, path
}

func TestWatchCommand_Reloads(t *testing.T) {
	env := newTestEnv(t)
	dir, _ := copyGlide(t)

	out, stop := startWatch(t, env, filepath.Join(dir, "*.yaml"))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "✓ Loaded 3 rule(s) from 1 file(s)")
	}, 5*time.Second, 10*time.Millisecond)

	// a broken edit is reported
	require.NoError(t, os.WriteFile(filepath.Join(dir, "more.yaml"),
		[]byte("rules:\n  - text: \"#Bad\\n:(Nowhere)\"\n"), 0o644))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "✗ Reload failed")
	}, 5*time.Second, 10*time.Millisecond)

	// fixing it reloads both files
	require.NoError(t, os.WriteFile(filepath.Join(dir, "more.yaml"),
		[]byte("rules:\n  - text: \"#Good\\n:\\\\b(Glide)\"\n"), 0o644))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "✓ Loaded 4 rule(s) from 2 file(s)")
	}, 5*time.Second, 10*time.Millisecond)

	assert.NoError(t, stop())
}

func TestWatchCommand_Persist(t *testing.T) {
	env := newTestEnv(t)
	_, path := copyGlide(t)

	out, stop := startWatch(t, env, "--persist", path)
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "✓ Loaded 3 rule(s)")
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, stop())

	listed := env.mustRun("", "rules", "list")
	assert.Contains(t, listed, "Either")
	assert.Contains(t, listed, "StartsGlide")
}

func TestWatchCommand_NoPatterns(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run("", "watch")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
