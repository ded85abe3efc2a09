package rclone

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"capstan/internal/services"
)

type fakeExecutor struct {
	calls    int
	failures int
	args     [][]string
	dest     string
	file     string
}

func (f *fakeExecutor) Run(_ context.Context, _ string, args []string, _ func(string)) error {
	f.calls++
	f.args = append(f.args, args)
	if f.calls <= f.failures {
		return errors.New("simulated transfer failure")
	}
	if f.file != "" {
		return os.WriteFile(filepath.Join(f.dest, f.file), []byte("archive-bytes"), 0o644)
	}
	return nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func newTestClient(t *testing.T, exec *fakeExecutor, retries int) *Client {
	t.Helper()
	client, err := New(Options{
		RemoteName: "dataset",
		MaxRetries: retries,
		RetryDelay: time.Second,
	}, nil, WithExecutor(exec), WithSleep(noSleep))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestFetchSucceedsFirstAttempt(t *testing.T) {
	dest := t.TempDir()
	exec := &fakeExecutor{dest: dest, file: "0026_s1_all_anno.smc"}
	client := newTestClient(t, exec, 3)

	local, err := client.Fetch(context.Background(), "anno/0026/0026_s1_all_anno.smc", dest)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if local != filepath.Join(dest, "0026_s1_all_anno.smc") {
		t.Errorf("local = %q", local)
	}
	if exec.calls != 1 {
		t.Errorf("calls = %d, want 1", exec.calls)
	}
}

func TestFetchRetriesThenSucceeds(t *testing.T) {
	dest := t.TempDir()
	exec := &fakeExecutor{dest: dest, file: "a.smc", failures: 2}
	client := newTestClient(t, exec, 3)

	if _, err := client.Fetch(context.Background(), "raw/0026/a.smc", dest); err != nil {
		t.Fatalf("Fetch after retries: %v", err)
	}
	if exec.calls != 3 {
		t.Errorf("calls = %d, want 3", exec.calls)
	}
}

func TestFetchExhaustsRetries(t *testing.T) {
	dest := t.TempDir()
	exec := &fakeExecutor{dest: dest, failures: 99}
	client := newTestClient(t, exec, 2)

	_, err := client.Fetch(context.Background(), "raw/0026/a.smc", dest)
	if !errors.Is(err, services.ErrTransfer) {
		t.Fatalf("expected ErrTransfer, got %v", err)
	}
	if exec.calls != 2 {
		t.Errorf("calls = %d, want 2", exec.calls)
	}
}

func TestFetchFailsWhenFileMissingLocally(t *testing.T) {
	dest := t.TempDir()
	// Executor reports success but writes nothing.
	exec := &fakeExecutor{dest: dest}
	client := newTestClient(t, exec, 1)

	_, err := client.Fetch(context.Background(), "anno/0026/missing.smc", dest)
	if !errors.Is(err, services.ErrTransfer) {
		t.Fatalf("expected ErrTransfer for missing local file, got %v", err)
	}
}

func TestFetchBuildsRcloneArguments(t *testing.T) {
	dest := t.TempDir()
	exec := &fakeExecutor{dest: dest, file: "a.smc"}
	client, err := New(Options{
		RemoteName:   "gdrive",
		RootFolderID: "folder123",
		Transfers:    8,
		Checkers:     16,
		MaxRetries:   1,
	}, nil, WithExecutor(exec), WithSleep(noSleep))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := client.Fetch(context.Background(), "anno/0026/a.smc", dest); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	joined := strings.Join(exec.args[0], " ")
	for _, want := range []string{
		"copy gdrive:anno/0026/a.smc " + dest,
		"--drive-root-folder-id folder123",
		"--transfers 8",
		"--checkers 16",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args %q missing %q", joined, want)
		}
	}
}

func TestNewRequiresRemoteName(t *testing.T) {
	if _, err := New(Options{}, nil); err == nil {
		t.Fatal("expected error for missing remote name")
	}
}
