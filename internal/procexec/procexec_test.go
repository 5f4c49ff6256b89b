package procexec

import (
	"context"
	"testing"
	"time"

	"github.com/taskctl/taskctl/internal/taskerr"
)

func TestRunSuccess(t *testing.T) {
	p := New(t.TempDir())
	res, err := p.Run(context.Background(), time.Second, NoRetry, "echo", "hello")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("ExitCode = %d, want 0", res.ExitCode)
	}
}

func TestRunNonZeroExitIsIOKind(t *testing.T) {
	p := New(t.TempDir())
	_, err := p.Run(context.Background(), time.Second, NoRetry, "sh", "-c", "echo boom >&2; exit 1")
	if err == nil {
		t.Fatal("expected error")
	}
	if !taskerr.Is(err, taskerr.KindIO) {
		t.Fatalf("expected KindIO, got %v", err)
	}
}

func TestRunGitFailureIsGitKind(t *testing.T) {
	p := New(t.TempDir())
	_, err := p.Run(context.Background(), time.Second, NoRetry, "git", "rev-parse", "HEAD")
	if err == nil {
		t.Skip("unexpectedly inside a git repository")
	}
	if !taskerr.Is(err, taskerr.KindGit) {
		t.Fatalf("expected KindGit, got %v", err)
	}
}

func TestRunTimeoutNotRetried(t *testing.T) {
	p := New(t.TempDir())
	start := time.Now()
	_, err := p.Run(context.Background(), 50*time.Millisecond, DefaultGitReadRetry, "sleep", "2")
	elapsed := time.Since(start)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed > 2*time.Second {
		t.Fatalf("timeout appears to have retried: took %s", elapsed)
	}
}
