// Package procexec mediates every external process call the context store
// makes (git, tar/gzip), attaching timeouts, retries for idempotent reads,
// and telemetry spans, so no other package shells out directly.
package procexec

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/taskctl/taskctl/internal/taskerr"
)

var tracer = otel.Tracer("taskctl/procexec")

// DefaultGitTimeout and DefaultTimeout bound each external call: 30s for
// git, 120s for generic external tools.
const (
	DefaultGitTimeout = 30 * time.Second
	DefaultTimeout    = 120 * time.Second
)

// RetryPolicy controls retries for idempotent reads. Retries never apply
// to mutating commands or to timeouts.
type RetryPolicy struct {
	Attempts int
	BaseWait time.Duration
}

// DefaultGitReadRetry is the retry policy used for idempotent git reads
// (git log, git show, git diff). Mutating commands are never retried.
var DefaultGitReadRetry = RetryPolicy{Attempts: 3, BaseWait: 200 * time.Millisecond}

// NoRetry performs the command once with no retry.
var NoRetry = RetryPolicy{Attempts: 1}

// errKindFor maps a command name to its error classification: git gets
// its own bucket, everything else is an I/O-layer failure.
func errKindFor(name string) taskerr.Kind {
	if name == "git" {
		return taskerr.KindGit
	}
	return taskerr.KindIO
}

// Result is the captured output of one external process invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Provider runs external commands on behalf of the rest of the package,
// applying a context timeout, an optional retry policy, and an
// OpenTelemetry span per attempt.
type Provider struct {
	Dir string
}

// New returns a Provider rooted at dir (typically the repository root).
func New(dir string) *Provider {
	return &Provider{Dir: dir}
}

// Run executes name with args, retrying according to policy. A non-zero
// exit with stderr output and a non-zero exit with none produce distinct
// error variants; a context deadline produces its own variant and is
// never retried.
func (p *Provider) Run(ctx context.Context, timeout time.Duration, policy RetryPolicy, name string, args ...string) (*Result, error) {
	if policy.Attempts <= 0 {
		policy = NoRetry
	}

	var lastErr error
	for attempt := 1; attempt <= policy.Attempts; attempt++ {
		res, err := p.runOnce(ctx, timeout, name, args...)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if !taskerr.IsRetryable(err) {
			return nil, err
		}
		if attempt < policy.Attempts {
			time.Sleep(policy.BaseWait * time.Duration(1<<uint(attempt-1)))
		}
	}
	return nil, lastErr
}

func (p *Provider) runOnce(ctx context.Context, timeout time.Duration, name string, args ...string) (*Result, error) {
	spanCtx, span := tracer.Start(ctx, "procexec.run", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("command", name),
		attribute.StringSlice("args", args),
		attribute.Int64("timeout_ms", timeout.Milliseconds()),
	)

	if timeout > 0 {
		var cancel context.CancelFunc
		spanCtx, cancel = context.WithTimeout(spanCtx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(spanCtx, name, args...)
	cmd.Dir = p.Dir
	killProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	exitCode := 0
	if ee, ok := err.(*exec.ExitError); ok {
		exitCode = ee.ExitCode()
	}
	span.SetAttributes(attribute.Int("exit_code", exitCode))

	if spanCtx.Err() == context.DeadlineExceeded {
		span.SetStatus(codes.Error, "timeout")
		return nil, taskerr.Wrap(errKindFor(name), fmt.Sprintf("%s timed out after %s", name, timeout), spanCtx.Err())
	}

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		stderrStr := strings.TrimSpace(stderr.String())
		if stderrStr != "" {
			return nil, taskerr.Wrap(errKindFor(name), fmt.Sprintf("%s failed: %s", name, stderrStr), err).AsRetryable()
		}
		return nil, taskerr.Wrap(errKindFor(name), fmt.Sprintf("%s failed with no stderr output", name), err).AsRetryable()
	}

	return &Result{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitCode}, nil
}

// RunGit is a convenience wrapper applying DefaultGitTimeout and no retry
// (mutating/ambiguous commands) or DefaultGitReadRetry for declared reads.
func (p *Provider) RunGit(ctx context.Context, idempotentRead bool, args ...string) (*Result, error) {
	policy := NoRetry
	if idempotentRead {
		policy = DefaultGitReadRetry
	}
	return p.Run(ctx, DefaultGitTimeout, policy, "git", args...)
}

// RunGitWithEnv is RunGit with additional environment variables appended
// to the child process's environment — used to scope git to a temporary
// index via GIT_INDEX_FILE without touching the caller's own environment.
func (p *Provider) RunGitWithEnv(ctx context.Context, idempotentRead bool, env []string, args ...string) (*Result, error) {
	policy := NoRetry
	if idempotentRead {
		policy = DefaultGitReadRetry
	}
	return p.runWithEnv(ctx, DefaultGitTimeout, policy, env, "git", args...)
}

func (p *Provider) runWithEnv(ctx context.Context, timeout time.Duration, policy RetryPolicy, env []string, name string, args ...string) (*Result, error) {
	if policy.Attempts <= 0 {
		policy = NoRetry
	}
	var lastErr error
	for attempt := 1; attempt <= policy.Attempts; attempt++ {
		res, err := p.runOnceWithEnv(ctx, timeout, env, name, args...)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !taskerr.IsRetryable(err) {
			return nil, err
		}
		if attempt < policy.Attempts {
			time.Sleep(policy.BaseWait * time.Duration(1<<uint(attempt-1)))
		}
	}
	return nil, lastErr
}

func (p *Provider) runOnceWithEnv(ctx context.Context, timeout time.Duration, env []string, name string, args ...string) (*Result, error) {
	spanCtx, span := tracer.Start(ctx, "procexec.run", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("command", name),
		attribute.StringSlice("args", args),
		attribute.Int64("timeout_ms", timeout.Milliseconds()),
	)

	if timeout > 0 {
		var cancel context.CancelFunc
		spanCtx, cancel = context.WithTimeout(spanCtx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(spanCtx, name, args...)
	cmd.Dir = p.Dir
	killProcessGroup(cmd)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	exitCode := 0
	if ee, ok := err.(*exec.ExitError); ok {
		exitCode = ee.ExitCode()
	}
	span.SetAttributes(attribute.Int("exit_code", exitCode))

	if spanCtx.Err() == context.DeadlineExceeded {
		span.SetStatus(codes.Error, "timeout")
		return nil, taskerr.Wrap(errKindFor(name), fmt.Sprintf("%s timed out after %s", name, timeout), spanCtx.Err())
	}

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		stderrStr := strings.TrimSpace(stderr.String())
		if stderrStr != "" {
			return nil, taskerr.Wrap(errKindFor(name), fmt.Sprintf("%s failed: %s", name, stderrStr), err).AsRetryable()
		}
		return nil, taskerr.Wrap(errKindFor(name), fmt.Sprintf("%s failed with no stderr output", name), err).AsRetryable()
	}

	return &Result{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitCode}, nil
}
