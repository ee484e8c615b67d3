package runner

import (
	"context"
	stderrors "errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testRunner() *CommandRunner {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return New(log, WithWaitDelay(time.Second))
}

func TestRunCapturesOutput(t *testing.T) {
	out, err := testRunner().Run(context.Background(), "sh", "-c", "echo hello; echo oops >&2")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if strings.TrimSpace(out.Stdout) != "hello" {
		t.Errorf("unexpected stdout: %q", out.Stdout)
	}
	if out.Stderr != "oops" {
		t.Errorf("unexpected stderr: %q", out.Stderr)
	}
}

func TestRunExitError(t *testing.T) {
	_, err := testRunner().Run(context.Background(), "sh", "-c", "echo quota exceeded >&2; exit 3")
	var exitErr *ExitError
	if !stderrors.As(err, &exitErr) {
		t.Fatalf("expected *ExitError, got %T: %v", err, err)
	}
	if exitErr.Code != 3 {
		t.Errorf("unexpected exit code: got %d want 3", exitErr.Code)
	}
	if exitErr.Stderr != "quota exceeded" {
		t.Errorf("unexpected stderr: %q", exitErr.Stderr)
	}
}

func TestRunMissingBinary(t *testing.T) {
	_, err := testRunner().Run(context.Background(), "definitely-not-a-real-tool-xyz")
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	var exitErr *ExitError
	if stderrors.As(err, &exitErr) {
		t.Errorf("missing binary should not be an exit error")
	}
}

func TestStreamPreservesOrder(t *testing.T) {
	lines := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		errCh <- testRunner().Stream(context.Background(), "sh",
			[]string{"-c", "for i in 1 2 3 4 5 6 7 8 9 10 11; do echo line$i; done; printf tail"}, lines)
	}()

	var got []string
	for line := range lines {
		got = append(got, line)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	if len(got) != 12 {
		t.Fatalf("expected 12 lines, got %d: %v", len(got), got)
	}
	if got[0] != "line1" || got[10] != "line11" || got[11] != "tail" {
		t.Errorf("unexpected lines: %v", got)
	}
}

func TestStreamExitError(t *testing.T) {
	lines := make(chan string, 8)
	err := testRunner().Stream(context.Background(), "sh",
		[]string{"-c", "echo partial; echo backend exploded >&2; exit 1"}, lines)

	var exitErr *ExitError
	if !stderrors.As(err, &exitErr) {
		t.Fatalf("expected *ExitError, got %v", err)
	}
	if exitErr.Stderr != "backend exploded" {
		t.Errorf("unexpected stderr: %q", exitErr.Stderr)
	}
	if line := <-lines; line != "partial" {
		t.Errorf("expected partial line before failure, got %q", line)
	}
	if _, open := <-lines; open {
		t.Error("lines should be closed after Stream returns")
	}
}

func TestRunCancellationKillsProcessGroup(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := testRunner().Run(ctx, "sh", "-c", "sleep 30 & sleep 30; wait")
	if err == nil {
		t.Fatal("expected error after deadline")
	}
	if !stderrors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("command was not torn down promptly: %v", elapsed)
	}
}

func TestSummarizeArgs(t *testing.T) {
	long := strings.Repeat("x", 500)
	got := summarizeArgs([]string{"-p", long})
	if got[0] != "-p" {
		t.Errorf("short args should be untouched: %q", got[0])
	}
	if len(got[1]) >= len(long) || !strings.HasSuffix(got[1], "(500 bytes)") {
		t.Errorf("long arg not summarized: %q", got[1])
	}
}
