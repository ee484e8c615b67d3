package runner

import (
	"bufio"
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const defaultWaitDelay = 5 * time.Second

// Runner executes external tools. Implementations must honour ctx by
// terminating the tool and everything it spawned.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Output, error)
	// Stream sends each stdout line to lines as it is produced and closes
	// lines before returning.
	Stream(ctx context.Context, name string, args []string, lines chan<- string) error
}

type Output struct {
	Stdout string
	Stderr string
}

// ExitError reports a tool that ran and exited non-zero.
type ExitError struct {
	Name   string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s exited with status %d: %s", e.Name, e.Code, e.Stderr)
	}
	return fmt.Sprintf("%s exited with status %d", e.Name, e.Code)
}

type CommandRunner struct {
	waitDelay time.Duration
	logger    *logrus.Logger
}

type Option func(*CommandRunner)

func WithWaitDelay(d time.Duration) Option {
	return func(r *CommandRunner) {
		r.waitDelay = d
	}
}

func New(logger *logrus.Logger, opts ...Option) *CommandRunner {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	r := &CommandRunner{
		waitDelay: defaultWaitDelay,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *CommandRunner) command(ctx context.Context, name string, args []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = r.waitDelay
	configureProcessGroup(cmd)

	r.logger.WithFields(logrus.Fields{
		"tool": name,
		"args": summarizeArgs(args),
	}).Debug("Executing command")
	return cmd
}

func (r *CommandRunner) Run(ctx context.Context, name string, args ...string) (Output, error) {
	cmd := r.command(ctx, name, args)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{Stdout: stdout.String(), Stderr: strings.TrimSpace(stderr.String())}
	if err != nil {
		return out, r.classify(ctx, name, err, out.Stderr)
	}
	return out, nil
}

func (r *CommandRunner) Stream(ctx context.Context, name string, args []string, lines chan<- string) error {
	defer close(lines)

	cmd := r.command(ctx, name, args)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrapf(err, "stdout pipe for %s", name)
	}
	if err := cmd.Start(); err != nil {
		return r.classify(ctx, name, err, "")
	}

	readErr := forwardLines(ctx, stdout, lines)

	err = cmd.Wait()
	if err != nil {
		return r.classify(ctx, name, err, strings.TrimSpace(stderr.String()))
	}
	if readErr != nil {
		return errors.Wrapf(readErr, "read %s output", name)
	}
	return nil
}

// forwardLines reads until EOF. Trailing carriage returns are dropped; a final
// line without a newline is still delivered.
func forwardLines(ctx context.Context, r io.Reader, lines chan<- string) error {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			line = strings.TrimRight(line, "\r\n")
			select {
			case lines <- line:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

func (r *CommandRunner) classify(ctx context.Context, name string, err error, stderr string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		r.logger.WithFields(logrus.Fields{
			"tool":  name,
			"cause": ctxErr,
		}).Warn("Command terminated")
		return errors.Wrapf(ctxErr, "%s terminated", name)
	}

	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		r.logger.WithFields(logrus.Fields{
			"tool":   name,
			"code":   exitErr.ExitCode(),
			"stderr": stderr,
		}).Debug("Command exited non-zero")
		return &ExitError{Name: name, Code: exitErr.ExitCode(), Stderr: stderr}
	}
	return errors.Wrapf(err, "run %s", name)
}

func summarizeArgs(args []string) []string {
	const maxArg = 120
	out := make([]string, len(args))
	for i, a := range args {
		if len(a) > maxArg {
			a = fmt.Sprintf("%s...(%d bytes)", a[:maxArg], len(a))
		}
		out[i] = a
	}
	return out
}
