package summary

import (
	"context"
	stderrors "errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-summary/errors"
	"github.com/nijaru/yt-summary/events"
	"github.com/nijaru/yt-summary/runner"
)

// CLIStreamer drives the gemini command line tool. The prompt is passed as an
// argument so stdout carries nothing but the model's answer.
type CLIStreamer struct {
	runner  runner.Runner
	path    string
	model   string
	timeout time.Duration
}

func NewCLIStreamer(r runner.Runner, path, model string, timeout time.Duration) *CLIStreamer {
	return &CLIStreamer{runner: r, path: path, model: model, timeout: timeout}
}

func (s *CLIStreamer) Stream(ctx context.Context, log *logrus.Entry, req Request, listener events.Listener) (string, error) {
	const op = "summary.CLIStreamer.Stream"

	parent := ctx
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	lines := make(chan string, 16)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.runner.Stream(ctx, s.path, []string{"-m", s.model, "-p", req.Prompt}, lines)
	}()

	out := &collector{listener: listener}
	for line := range lines {
		out.add(line)
	}

	if err := <-errCh; err != nil {
		log.WithError(err).WithField("lines", len(out.lines)).Error("Summarization backend failed")
		return "", classify(op, parent, ctx, err)
	}

	log.WithField("lines", len(out.lines)).Info("Summarization finished")
	return out.result(), nil
}

func classify(op string, parent, ctx context.Context, err error) error {
	var exitErr *runner.ExitError
	switch {
	case parent.Err() != nil:
		return pkgerrors.Wrap(parent.Err(), "summarization interrupted")
	case stderrors.Is(ctx.Err(), context.DeadlineExceeded):
		return errors.SummarizationFailed(op, err, "AI 분석 시간이 초과되었습니다.")
	case stderrors.As(err, &exitErr):
		return errors.SummarizationFailed(op, err, "Gemini CLI 오류: "+exitErr.Stderr)
	default:
		return errors.SummarizationFailed(op, err, "AI 분석을 시작하지 못했습니다.")
	}
}
