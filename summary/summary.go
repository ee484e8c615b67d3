package summary

import (
	"context"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-summary/config"
	"github.com/nijaru/yt-summary/events"
	"github.com/nijaru/yt-summary/runner"
)

type Request struct {
	Prompt    string
	Keyframes []string
}

// Streamer runs one summarization attempt. Each output line is emitted as a
// partial_response as soon as it is available; the returned summary is the
// trimmed join of those lines.
type Streamer interface {
	Stream(ctx context.Context, log *logrus.Entry, req Request, listener events.Listener) (string, error)
}

// New returns the streamer selected by cfg.SummaryBackend.
func New(ctx context.Context, cfg *config.Config, r runner.Runner) (Streamer, error) {
	switch cfg.SummaryBackend {
	case config.BackendAPI:
		return NewAPIStreamer(ctx, cfg.GoogleAPIKey, cfg.GeminiModel, cfg.SummarizeTimeout)
	case config.BackendCLI, "":
		return NewCLIStreamer(r, cfg.GeminiPath, cfg.GeminiModel, cfg.SummarizeTimeout), nil
	default:
		return nil, pkgerrors.Errorf("unknown summary backend %q", cfg.SummaryBackend)
	}
}

// collector forwards lines and remembers them for the final response.
type collector struct {
	listener events.Listener
	lines    []string
}

func (c *collector) add(line string) {
	c.lines = append(c.lines, line)
	c.listener.Emit(events.Event{Type: events.PartialResponse, Data: line})
}

func (c *collector) result() string {
	return strings.TrimSpace(strings.Join(c.lines, "\n"))
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
