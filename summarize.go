package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/nijaru/yt-summary/events"
	"github.com/nijaru/yt-summary/logger"
	"github.com/nijaru/yt-summary/pipeline"
)

func newSummarizeCommand(load configLoader) *cobra.Command {
	var language string
	var length int

	cmd := &cobra.Command{
		Use:   "summarize <url>",
		Short: "Summarize one video and print the streamed result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return errors.Wrap(err, "load configuration")
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			log, err := logger.NewWithConsole(cfg, os.Stderr)
			if err != nil {
				return errors.Wrap(err, "initialize logger")
			}

			service, err := pipeline.NewService(cmd.Context(), cfg, pipeline.WithLogger(log))
			if err != nil {
				return errors.Wrap(err, "initialize pipeline")
			}

			out := cmd.OutOrStdout()
			printer := newEventPrinter(out, isColorTerminal(out))
			res, err := service.Run(cmd.Context(), pipeline.Request{
				URL:      args[0],
				Language: language,
				Length:   length,
			}, printer)
			if err != nil {
				return errors.New(printer.lastError())
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, renderResult(res))
			return nil
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "Subtitle language (defaults to the configured default)")
	cmd.Flags().IntVarP(&length, "length", "n", 0, "Summary length in characters")
	return cmd
}

// eventPrinter renders job events for a terminal. Partial responses are the
// summary itself; everything else is decoration.
type eventPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	color   bool
	errText string
}

func newEventPrinter(out io.Writer, color bool) *eventPrinter {
	return &eventPrinter{out: out, color: color}
}

func (p *eventPrinter) Emit(e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e.Type {
	case events.Status:
		fmt.Fprintln(p.out, p.paint(text.FgCyan, "» "+e.Data))
	case events.PartialResponse:
		fmt.Fprintln(p.out, e.Data)
	case events.Error:
		p.errText = e.Data
		fmt.Fprintln(p.out, p.paint(text.FgRed, "✗ "+e.Data))
	}
}

func (p *eventPrinter) lastError() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.errText == "" {
		return "summarization failed"
	}
	return p.errText
}

func (p *eventPrinter) paint(c text.Color, s string) string {
	if !p.color {
		return s
	}
	return c.Sprint(s)
}

func isColorTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func renderResult(res pipeline.Result) string {
	rows := [][]string{
		{"Job", res.JobID},
		{"URL", res.URL},
		{"Language", res.Language},
		{"Length", strconv.Itoa(res.Length)},
		{"Subtitle chars", strconv.Itoa(res.SubtitleChars)},
		{"Keyframes", strconv.Itoa(res.Keyframes)},
		{"Elapsed", res.Elapsed.Round(100 * time.Millisecond).String()},
	}
	return renderTable([]string{"Field", "Value"}, rows, nil)
}
