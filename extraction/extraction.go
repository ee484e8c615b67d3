package extraction

import (
	"context"
	"fmt"
	"time"

	"github.com/nijaru/yt-summary/config"
)

// SubtitleResult is the outcome of one subtitle extraction. OK is false when
// no caption text was produced; Err is set only when the tool itself failed.
// Neither case ends the job on its own.
type SubtitleResult struct {
	Text string
	OK   bool
	Err  error
}

// KeyframeResult is the outcome of one keyframe extraction. Paths are absolute
// and ordered by frame index.
type KeyframeResult struct {
	Paths []string
	OK    bool
	Err   error
}

type Result struct {
	Subtitles SubtitleResult
	Keyframes KeyframeResult
}

// Empty reports whether neither signal is usable.
func (r Result) Empty() bool {
	return !r.Subtitles.OK && !r.Keyframes.OK
}

type Options struct {
	YtDlpPath         string
	FFmpegPath        string
	MaxVideoLength    int
	KeyframeInterval  int
	MaxKeyframes      int
	SubtitleMaxLength int
	SubtitleTimeout   time.Duration
	DownloadTimeout   time.Duration
	SampleTimeout     time.Duration
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		YtDlpPath:         cfg.YtDlpPath,
		FFmpegPath:        cfg.FFmpegPath,
		MaxVideoLength:    cfg.MaxVideoLength,
		KeyframeInterval:  cfg.KeyframeInterval,
		MaxKeyframes:      cfg.MaxKeyframes,
		SubtitleMaxLength: cfg.SubtitleMaxLength,
		SubtitleTimeout:   cfg.SubtitleTimeout,
		DownloadTimeout:   cfg.DownloadTimeout,
		SampleTimeout:     cfg.SampleTimeout,
	}
}

// durationFilter keeps the fetch tool from touching videos longer than the
// configured limit. Videos that report no duration (direct media links, live
// pages) still pass.
func (o Options) durationFilter() []string {
	if o.MaxVideoLength <= 0 {
		return nil
	}
	return []string{"--match-filter", fmt.Sprintf("duration <=? %d", o.MaxVideoLength)}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
