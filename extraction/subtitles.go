package extraction

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-summary/runner"
	"github.com/nijaru/yt-summary/utils"
)

const subtitleBase = "subtitles"

type SubtitleExtractor struct {
	runner runner.Runner
	opts   Options
}

func NewSubtitleExtractor(r runner.Runner, opts Options) *SubtitleExtractor {
	return &SubtitleExtractor{runner: r, opts: opts}
}

// Extract fetches human and automatic captions for lang into dir. A missing
// caption file is an empty result, not an error.
func (e *SubtitleExtractor) Extract(ctx context.Context, log *logrus.Entry, url, lang, dir string) SubtitleResult {
	ctx, cancel := withTimeout(ctx, e.opts.SubtitleTimeout)
	defer cancel()

	args := []string{
		"--skip-download",
		"--write-subs",
		"--write-auto-subs",
		"--sub-langs", lang,
		"--sub-format", "vtt",
		"--no-playlist",
	}
	args = append(args, e.opts.durationFilter()...)
	args = append(args, "-o", filepath.Join(dir, subtitleBase+".%(ext)s"), "--", url)

	if _, err := e.runner.Run(ctx, e.opts.YtDlpPath, args...); err != nil {
		log.WithError(err).WithField("language", lang).Warn("Subtitle extraction failed")
		return SubtitleResult{Err: err}
	}

	path, err := findCaptionFile(dir)
	if err != nil {
		log.WithError(err).Warn("Failed to look for caption file")
		return SubtitleResult{Err: err}
	}
	if path == "" {
		log.WithField("language", lang).Info("No captions available")
		return SubtitleResult{}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		err = errors.Wrap(err, "read caption file")
		log.WithError(err).Warn("Subtitle extraction failed")
		return SubtitleResult{Err: err}
	}

	text := utils.TruncateRunes(string(data), e.opts.SubtitleMaxLength)
	log.WithFields(logrus.Fields{
		"file":  filepath.Base(path),
		"chars": len([]rune(text)),
	}).Info("Subtitles extracted")
	return SubtitleResult{Text: text, OK: text != ""}
}

// findCaptionFile matches on extension only; the tool names the file after the
// language it actually found, which may differ from the requested code.
func findCaptionFile(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.vtt"))
	if err != nil {
		return "", errors.Wrap(err, "glob caption files")
	}
	if len(matches) == 0 {
		return "", nil
	}
	sort.Strings(matches)
	return matches[0], nil
}
