package extraction

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-summary/runner"
)

const (
	videoFile    = "video.mp4"
	framePattern = "frame_%d.jpg"
)

var frameName = regexp.MustCompile(`^frame_(\d+)\.jpg$`)

type KeyframeExtractor struct {
	runner runner.Runner
	opts   Options
}

func NewKeyframeExtractor(r runner.Runner, opts Options) *KeyframeExtractor {
	return &KeyframeExtractor{runner: r, opts: opts}
}

// Extract downloads the video into dir at no more than 720p and samples one
// frame every KeyframeInterval seconds.
func (e *KeyframeExtractor) Extract(ctx context.Context, log *logrus.Entry, url, dir string) KeyframeResult {
	paths, err := e.extract(ctx, log, url, dir)
	if err != nil {
		log.WithError(err).Warn("Keyframe extraction failed")
		return KeyframeResult{Err: err}
	}
	log.WithField("frames", len(paths)).Info("Keyframes extracted")
	return KeyframeResult{Paths: paths, OK: len(paths) > 0}
}

func (e *KeyframeExtractor) extract(ctx context.Context, log *logrus.Entry, url, dir string) ([]string, error) {
	video := filepath.Join(dir, videoFile)
	if err := e.download(ctx, url, video); err != nil {
		return nil, err
	}
	if _, err := os.Stat(video); err != nil {
		return nil, errors.Wrap(err, "downloaded video not found")
	}
	log.WithField("file", videoFile).Debug("Video downloaded")

	if err := e.sample(ctx, video, dir); err != nil {
		return nil, err
	}
	return listFrames(dir, e.opts.MaxKeyframes)
}

func (e *KeyframeExtractor) download(ctx context.Context, url, video string) error {
	ctx, cancel := withTimeout(ctx, e.opts.DownloadTimeout)
	defer cancel()

	args := []string{"-f", "best[height<=720]", "--no-playlist"}
	args = append(args, e.opts.durationFilter()...)
	args = append(args, "-o", video, "--", url)

	if _, err := e.runner.Run(ctx, e.opts.YtDlpPath, args...); err != nil {
		return errors.Wrap(err, "download video")
	}
	return nil
}

func (e *KeyframeExtractor) sample(ctx context.Context, video, dir string) error {
	ctx, cancel := withTimeout(ctx, e.opts.SampleTimeout)
	defer cancel()

	args := []string{
		"-nostdin",
		"-y",
		"-loglevel", "error",
		"-i", video,
		"-vf", fmt.Sprintf("fps=1/%d", e.opts.KeyframeInterval),
		filepath.Join(dir, framePattern),
	}
	if _, err := e.runner.Run(ctx, e.opts.FFmpegPath, args...); err != nil {
		return errors.Wrap(err, "sample frames")
	}
	return nil
}

// listFrames returns at most max frame paths ordered by their numeric index,
// so frame_10 comes after frame_9.
func listFrames(dir string, max int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "list frames")
	}

	type frame struct {
		index int
		path  string
	}
	var frames []frame
	for _, entry := range entries {
		m := frameName.FindStringSubmatch(entry.Name())
		if m == nil || entry.IsDir() {
			continue
		}
		index, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		frames = append(frames, frame{index: index, path: filepath.Join(dir, entry.Name())})
	}

	sort.Slice(frames, func(i, j int) bool { return frames[i].index < frames[j].index })
	if max >= 0 && len(frames) > max {
		frames = frames[:max]
	}

	paths := make([]string, len(frames))
	for i, f := range frames {
		paths[i] = f.path
	}
	return paths, nil
}
