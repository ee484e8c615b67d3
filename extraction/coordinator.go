package extraction

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-summary/errors"
	"github.com/nijaru/yt-summary/events"
)

type SubtitleSource interface {
	Extract(ctx context.Context, log *logrus.Entry, url, lang, dir string) SubtitleResult
}

type KeyframeSource interface {
	Extract(ctx context.Context, log *logrus.Entry, url, dir string) KeyframeResult
}

type Request struct {
	URL      string
	Language string
	Dir      string
}

// Coordinator runs both extractors for one job. The extractors write disjoint
// files, so they run in parallel; one failing never cancels the other.
type Coordinator struct {
	subtitles SubtitleSource
	keyframes KeyframeSource
}

func NewCoordinator(subtitles SubtitleSource, keyframes KeyframeSource) *Coordinator {
	return &Coordinator{subtitles: subtitles, keyframes: keyframes}
}

// Run returns the combined result. It fails with ExtractionFailed only when
// both signals came back empty.
func (c *Coordinator) Run(ctx context.Context, log *logrus.Entry, req Request, listener events.Listener) (Result, error) {
	const op = "extraction.Run"

	var (
		wg     sync.WaitGroup
		result Result
	)

	listener.Emit(events.Event{Type: events.Status, Data: events.StatusSubtitles})
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer recoverInto(log, "subtitles", func(err error) { result.Subtitles = SubtitleResult{Err: err} })
		result.Subtitles = c.subtitles.Extract(ctx, log, req.URL, req.Language, req.Dir)
	}()

	listener.Emit(events.Event{Type: events.Status, Data: events.StatusKeyframes})
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer recoverInto(log, "keyframes", func(err error) { result.Keyframes = KeyframeResult{Err: err} })
		result.Keyframes = c.keyframes.Extract(ctx, log, req.URL, req.Dir)
	}()

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return result, pkgerrors.Wrap(err, "extraction interrupted")
	}

	log.WithFields(logrus.Fields{
		"subtitle_chars": len([]rune(result.Subtitles.Text)),
		"keyframes":      len(result.Keyframes.Paths),
	}).Info("Extraction finished")

	if result.Empty() {
		cause := pkgerrors.Errorf("subtitles: %v; keyframes: %v", result.Subtitles.Err, result.Keyframes.Err)
		return result, errors.ExtractionFailed(op, cause, "자막 또는 키프레임 추출에 실패했습니다. 영상을 확인하세요.")
	}
	return result, nil
}

func recoverInto(log *logrus.Entry, source string, set func(error)) {
	if r := recover(); r != nil {
		log.WithFields(logrus.Fields{
			"source": source,
			"panic":  r,
			"stack":  string(debug.Stack()),
		}).Error("Extractor panicked")
		set(fmt.Errorf("%s extractor panicked: %v", source, r))
	}
}
