package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-summary/config"
	"github.com/nijaru/yt-summary/errors"
	"github.com/nijaru/yt-summary/events"
	"github.com/nijaru/yt-summary/extraction"
	"github.com/nijaru/yt-summary/prompt"
	"github.com/nijaru/yt-summary/runner"
	"github.com/nijaru/yt-summary/summary"
	"github.com/nijaru/yt-summary/validation"
	"github.com/nijaru/yt-summary/workspace"
)

type Request struct {
	URL      string `json:"url"`
	Language string `json:"language"`
	Length   int    `json:"summaryLength"`
}

type Result struct {
	JobID         string
	URL           string
	Language      string
	Length        int
	Summary       string
	SubtitleChars int
	Keyframes     int
	Elapsed       time.Duration
}

type Workspaces interface {
	Acquire() (*workspace.Workspace, error)
	Release(*workspace.Workspace) error
}

type Extractor interface {
	Run(ctx context.Context, log *logrus.Entry, req extraction.Request, listener events.Listener) (extraction.Result, error)
}

// Service runs summarization jobs. It holds only immutable configuration and
// stateless collaborators, so one Service serves any number of concurrent jobs.
type Service struct {
	cfg        *config.Config
	logger     *logrus.Logger
	runner     runner.Runner
	workspaces Workspaces
	extractor  Extractor
	streamer   summary.Streamer
}

type Option func(*Service)

func WithLogger(logger *logrus.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithRunner(r runner.Runner) Option {
	return func(s *Service) {
		s.runner = r
	}
}

func WithWorkspaces(w Workspaces) Option {
	return func(s *Service) {
		s.workspaces = w
	}
}

func WithExtractor(e Extractor) Option {
	return func(s *Service) {
		s.extractor = e
	}
}

func WithStreamer(st summary.Streamer) Option {
	return func(s *Service) {
		s.streamer = st
	}
}

// NewService wires the default collaborators for anything not supplied through
// options.
func NewService(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	s := &Service{
		cfg:    cfg,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.runner == nil {
		s.runner = runner.New(s.logger)
	}
	if s.workspaces == nil {
		s.workspaces = workspace.NewManager(cfg.TempDir, s.logger)
	}
	if s.extractor == nil {
		extractOpts := extraction.OptionsFromConfig(cfg)
		s.extractor = extraction.NewCoordinator(
			extraction.NewSubtitleExtractor(s.runner, extractOpts),
			extraction.NewKeyframeExtractor(s.runner, extractOpts),
		)
	}
	if s.streamer == nil {
		st, err := summary.New(ctx, cfg, s.runner)
		if err != nil {
			return nil, err
		}
		s.streamer = st
	}
	return s, nil
}

// Normalize validates the URL and substitutes defaults for a language or
// length outside the allowed sets.
func (s *Service) Normalize(req Request) (Request, error) {
	if err := validation.ValidateURL(req.URL); err != nil {
		return req, errors.InvalidInput("pipeline.Normalize", err, err.Error())
	}
	return Request{
		URL:      strings.TrimSpace(req.URL),
		Language: validation.NormalizeLanguage(req.Language, s.cfg.AllowedLanguages, s.cfg.DefaultLanguage),
		Length:   validation.NormalizeLength(req.Length, s.cfg.AllowedLengths, s.cfg.DefaultLength),
	}, nil
}

// Run executes one job, emitting its events to listener. Whatever happens,
// the workspace is released and done is the last event.
func (s *Service) Run(ctx context.Context, req Request, listener events.Listener) (res Result, err error) {
	start := time.Now()
	if listener == nil {
		listener = events.Discard
	}
	res.JobID = uuid.New().String()
	log := s.logger.WithFields(logrus.Fields{
		"job_id": res.JobID,
		"url":    req.URL,
	})

	defer listener.Emit(events.Event{Type: events.Done})

	req, err = s.Normalize(req)
	if err != nil {
		log.WithError(err).Warn("Rejected job")
		listener.Emit(events.Event{Type: events.Error, Data: errors.Message(err)})
		return res, err
	}
	res.URL, res.Language, res.Length = req.URL, req.Language, req.Length

	listener.Emit(events.Event{Type: events.Thinking})
	log = log.WithFields(logrus.Fields{
		"language": req.Language,
		"length":   req.Length,
	})
	log.Info("Job started")

	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logrus.Fields{
				"panic": r,
				"stack": string(debug.Stack()),
			}).Error("Job panicked")
			err = errors.Internal("pipeline.Run", fmt.Errorf("panic: %v", r), "서버 오류가 발생했습니다.")
		}
		res.Elapsed = time.Since(start)
		if err != nil {
			s.fail(ctx, log, listener, err)
			return
		}
		log.WithFields(logrus.Fields{
			"elapsed":        res.Elapsed,
			"subtitle_chars": res.SubtitleChars,
			"keyframes":      res.Keyframes,
		}).Info("Job finished")
	}()

	ws, err := s.workspaces.Acquire()
	if err != nil {
		return res, err
	}
	defer func() {
		if releaseErr := s.workspaces.Release(ws); releaseErr != nil {
			log.WithError(releaseErr).WithField("workspace", ws.Path).Error("Workspace release failed")
		}
	}()
	log = log.WithField("workspace", ws.Path)

	extracted, err := s.extractor.Run(ctx, log, extraction.Request{
		URL:      req.URL,
		Language: req.Language,
		Dir:      ws.Path,
	}, listener)
	if err != nil {
		return res, err
	}
	res.SubtitleChars = len([]rune(extracted.Subtitles.Text))
	res.Keyframes = len(extracted.Keyframes.Paths)

	listener.Emit(events.Event{Type: events.Status, Data: events.StatusAnalysis})
	text, err := s.streamer.Stream(ctx, log, summary.Request{
		Prompt:    prompt.Build(req.Length, extracted.Subtitles.Text, extracted.Keyframes.Paths),
		Keyframes: extracted.Keyframes.Paths,
	}, listener)
	if err != nil {
		return res, err
	}

	res.Summary = text
	listener.Emit(events.Event{Type: events.FinalResponse, Data: text})
	return res, nil
}

func (s *Service) fail(ctx context.Context, log *logrus.Entry, listener events.Listener, err error) {
	message := errors.Message(err)
	entry := log.WithError(err).WithField("kind", errors.KindOf(err).String())

	switch {
	case ctx.Err() != nil && stderrors.Is(err, ctx.Err()):
		message = "작업이 취소되었습니다."
		entry.Warn("Job cancelled")
	case errors.IsExtractionFailed(err):
		entry.Warn("Job failed")
	default:
		entry.Error("Job failed")
	}

	listener.Emit(events.Event{Type: events.Error, Data: message})
}
