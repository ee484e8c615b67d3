package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-summary/config"
	"github.com/nijaru/yt-summary/events"
	"github.com/nijaru/yt-summary/middleware"
	"github.com/nijaru/yt-summary/pipeline"
	"github.com/nijaru/yt-summary/static"
	"github.com/nijaru/yt-summary/utils"
)

const maxRequestBytes = 64 << 10

type JobRunner interface {
	Run(ctx context.Context, req pipeline.Request, listener events.Listener) (pipeline.Result, error)
}

type Handler struct {
	cfg       *config.Config
	jobs      JobRunner
	limiter   middleware.RateLimiter
	logger    *logrus.Logger
	upgrader  websocket.Upgrader
	startTime time.Time
	active    sync.WaitGroup
}

type Option func(*Handler)

func WithLogger(logger *logrus.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

func WithRateLimiter(rl middleware.RateLimiter) Option {
	return func(h *Handler) {
		h.limiter = rl
	}
}

func New(cfg *config.Config, jobs JobRunner, opts ...Option) *Handler {
	h := &Handler{
		cfg:       cfg,
		jobs:      jobs,
		logger:    logrus.StandardLogger(),
		startTime: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.limiter == nil {
		h.limiter = middleware.NewRateLimiter(cfg.RateLimitInterval, cfg.RateLimit)
	}
	return h
}

// Routes returns the full handler tree with middleware applied.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /ws", h.handleWebSocket)
	mux.Handle("POST /api/v1/summarize", h.limiter.Middleware(http.HandlerFunc(h.handleSummarize)))

	return middleware.Chain(mux,
		middleware.Recovery(h.logger),
		middleware.RequestID(),
		middleware.Logging(h.logger),
	)
}

// accept registers a job with Wait. Call it before the job starts, and pair
// it with run.
func (h *Handler) accept() {
	h.active.Add(1)
}

// run executes a job registered by accept.
func (h *Handler) run(ctx context.Context, p jobPayload, listener events.Listener) {
	defer h.active.Done()
	h.jobs.Run(ctx, p.request(), listener)
}

// Wait blocks until every running job has returned or ctx is done.
func (h *Handler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.active.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeContent(w, r, "index.html", h.startTime, bytes.NewReader(static.Index))
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"version":   h.cfg.Version,
		"uptime":    time.Since(h.startTime).String(),
		"backend":   h.cfg.SummaryBackend,
	}
	if err := utils.WriteJSON(w, http.StatusOK, status); err != nil {
		h.logger.WithError(err).Error("Failed to write health response")
	}
}

// jobPayload is the summarize_video request body. summaryLength arrives as a
// number from the bundled client but other clients send it as a string.
type jobPayload struct {
	URL           string  `json:"url"`
	Language      string  `json:"language"`
	SummaryLength flexInt `json:"summaryLength"`
}

func (p jobPayload) request() pipeline.Request {
	return pipeline.Request{
		URL:      p.URL,
		Language: p.Language,
		Length:   int(p.SummaryLength),
	}
}

// flexInt decodes a JSON number or numeric string. Anything else becomes 0,
// which the pipeline replaces with the default length.
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		if f, ferr := strconv.ParseFloat(s, 64); ferr == nil {
			*n = flexInt(f)
			return nil
		}
		*n = 0
		return nil
	}
	*n = flexInt(v)
	return nil
}

func rejectEvents(listener events.Listener, message string) {
	listener.Emit(events.Event{Type: events.Error, Data: message})
	listener.Emit(events.Event{Type: events.Done})
}

func decodePayload(data json.RawMessage) (jobPayload, error) {
	var p jobPayload
	if len(data) == 0 {
		return p, nil
	}
	err := json.Unmarshal(data, &p)
	return p, err
}
