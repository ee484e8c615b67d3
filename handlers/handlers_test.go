package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-summary/config"
	"github.com/nijaru/yt-summary/events"
	"github.com/nijaru/yt-summary/middleware"
	"github.com/nijaru/yt-summary/pipeline"
)

type fakeJobs struct {
	mu   sync.Mutex
	reqs []pipeline.Request
	run  func(ctx context.Context, req pipeline.Request, l events.Listener)
}

func (f *fakeJobs) Run(ctx context.Context, req pipeline.Request, l events.Listener) (pipeline.Result, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	defer l.Emit(events.Event{Type: events.Done})
	if f.run != nil {
		f.run(ctx, req, l)
	}
	return pipeline.Result{}, nil
}

func (f *fakeJobs) requests() []pipeline.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pipeline.Request(nil), f.reqs...)
}

func successfulJob(ctx context.Context, req pipeline.Request, l events.Listener) {
	l.Emit(events.Event{Type: events.Thinking})
	l.Emit(events.Event{Type: events.Status, Data: events.StatusSubtitles})
	l.Emit(events.Event{Type: events.PartialResponse, Data: "첫 줄"})
	l.Emit(events.Event{Type: events.FinalResponse, Data: "첫 줄"})
}

func newTestHandler(jobs JobRunner, burst int) *Handler {
	log := logrus.New()
	log.SetOutput(io.Discard)
	cfg := config.Default()
	cfg.Version = "test"
	return New(cfg, jobs,
		WithLogger(log),
		WithRateLimiter(middleware.NewRateLimiter(time.Hour, burst)),
	)
}

func TestHealth(t *testing.T) {
	h := newTestHandler(&fakeJobs{}, 1)
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %v want %v", rr.Code, http.StatusOK)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestIndex(t *testing.T) {
	h := newTestHandler(&fakeJobs{}, 1)
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %v", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "summarize_video") {
		t.Error("index should contain the websocket client")
	}

	rr = httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, httptest.NewRequest("GET", "/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown paths should 404, got %v", rr.Code)
	}
}

func TestSummarizeSSE(t *testing.T) {
	jobs := &fakeJobs{run: successfulJob}
	h := newTestHandler(jobs, 5)

	body := strings.NewReader(`{"url":"https://youtu.be/x","language":"en","summaryLength":"500"}`)
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, httptest.NewRequest("POST", "/api/v1/summarize", body))

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %v body %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("unexpected content type: %q", ct)
	}

	out := rr.Body.String()
	order := []string{
		"event: thinking\ndata: \"\"\n\n",
		"event: status\ndata: \"자막 추출 중...\"\n\n",
		"event: partial_response\ndata: \"첫 줄\"\n\n",
		"event: final_response\n",
		"event: done\n",
	}
	pos := 0
	for _, want := range order {
		i := strings.Index(out[pos:], want)
		if i < 0 {
			t.Fatalf("missing or out of order %q in:\n%s", want, out)
		}
		pos += i + len(want)
	}

	reqs := jobs.requests()
	if len(reqs) != 1 || reqs[0].Length != 500 || reqs[0].Language != "en" {
		t.Errorf("unexpected request passed to pipeline: %+v", reqs)
	}
}

func TestSummarizeSSERejects(t *testing.T) {
	h := newTestHandler(&fakeJobs{}, 1)
	routes := h.Routes()

	rr := httptest.NewRecorder()
	routes.ServeHTTP(rr, httptest.NewRequest("POST", "/api/v1/summarize", strings.NewReader("{not json")))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("invalid body: got %v want %v", rr.Code, http.StatusBadRequest)
	}

	rr = httptest.NewRecorder()
	routes.ServeHTTP(rr, httptest.NewRequest("POST", "/api/v1/summarize", strings.NewReader(`{"url":"https://youtu.be/x"}`)))
	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("rate limit: got %v want %v", rr.Code, http.StatusTooManyRequests)
	}
	if !strings.Contains(rr.Body.String(), middleware.ErrRateLimited.Message) {
		t.Errorf("rejection should carry the rate limit message: %s", rr.Body.String())
	}
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

func send(t *testing.T, conn *websocket.Conn, data string) {
	t.Helper()
	msg := `{"event":"summarize_video","data":` + data + `}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatal(err)
	}
}

func readUntilDone(t *testing.T, conn *websocket.Conn) []events.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var got []events.Event
	for {
		var e events.Event
		if err := conn.ReadJSON(&e); err != nil {
			t.Fatalf("read failed after %v: %v", got, err)
		}
		got = append(got, e)
		if e.Type == events.Done {
			return got
		}
	}
}

func TestWebSocketJob(t *testing.T) {
	jobs := &fakeJobs{run: successfulJob}
	srv := httptest.NewServer(newTestHandler(jobs, 5).Routes())
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	send(t, conn, `{"url":"https://youtu.be/x","language":"ko","summaryLength":200}`)
	got := readUntilDone(t, conn)

	var names []string
	for _, e := range got {
		names = append(names, string(e.Type))
	}
	if strings.Join(names, ",") != "thinking,status,partial_response,final_response,done" {
		t.Errorf("unexpected events: %v", names)
	}
	if got[3].Data != "첫 줄" {
		t.Errorf("unexpected final response: %+v", got[3])
	}
	if reqs := jobs.requests(); len(reqs) != 1 || reqs[0].Length != 200 || reqs[0].URL != "https://youtu.be/x" {
		t.Errorf("unexpected requests: %+v", reqs)
	}
}

func TestWebSocketRateLimited(t *testing.T) {
	jobs := &fakeJobs{run: successfulJob}
	srv := httptest.NewServer(newTestHandler(jobs, 1).Routes())
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	send(t, conn, `{"url":"https://youtu.be/x"}`)
	readUntilDone(t, conn)

	send(t, conn, `{"url":"https://youtu.be/y"}`)
	got := readUntilDone(t, conn)
	if len(got) != 2 || got[0].Type != events.Error || got[0].Data != middleware.ErrRateLimited.Message {
		t.Errorf("expected rate limit rejection, got %+v", got)
	}
	if len(jobs.requests()) != 1 {
		t.Errorf("rejected job should not reach the pipeline")
	}
}

func TestWebSocketDisconnectCancelsJob(t *testing.T) {
	started := make(chan struct{})
	cancelled := make(chan struct{})
	jobs := &fakeJobs{run: func(ctx context.Context, req pipeline.Request, l events.Listener) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	}}
	h := newTestHandler(jobs, 5)
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	conn := dial(t, srv)
	send(t, conn, `{"url":"https://youtu.be/x"}`)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job never started")
	}
	conn.Close()

	select {
	case <-cancelled:
	case <-time.After(5 * time.Second):
		t.Fatal("closing the connection should cancel the job")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Wait(ctx); err != nil {
		t.Errorf("Wait should return once jobs finish: %v", err)
	}
}

func TestWaitCoversAcceptedJobs(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	jobs := &fakeJobs{run: func(ctx context.Context, req pipeline.Request, l events.Listener) {
		close(started)
		<-release
	}}
	h := newTestHandler(jobs, 5)
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	send(t, conn, `{"url":"https://youtu.be/x"}`)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job never started")
	}

	short, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := h.Wait(short); err != context.DeadlineExceeded {
		t.Fatalf("Wait should block while a job runs, got %v", err)
	}

	close(release)
	readUntilDone(t, conn)

	ctx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := h.Wait(ctx); err != nil {
		t.Errorf("Wait should return once the job finishes: %v", err)
	}
}

func TestFlexInt(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{`200`, 200},
		{`"500"`, 500},
		{`1000.0`, 1000},
		{`null`, 0},
		{`""`, 0},
		{`"abc"`, 0},
	}
	for _, tt := range tests {
		var n flexInt
		if err := json.Unmarshal([]byte(tt.in), &n); err != nil {
			t.Errorf("Unmarshal(%s) failed: %v", tt.in, err)
			continue
		}
		if int(n) != tt.want {
			t.Errorf("Unmarshal(%s) = %d, want %d", tt.in, n, tt.want)
		}
	}
}
