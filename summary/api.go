package summary

import (
	"context"
	"iter"
	"os"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"github.com/nijaru/yt-summary/errors"
	"github.com/nijaru/yt-summary/events"
)

type generateFunc func(ctx context.Context, model string, contents []*genai.Content) iter.Seq2[*genai.GenerateContentResponse, error]

// APIStreamer talks to the Gemini API directly and attaches the keyframes as
// inline images instead of relying on the model reading local paths.
type APIStreamer struct {
	generate generateFunc
	model    string
	timeout  time.Duration
}

func NewAPIStreamer(ctx context.Context, apiKey, model string, timeout time.Duration) (*APIStreamer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "create gemini client")
	}
	generate := func(ctx context.Context, model string, contents []*genai.Content) iter.Seq2[*genai.GenerateContentResponse, error] {
		return client.Models.GenerateContentStream(ctx, model, contents, nil)
	}
	return &APIStreamer{generate: generate, model: model, timeout: timeout}, nil
}

func (s *APIStreamer) Stream(ctx context.Context, log *logrus.Entry, req Request, listener events.Listener) (string, error) {
	const op = "summary.APIStreamer.Stream"

	parent := ctx
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	contents := buildContents(log, req)
	out := &collector{listener: listener}
	split := &lineSplitter{emit: out.add}

	for resp, err := range s.generate(ctx, s.model, contents) {
		if err != nil {
			log.WithError(err).WithField("lines", len(out.lines)).Error("Gemini API stream failed")
			if parent.Err() != nil {
				return "", pkgerrors.Wrap(parent.Err(), "summarization interrupted")
			}
			if ctx.Err() != nil {
				return "", errors.SummarizationFailed(op, err, "AI 분석 시간이 초과되었습니다.")
			}
			return "", errors.SummarizationFailed(op, err, "Gemini API 오류: "+err.Error())
		}
		if resp == nil {
			continue
		}
		split.write(resp.Text())
	}
	split.flush()

	log.WithField("lines", len(out.lines)).Info("Summarization finished")
	return out.result(), nil
}

func buildContents(log *logrus.Entry, req Request) []*genai.Content {
	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	for _, path := range req.Keyframes {
		data, err := os.ReadFile(path)
		if err != nil {
			log.WithError(err).WithField("file", path).Warn("Skipping unreadable keyframe")
			continue
		}
		parts = append(parts, genai.NewPartFromBytes(data, "image/jpeg"))
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

// lineSplitter turns arbitrary text chunks into whole lines.
type lineSplitter struct {
	buf  strings.Builder
	emit func(string)
}

func (l *lineSplitter) write(chunk string) {
	for {
		i := strings.IndexByte(chunk, '\n')
		if i < 0 {
			l.buf.WriteString(chunk)
			return
		}
		l.buf.WriteString(chunk[:i])
		l.emit(strings.TrimRight(l.buf.String(), "\r"))
		l.buf.Reset()
		chunk = chunk[i+1:]
	}
}

func (l *lineSplitter) flush() {
	if l.buf.Len() > 0 {
		l.emit(strings.TrimRight(l.buf.String(), "\r"))
		l.buf.Reset()
	}
}
