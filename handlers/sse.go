package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-summary/events"
	"github.com/nijaru/yt-summary/utils"
)

// sseListener writes one frame per event. It is not safe for concurrent use;
// wrap it with events.Serialized.
type sseListener struct {
	w       http.ResponseWriter
	flusher http.Flusher
	log     *logrus.Entry
}

func (l *sseListener) Emit(e events.Event) {
	data, _ := json.Marshal(e.Data)
	if _, err := fmt.Fprintf(l.w, "event: %s\ndata: %s\n\n", e.Type, data); err != nil {
		l.log.WithError(err).WithField("event", e.Type).Debug("Dropped event")
		return
	}
	l.flusher.Flush()
}

// handleSummarize runs one job and streams its events as server-sent events.
// The job is cancelled if the client goes away.
func (h *Handler) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var payload jobPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&payload); err != nil {
		utils.HandleError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.HandleError(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	listener := events.Serialized(&sseListener{
		w:       w,
		flusher: flusher,
		log:     h.logger.WithField("url", payload.URL),
	})
	h.accept()
	h.run(r.Context(), payload, listener)
}
