package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-summary/errors"
	"github.com/nijaru/yt-summary/events"
	"github.com/nijaru/yt-summary/middleware"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 50 * time.Second
	eventSummarize = "summarize_video"
)

type inboundMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// wsListener serializes writes; gorilla connections allow one writer at a time.
type wsListener struct {
	mu   sync.Mutex
	conn *websocket.Conn
	log  *logrus.Entry
}

func (l *wsListener) Emit(e events.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := l.conn.WriteJSON(e); err != nil {
		l.log.WithError(err).WithField("event", e.Type).Debug("Dropped event")
	}
}

// handleWebSocket serves one client connection. Each summarize_video message
// starts an independent job; closing the connection cancels every job it
// started and waits for their workspaces to be released.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := h.logger.WithFields(logrus.Fields{
		"request_id": middleware.GetRequestID(r.Context()),
		"remote_ip":  r.RemoteAddr,
	})
	log.Info("Client connected")

	listener := &wsListener{conn: conn, log: log}

	ctx, cancel := context.WithCancel(r.Context())
	var jobs sync.WaitGroup
	defer func() {
		cancel()
		jobs.Wait()
		log.Info("Client disconnected")
	}()

	conn.SetReadLimit(maxRequestBytes)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go ping(ctx, conn)

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("Websocket read failed")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		if msg.Event != eventSummarize {
			log.WithField("event", msg.Event).Debug("Ignoring unknown event")
			continue
		}

		payload, err := decodePayload(msg.Data)
		if err != nil {
			rejectEvents(listener, "요청 형식이 올바르지 않습니다.")
			continue
		}
		if !h.limiter.Allow() {
			log.WithField("url", payload.URL).Warn("Job rejected by rate limiter")
			rejectEvents(listener, errors.Message(middleware.ErrRateLimited))
			continue
		}

		h.accept()
		jobs.Add(1)
		go func() {
			defer jobs.Done()
			h.run(ctx, payload, listener)
		}()
	}
}

func ping(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
