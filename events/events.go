package events

import (
	"sync"
)

type Type string

const (
	Thinking        Type = "thinking"
	Status          Type = "status"
	PartialResponse Type = "partial_response"
	FinalResponse   Type = "final_response"
	Error           Type = "error"
	Done            Type = "done"
)

// Status messages emitted before each phase.
const (
	StatusSubtitles = "자막 추출 중..."
	StatusKeyframes = "키프레임 추출 중..."
	StatusAnalysis  = "AI 분석 중..."
)

// Event is one message to the listener. Data is empty for thinking and done.
type Event struct {
	Type Type   `json:"event"`
	Data string `json:"data,omitempty"`
}

// Listener receives job events in order. Emit must be safe to call from the
// goroutine running the job; delivery is best effort.
type Listener interface {
	Emit(Event)
}

type ListenerFunc func(Event)

func (f ListenerFunc) Emit(e Event) {
	f(e)
}

// Discard drops every event.
var Discard Listener = ListenerFunc(func(Event) {})

// Recorder keeps every event it receives. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many events of type t were recorded.
func (r *Recorder) Count(t Type) int {
	n := 0
	for _, e := range r.Events() {
		if e.Type == t {
			n++
		}
	}
	return n
}

// Serialized wraps l so that concurrent emitters never interleave inside it.
func Serialized(l Listener) Listener {
	var mu sync.Mutex
	return ListenerFunc(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		l.Emit(e)
	})
}
