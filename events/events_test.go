package events

import (
	"sync"
	"testing"
)

func TestRecorderConcurrentEmit(t *testing.T) {
	rec := &Recorder{}
	l := Serialized(rec)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Emit(Event{Type: Status, Data: StatusSubtitles})
		}()
	}
	wg.Wait()

	if got := rec.Count(Status); got != 50 {
		t.Errorf("unexpected status count: got %d want 50", got)
	}
	if got := rec.Count(Done); got != 0 {
		t.Errorf("unexpected done count: got %d", got)
	}
}

func TestListenerFunc(t *testing.T) {
	var got Event
	ListenerFunc(func(e Event) { got = e }).Emit(Event{Type: PartialResponse, Data: "line"})
	if got.Type != PartialResponse || got.Data != "line" {
		t.Errorf("unexpected event: %+v", got)
	}
	Discard.Emit(Event{Type: Done})
}
