package activity

import (
	"context"
	"sync"
)

// CaptureHook records events for assertions in tests and examples.
type CaptureHook struct {
	Events []Event
	Err    error
	mu     sync.Mutex
}

// Notify records the event and returns any configured error.
func (h *CaptureHook) Notify(_ context.Context, event Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Events = append(h.Events, NormalizeEvent(event))
	return h.Err
}

// Verbs lists the verbs captured so far, in order.
func (h *CaptureHook) Verbs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	verbs := make([]string, len(h.Events))
	for i, event := range h.Events {
		verbs[i] = event.Verb
	}
	return verbs
}

// Reset drops captured events.
func (h *CaptureHook) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Events = nil
}
