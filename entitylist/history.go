package entitylist

import (
	"strings"
	"sync"
)

// DefaultHistorySize is the number of recent search terms kept.
const DefaultHistorySize = 10

// History keeps the most recent distinct search terms, newest first.
type History struct {
	mu    sync.Mutex
	size  int
	terms []string
}

// NewHistory returns a history holding at most size terms.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{size: size}
}

// Add moves term to the front, dropping the oldest term past capacity.
func (h *History) Add(term string) {
	term = strings.TrimSpace(term)
	if term == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	next := make([]string, 0, h.size)
	next = append(next, term)
	for _, t := range h.terms {
		if t != term && len(next) < h.size {
			next = append(next, t)
		}
	}
	h.terms = next
}

// Terms returns the recent terms, newest first.
func (h *History) Terms() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.terms...)
}

// Suggest returns the recent terms containing prefix, case-insensitively.
func (h *History) Suggest(prefix string) []string {
	prefix = strings.ToLower(strings.TrimSpace(prefix))

	h.mu.Lock()
	defer h.mu.Unlock()

	var out []string
	for _, t := range h.terms {
		if strings.Contains(strings.ToLower(t), prefix) {
			out = append(out, t)
		}
	}
	return out
}

// Clear forgets every term.
func (h *History) Clear() {
	h.mu.Lock()
	h.terms = nil
	h.mu.Unlock()
}
