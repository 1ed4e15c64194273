// Package history keeps the most recent alerts in a bounded ring buffer.
package history

import (
	"sync"

	"FinAlert/internal/domain/models"
)

// DefaultCapacity is the number of alerts kept when no capacity is given.
const DefaultCapacity = 50

// History is a bounded, insertion-ordered alert buffer. Recording past capacity
// evicts the oldest entry. Safe for concurrent use.
type History struct {
	mu   sync.RWMutex
	buf  []models.Alert
	head int // next write position
	size int
}

// New creates a history holding at most capacity alerts.
func New(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History{buf: make([]models.Alert, capacity)}
}

// Record adds a to the front, evicting the oldest entry when full.
func (h *History) Record(a models.Alert) {
	h.mu.Lock()
	h.record(a)
	h.mu.Unlock()
}

func (h *History) record(a models.Alert) {
	h.buf[h.head] = a
	h.head = (h.head + 1) % len(h.buf)
	if h.size < len(h.buf) {
		h.size++
	}
}

// Snapshot returns the retained alerts, most recent first.
func (h *History) Snapshot() []models.Alert {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]models.Alert, h.size)
	n := len(h.buf)
	for i := 0; i < h.size; i++ {
		out[i] = h.buf[(h.head-1-i+n)%n]
	}
	return out
}

// Clear drops every retained alert.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clear()
}

func (h *History) clear() {
	clear(h.buf)
	h.head = 0
	h.size = 0
}

// Restore replaces the contents with snapshot (most recent first).
// Entries beyond capacity, the oldest ones, are dropped.
func (h *History) Restore(snapshot []models.Alert) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clear()
	if len(snapshot) > len(h.buf) {
		snapshot = snapshot[:len(h.buf)]
	}
	for i := len(snapshot) - 1; i >= 0; i-- {
		h.record(snapshot[i])
	}
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}

func (h *History) Capacity() int { return len(h.buf) }
