package notifier

import "sync"

const historyCap = 300

// historyRing keeps the latest historyCap outcomes.
type historyRing struct {
	mu    sync.Mutex
	items []HistoryItem
	next  int // overwrite position once full
}

func (h *historyRing) add(it HistoryItem) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.items) < historyCap {
		h.items = append(h.items, it)
		return
	}
	h.items[h.next] = it
	h.next = (h.next + 1) % historyCap
}

// snapshot returns the outcomes oldest first.
func (h *historyRing) snapshot() []HistoryItem {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]HistoryItem, 0, len(h.items))
	out = append(out, h.items[h.next:]...)
	return append(out, h.items[:h.next]...)
}

// Snapshot returns recent delivery outcomes, oldest first.
func (s *Service) Snapshot() []HistoryItem { return s.history.snapshot() }
