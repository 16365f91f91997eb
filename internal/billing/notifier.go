package billing

import (
	"sync"

	"supermarket/terminal/internal/domain"
)

// Notifier receives the engine's user-facing events: rejections, sale
// success and failure. Implementations must not block.
type Notifier interface {
	Notify(n domain.Notification)
}

type NopNotifier struct{}

func (NopNotifier) Notify(domain.Notification) {}

// FeedNotifier keeps a bounded in-memory feed of recent notifications for
// the UI to poll. Oldest entries fall off once the cap is reached.
type FeedNotifier struct {
	mu      sync.Mutex
	cap     int
	entries []domain.Notification
}

func NewFeedNotifier(capacity int) *FeedNotifier {
	if capacity < 1 {
		capacity = 100
	}
	return &FeedNotifier{cap: capacity}
}

func (f *FeedNotifier) Notify(n domain.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.entries = append(f.entries, n)
	if len(f.entries) > f.cap {
		f.entries = f.entries[len(f.entries)-f.cap:]
	}
}

// Recent returns up to limit notifications, newest first.
func (f *FeedNotifier) Recent(limit int) []domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	if limit < 1 || limit > len(f.entries) {
		limit = len(f.entries)
	}
	out := make([]domain.Notification, 0, limit)
	for i := len(f.entries) - 1; i >= len(f.entries)-limit; i-- {
		out = append(out, f.entries[i])
	}
	return out
}
