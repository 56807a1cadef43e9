package relay

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Item is one sealed blob waiting in a mailbox.
type Item struct {
	ID            string
	Blob          []byte
	SenderKey     []byte
	SenderAddress string
	ReceivedAt    time.Time
}

// Inbox is the in-memory mailbox store of a relay: one FIFO queue per
// (recipient, channel) pair. Nothing is persisted; a relay restart
// drops undelivered items, which the protocol tolerates by design.
type Inbox struct {
	mu     sync.Mutex
	queues map[string][]Item
}

func NewInbox() *Inbox {
	return &Inbox{queues: map[string][]Item{}}
}

func (i *Inbox) Push(recipient, channel string, it Item) {
	if it.ID == `` {
		it.ID = uuid.New().String()
	}
	if it.ReceivedAt.IsZero() {
		it.ReceivedAt = time.Now()
	}

	key := mailboxKey(recipient, channel)

	i.mu.Lock()
	defer i.mu.Unlock()
	i.queues[key] = append(i.queues[key], it)
}

// Pop removes and returns up to limit items in arrival order. An empty
// or unknown mailbox yields an empty slice. The returned cursor is an
// opaque token identifying this poll.
func (i *Inbox) Pop(recipient, channel string, limit int) ([]Item, string) {
	key := mailboxKey(recipient, channel)

	i.mu.Lock()
	defer i.mu.Unlock()

	queue := i.queues[key]
	if len(queue) == 0 {
		return nil, uuid.New().String()
	}

	if limit <= 0 || limit > len(queue) {
		limit = len(queue)
	}

	items := make([]Item, limit)
	copy(items, queue[:limit])

	rest := queue[limit:]
	if len(rest) == 0 {
		delete(i.queues, key)
	} else {
		i.queues[key] = rest
	}

	return items, uuid.New().String()
}

func mailboxKey(recipient, channel string) string {
	return recipient + `|` + channel
}
