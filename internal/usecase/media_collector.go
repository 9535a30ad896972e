// File: internal/usecase/media_collector.go
package usecase

import (
	"context"
	"sync"
	"time"
)

// Batch is everything collected for one media group.
type Batch struct {
	FileIDs []string
}

type batchKey struct {
	ChatID  int64
	GroupID string
}

// MediaBatchCollector buffers file ids that arrive as one logical upload (a
// Telegram album) and hands them out as a single batch after a debounce
// window. The first item's handler calls Collect; items racing in during the
// debounce are still captured. A key is drained exactly once: a concurrent
// second Collect on the same key gets an empty batch.
type MediaBatchCollector struct {
	debounce time.Duration

	mu      sync.Mutex
	buffers map[batchKey][]string
}

func NewMediaBatchCollector(debounce time.Duration) *MediaBatchCollector {
	if debounce <= 0 {
		debounce = 800 * time.Millisecond
	}
	return &MediaBatchCollector{
		debounce: debounce,
		buffers:  make(map[batchKey][]string),
	}
}

// Push appends a file id to the group's buffer, creating it on first use.
func (c *MediaBatchCollector) Push(chatID int64, groupID, fileID string) {
	key := batchKey{ChatID: chatID, GroupID: groupID}
	c.mu.Lock()
	c.buffers[key] = append(c.buffers[key], fileID)
	c.mu.Unlock()
}

// Collect waits the debounce interval, then atomically drains and deletes the
// group's buffer. Returns an empty batch when the key was already drained or
// cleared, or when ctx is cancelled during the wait.
func (c *MediaBatchCollector) Collect(ctx context.Context, chatID int64, groupID string) (Batch, error) {
	timer := time.NewTimer(c.debounce)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return Batch{}, ctx.Err()
	case <-timer.C:
	}

	key := batchKey{ChatID: chatID, GroupID: groupID}
	c.mu.Lock()
	fileIDs := c.buffers[key]
	delete(c.buffers, key)
	c.mu.Unlock()

	return Batch{FileIDs: fileIDs}, nil
}

// ClearChat force-drops every buffer belonging to the chat, e.g. on session
// reset. In-flight Collect calls for those keys will drain empty.
func (c *MediaBatchCollector) ClearChat(chatID int64) {
	c.mu.Lock()
	for key := range c.buffers {
		if key.ChatID == chatID {
			delete(c.buffers, key)
		}
	}
	c.mu.Unlock()
}

// Pending reports how many groups are currently buffered (diagnostics).
func (c *MediaBatchCollector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffers)
}
