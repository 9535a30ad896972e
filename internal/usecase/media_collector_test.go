//go:build !integration

// File: internal/usecase/media_collector_test.go
package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMediaBatchCollector_Collect(t *testing.T) {
	ctx := context.Background()

	t.Run("drains items pushed before and during the debounce", func(t *testing.T) {
		c := NewMediaBatchCollector(50 * time.Millisecond)
		c.Push(1, "album-1", "file-a")
		c.Push(1, "album-1", "file-b")

		go func() {
			time.Sleep(10 * time.Millisecond)
			c.Push(1, "album-1", "file-c")
		}()

		batch, err := c.Collect(ctx, 1, "album-1")

		if err != nil {
			t.Fatalf("Collect: %v", err)
		}
		if len(batch.FileIDs) != 3 {
			t.Errorf("batch size = %d, want 3 (%v)", len(batch.FileIDs), batch.FileIDs)
		}
		if c.Pending() != 0 {
			t.Errorf("pending = %d, want 0", c.Pending())
		}
	})

	t.Run("keys are isolated per chat and group", func(t *testing.T) {
		c := NewMediaBatchCollector(20 * time.Millisecond)
		c.Push(1, "album-1", "file-a")
		c.Push(2, "album-1", "file-b")

		batch, err := c.Collect(ctx, 1, "album-1")

		if err != nil {
			t.Fatalf("Collect: %v", err)
		}
		if len(batch.FileIDs) != 1 || batch.FileIDs[0] != "file-a" {
			t.Errorf("batch = %v, want [file-a]", batch.FileIDs)
		}
	})

	t.Run("a group is drained exactly once", func(t *testing.T) {
		c := NewMediaBatchCollector(20 * time.Millisecond)
		for i := 0; i < 5; i++ {
			c.Push(1, "album-1", "file")
		}

		var wg sync.WaitGroup
		var mu sync.Mutex
		total := 0
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				batch, err := c.Collect(ctx, 1, "album-1")
				if err != nil {
					t.Errorf("Collect: %v", err)
					return
				}
				mu.Lock()
				total += len(batch.FileIDs)
				mu.Unlock()
			}()
		}
		wg.Wait()

		if total != 5 {
			t.Errorf("total drained = %d, want 5", total)
		}
	})

	t.Run("clearing a chat drops its pending buffers", func(t *testing.T) {
		c := NewMediaBatchCollector(20 * time.Millisecond)
		c.Push(1, "album-1", "file-a")
		c.Push(2, "album-2", "file-b")

		c.ClearChat(1)

		batch, err := c.Collect(ctx, 1, "album-1")
		if err != nil {
			t.Fatalf("Collect: %v", err)
		}
		if len(batch.FileIDs) != 0 {
			t.Errorf("batch = %v, want empty after ClearChat", batch.FileIDs)
		}
		if c.Pending() != 1 {
			t.Errorf("pending = %d, want 1 (other chat untouched)", c.Pending())
		}
	})

	t.Run("a cancelled context aborts the wait", func(t *testing.T) {
		c := NewMediaBatchCollector(time.Second)
		c.Push(1, "album-1", "file-a")
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := c.Collect(cctx, 1, "album-1")

		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	})
}
