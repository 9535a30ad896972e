package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"telegram-ai-generation/internal/domain"
)

// FileCache keeps downloaded Telegram file bytes for the debounce window, so
// a media batch resubmitted as one generation request does not re-download
// every photo from the Bot API.
type FileCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewFileCache(client RedisClient, ttl time.Duration) *FileCache {
	return &FileCache{client: client, ttl: ttl}
}

func fileKey(chatID int64, fileID string) string {
	return fmt.Sprintf("file:%d:%s", chatID, fileID)
}

func (c *FileCache) Store(ctx context.Context, chatID int64, fileID string, data []byte) error {
	return c.client.Set(ctx, fileKey(chatID, fileID), data, c.ttl)
}

// Fetch returns domain.ErrNotFound on a cache miss.
func (c *FileCache) Fetch(ctx context.Context, chatID int64, fileID string) ([]byte, error) {
	data, err := c.client.Get(ctx, fileKey(chatID, fileID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return []byte(data), nil
}

func (c *FileCache) Delete(ctx context.Context, chatID int64, fileIDs ...string) error {
	keys := make([]string, 0, len(fileIDs))
	for _, id := range fileIDs {
		keys = append(keys, fileKey(chatID, id))
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...)
}
