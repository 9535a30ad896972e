package model

import (
	"time"

	"telegram-ai-generation/internal/domain"
)

// User is a Telegram user known to the bot. TelegramID is the primary key
// everywhere in this codebase; the ledger and orchestrator are keyed by it.
type User struct {
	TelegramID   int64
	Username     string
	RegisteredAt time.Time
	LastActiveAt time.Time
}

func NewUser(telegramID int64, username string) (*User, error) {
	if telegramID == 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &User{
		TelegramID:   telegramID,
		Username:     username,
		RegisteredAt: now,
		LastActiveAt: now,
	}, nil
}
