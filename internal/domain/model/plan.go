package model

import (
	"time"

	"telegram-ai-generation/internal/domain"
)

// Plan is a purchasable subscription tier: a fixed duration plus photo and
// video generation allotments. Plans are an operator-maintained catalog and
// are never mutated by user flows.
type Plan struct {
	ID           string
	Name         string
	SortOrder    int
	DurationDays int // 0 means unlimited duration
	PhotoCredits int
	VideoCredits int
	PriceRUB     int64
	CreatedAt    time.Time
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

// NewPlan validates and constructs a catalog entry.
func NewPlan(id, name string, durationDays, photoCredits, videoCredits int, priceRUB int64) (*Plan, error) {
	if id == "" || name == "" || durationDays < 0 || photoCredits < 0 || videoCredits < 0 || priceRUB < 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Plan{
		ID:           id,
		Name:         name,
		DurationDays: durationDays,
		PhotoCredits: photoCredits,
		VideoCredits: videoCredits,
		PriceRUB:     priceRUB,
		CreatedAt:    time.Now(),
	}, nil
}
