package model

import (
	"time"

	"telegram-ai-generation/internal/domain"
)

type GrantStatus string

const (
	GrantStatusActive   GrantStatus = "active"
	GrantStatusInactive GrantStatus = "inactive"
)

// CreditKind selects which counter of a grant a charge or refund touches.
type CreditKind string

const (
	CreditPhoto CreditKind = "photo"
	CreditVideo CreditKind = "video"
)

func (k CreditKind) Valid() bool { return k == CreditPhoto || k == CreditVideo }

// unlimitedDuration stands in for "no expiry" on zero-duration plans.
const unlimitedDuration = 100 * 365 * 24 * time.Hour

// Grant is one user's live instantiation of a Plan: the record that holds the
// consumable photo/video counters. At most one grant per user is active;
// superseded grants are deactivated, never deleted.
type Grant struct {
	ID             string
	UserID         int64
	PlanID         string
	ActivatedAt    time.Time
	ExpiresAt      time.Time
	RemainingPhoto int
	RemainingVideo int
	Status         GrantStatus
}

// NewGrant builds a fresh active grant from a plan, filling counters from the
// plan allotments and computing the expiry from now.
func NewGrant(id string, userID int64, plan *Plan, now time.Time) (*Grant, error) {
	if id == "" || userID == 0 || plan.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	expires := now.Add(unlimitedDuration)
	if plan.DurationDays > 0 {
		expires = now.Add(time.Duration(plan.DurationDays) * 24 * time.Hour)
	}
	return &Grant{
		ID:             id,
		UserID:         userID,
		PlanID:         plan.ID,
		ActivatedAt:    now,
		ExpiresAt:      expires,
		RemainingPhoto: plan.PhotoCredits,
		RemainingVideo: plan.VideoCredits,
		Status:         GrantStatusActive,
	}, nil
}

func (g *Grant) Expired(now time.Time) bool { return now.After(g.ExpiresAt) }

// Remaining returns the counter matching kind.
func (g *Grant) Remaining(kind CreditKind) int {
	if kind == CreditVideo {
		return g.RemainingVideo
	}
	return g.RemainingPhoto
}
