package repository

import (
	"context"

	"telegram-ai-generation/internal/domain/model"
)

// GenerationJobRepository persists job lifecycle transitions for audit. The
// single-in-flight invariant is enforced by the orchestrator's in-process
// registry, not by this table.
type GenerationJobRepository interface {
	Save(ctx context.Context, tx Tx, job *model.GenerationJob) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.GenerationJob, error)
	ListNonTerminal(ctx context.Context, tx Tx) ([]*model.GenerationJob, error)
	CountByState(ctx context.Context, tx Tx) (map[model.JobState]int, error)
}
