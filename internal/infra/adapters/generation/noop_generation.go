package generation

import (
	"context"
	"fmt"
	"sync"

	"telegram-ai-generation/internal/domain/ports/adapter"
)

var _ adapter.GenerationProvider = (*NoopProvider)(nil)

// NoopProvider is an in-memory provider for dev runs and tests. Every task
// succeeds on the first poll with a single fake artifact URL.
type NoopProvider struct {
	mu  sync.Mutex
	seq int64
}

func NewNoopProvider() *NoopProvider { return &NoopProvider{} }

func (p *NoopProvider) Name() string { return "noop" }

func (p *NoopProvider) next() string {
	p.seq++
	return fmt.Sprintf("noop-%d", p.seq)
}

func (p *NoopProvider) Upload(ctx context.Context, data []byte, filename string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return "https://example.test/uploads/" + p.next(), nil
}

func (p *NoopProvider) CreateTask(ctx context.Context, req adapter.GenerationRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return "task-" + p.next(), nil
}

func (p *NoopProvider) PollTask(ctx context.Context, taskID string) (adapter.TaskStatus, error) {
	return adapter.TaskStatus{
		State:      adapter.TaskStateSucceeded,
		ResultURLs: []string{"https://example.test/results/" + taskID},
	}, nil
}

func (p *NoopProvider) Download(ctx context.Context, url string) ([]byte, error) {
	return []byte("noop artifact"), nil
}
