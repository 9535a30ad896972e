package telegram

import (
	"context"
	"sync"

	"telegram-ai-generation/internal/domain/ports/adapter"
)

var (
	_ adapter.DeliverySink = (*NoopBot)(nil)
	_ adapter.FileSource   = (*NoopBot)(nil)
)

// NoopBot records deliveries in memory. Used in dev runs without a bot token
// and as a test double.
type NoopBot struct {
	mu        sync.Mutex
	Messages  []string
	Artifacts map[int64][]adapter.Artifact
	Files     map[string][]byte
}

func NewNoopBot() *NoopBot {
	return &NoopBot{
		Artifacts: make(map[int64][]adapter.Artifact),
		Files:     make(map[string][]byte),
	}
}

func (n *NoopBot) DeliverArtifacts(ctx context.Context, chatID int64, artifacts []adapter.Artifact) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Artifacts[chatID] = append(n.Artifacts[chatID], artifacts...)
	return nil
}

func (n *NoopBot) DeliverFailure(ctx context.Context, chatID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Messages = append(n.Messages, text)
	return nil
}

func (n *NoopBot) Notify(ctx context.Context, chatID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Messages = append(n.Messages, text)
	return nil
}

// FetchFile serves pre-seeded bytes keyed by file id.
func (n *NoopBot) FetchFile(ctx context.Context, chatID int64, fileID string) ([]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if data, ok := n.Files[fileID]; ok {
		return data, nil
	}
	return []byte("noop file " + fileID), nil
}
