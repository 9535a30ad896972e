package adapter

import "context"

// Artifact is one generated output ready for delivery.
type Artifact struct {
	Filename string
	Data     []byte
}

// DeliverySink is how the orchestrator hands results back to the chat layer.
// The sink owns all rendering; the orchestrator only decides what happened.
type DeliverySink interface {
	// DeliverArtifacts sends finished outputs to the user.
	DeliverArtifacts(ctx context.Context, chatID int64, artifacts []Artifact) error
	// DeliverFailure sends a human-readable failure notice.
	DeliverFailure(ctx context.Context, chatID int64, text string) error
	// Notify sends a plain service message (payment confirmed etc).
	Notify(ctx context.Context, chatID int64, text string) error
}

// FileSource resolves Telegram file ids into raw bytes. Implementations may
// cache aggressively; file ids are stable per bot.
type FileSource interface {
	FetchFile(ctx context.Context, chatID int64, fileID string) ([]byte, error)
}
