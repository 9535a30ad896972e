package adapter

import "context"

// TaskState classifies one provider poll response.
type TaskState string

const (
	TaskStateRunning   TaskState = "running"
	TaskStateSucceeded TaskState = "succeeded"
	TaskStateFailed    TaskState = "failed"
)

// TaskStatus is the decoded result of polling one provider task.
type TaskStatus struct {
	State      TaskState
	ResultURLs []string // set when State == TaskStateSucceeded
	FailReason string   // set when State == TaskStateFailed
}

// GenerationRequest carries everything the provider needs for one task.
// InputURLs must already be publicly fetchable (see Upload).
type GenerationRequest struct {
	Prompt       string
	InputURLs    []string
	AspectRatio  string
	Resolution   string
	OutputFormat string
}

// GenerationProvider is the port for the external, slow, unreliable
// generation service. Network errors, malformed responses and indefinite
// "running" answers are all expected; callers own retry and timeout policy.
type GenerationProvider interface {
	Name() string

	// Upload stores input bytes with the provider and returns a fetchable URL.
	Upload(ctx context.Context, data []byte, filename string) (string, error)

	// CreateTask submits a generation request and returns an opaque task handle.
	CreateTask(ctx context.Context, req GenerationRequest) (taskID string, err error)

	// PollTask fetches the current status of a task.
	PollTask(ctx context.Context, taskID string) (TaskStatus, error)

	// Download fetches a finished artifact.
	Download(ctx context.Context, url string) ([]byte, error)
}
