// File: internal/usecase/generation_uc.go
package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"telegram-ai-generation/internal/domain"
	"telegram-ai-generation/internal/domain/model"
	"telegram-ai-generation/internal/domain/ports/adapter"
	"telegram-ai-generation/internal/domain/ports/repository"
	"telegram-ai-generation/internal/infra/metrics"
	"telegram-ai-generation/internal/infra/worker"
)

// SubmitRequest is one user-initiated generation.
type SubmitRequest struct {
	UserID        int64
	ChatID        int64
	Kind          model.CreditKind
	Prompt        string
	PromptSection string // passed to the refiner to pick an instruction style
	FileIDs       []string
	AspectRatio   string
	Resolution    string
	OutputFormat  string
}

// JobHandle is returned by Submit immediately; Done closes when the job
// reaches a terminal state.
type JobHandle struct {
	JobID  string
	UserID int64
	done   chan struct{}
}

func (h *JobHandle) Done() <-chan struct{} { return h.done }

// GenerationOrchestrator gates expensive provider jobs behind the credit
// ledger: charge first, submit second, refund on any non-success outcome,
// and never more than one live job per user.
type GenerationOrchestrator interface {
	Submit(ctx context.Context, req SubmitRequest) (*JobHandle, error)
	InFlight(userID int64) bool
}

var _ GenerationOrchestrator = (*generationUC)(nil)

type generationUC struct {
	ledger   CreditLedger
	provider adapter.GenerationProvider
	refiner  adapter.PromptRefiner // optional
	files    adapter.FileSource
	sink     adapter.DeliverySink
	jobs     repository.GenerationJobRepository
	pool     *worker.Pool

	pollInterval time.Duration
	pollBudget   time.Duration
	maxInput     int

	mu       sync.Mutex
	inflight map[int64]*JobHandle

	now func() time.Time
	log *zerolog.Logger
}

type OrchestratorOptions struct {
	PollInterval  time.Duration
	PollBudget    time.Duration
	MaxInputFiles int
}

func NewGenerationOrchestrator(
	ledger CreditLedger,
	provider adapter.GenerationProvider,
	refiner adapter.PromptRefiner,
	files adapter.FileSource,
	sink adapter.DeliverySink,
	jobs repository.GenerationJobRepository,
	pool *worker.Pool,
	opts OrchestratorOptions,
	logger *zerolog.Logger,
) *generationUC {
	l := logger.With().Str("component", "GenerationOrchestrator").Logger()
	if opts.PollInterval <= 0 {
		opts.PollInterval = 10 * time.Second
	}
	if opts.PollBudget <= 0 {
		opts.PollBudget = 12 * time.Minute
	}
	if opts.MaxInputFiles <= 0 {
		opts.MaxInputFiles = 5
	}
	return &generationUC{
		ledger:       ledger,
		provider:     provider,
		refiner:      refiner,
		files:        files,
		sink:         sink,
		jobs:         jobs,
		pool:         pool,
		pollInterval: opts.PollInterval,
		pollBudget:   opts.PollBudget,
		maxInput:     opts.MaxInputFiles,
		inflight:     make(map[int64]*JobHandle),
		now:          time.Now,
		log:          &l,
	}
}

func (g *generationUC) InFlight(userID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.inflight[userID]
	return ok
}

// acquireSlot is the synchronous check-and-set upholding the one-job-per-user
// invariant. It runs before any external call.
func (g *generationUC) acquireSlot(userID int64) (*JobHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.inflight[userID]; ok {
		return nil, domain.ErrJobAlreadyRunning
	}
	h := &JobHandle{UserID: userID, done: make(chan struct{})}
	g.inflight[userID] = h
	return h, nil
}

func (g *generationUC) releaseSlot(userID int64) {
	g.mu.Lock()
	h, ok := g.inflight[userID]
	delete(g.inflight, userID)
	g.mu.Unlock()
	if ok {
		close(h.done)
	}
}

func (g *generationUC) Submit(ctx context.Context, req SubmitRequest) (*JobHandle, error) {
	if !req.Kind.Valid() || req.UserID == 0 {
		return nil, domain.ErrInvalidArgument
	}

	handle, err := g.acquireSlot(req.UserID)
	if err != nil {
		return nil, err
	}

	if _, err := g.ledger.Charge(ctx, req.UserID, req.Kind); err != nil {
		g.releaseSlot(req.UserID)
		return nil, err
	}

	taskID, err := g.submitToProvider(ctx, req)
	if err != nil {
		// Nothing was created provider-side that we can track; compensate
		// the charge before surfacing the error.
		if rerr := g.ledger.Refund(ctx, req.UserID, req.Kind); rerr != nil {
			g.log.Error().Err(rerr).Int64("tg_id", req.UserID).Msg("refund after failed submission failed")
		}
		g.releaseSlot(req.UserID)
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderSubmitFailed, err)
	}

	now := g.now()
	job := &model.GenerationJob{
		ID:        ulid.Make().String(),
		UserID:    req.UserID,
		Kind:      req.Kind,
		TaskID:    taskID,
		State:     model.JobStateSubmitted,
		CreatedAt: now,
		UpdatedAt: now,
	}
	handle.JobID = job.ID
	if err := g.jobs.Save(ctx, repository.NoTX, job); err != nil {
		g.log.Error().Err(err).Str("job_id", job.ID).Msg("job audit insert failed")
	}

	if err := g.pool.Submit(func(ctx context.Context) error {
		g.pollLoop(ctx, job, req.ChatID)
		return nil
	}); err != nil {
		// Pool saturation counts as a submission failure: the task may
		// finish provider-side but nobody would ever collect it.
		if rerr := g.ledger.Refund(ctx, req.UserID, req.Kind); rerr != nil {
			g.log.Error().Err(rerr).Int64("tg_id", req.UserID).Msg("refund after pool rejection failed")
		}
		g.finishJob(job, model.JobStateFailed, "worker pool saturated")
		g.releaseSlot(req.UserID)
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderSubmitFailed, err)
	}

	g.log.Info().Str("job_id", job.ID).Int64("tg_id", req.UserID).Str("kind", string(req.Kind)).
		Str("task_id", taskID).Msg("generation job submitted")
	return handle, nil
}

// submitToProvider runs the pre-flight pipeline: prompt refinement, input
// fetch, upload, task creation. Any error here means no trackable task.
func (g *generationUC) submitToProvider(ctx context.Context, req SubmitRequest) (string, error) {
	prompt := req.Prompt
	if g.refiner != nil {
		refined, err := g.refiner.Refine(ctx, req.PromptSection, req.Prompt)
		if err != nil {
			g.log.Warn().Err(err).Int64("tg_id", req.UserID).Msg("prompt refinement failed, using raw prompt")
		} else if refined != "" {
			prompt = refined
		}
	}

	fileIDs := req.FileIDs
	if len(fileIDs) > g.maxInput {
		fileIDs = fileIDs[:g.maxInput]
	}
	urls := make([]string, 0, len(fileIDs))
	for i, fid := range fileIDs {
		data, err := g.files.FetchFile(ctx, req.ChatID, fid)
		if err != nil {
			return "", fmt.Errorf("fetch input %d: %w", i+1, err)
		}
		format := req.OutputFormat
		if format == "" {
			format = "png"
		}
		url, err := g.provider.Upload(ctx, data, fmt.Sprintf("%d_%d.%s", req.UserID, i+1, format))
		if err != nil {
			return "", fmt.Errorf("upload input %d: %w", i+1, err)
		}
		urls = append(urls, url)
	}

	return g.provider.CreateTask(ctx, adapter.GenerationRequest{
		Prompt:       prompt,
		InputURLs:    urls,
		AspectRatio:  req.AspectRatio,
		Resolution:   req.Resolution,
		OutputFormat: req.OutputFormat,
	})
}

// pollLoop drives one job to a terminal state. The slot release and audit
// write run in a deferred block so every exit path, including panics in
// delivery, frees the user's slot.
func (g *generationUC) pollLoop(ctx context.Context, job *model.GenerationJob, chatID int64) {
	start := g.now()
	deadline := start.Add(g.pollBudget)

	defer func() {
		g.persistJob(job)
		g.releaseSlot(job.UserID)
		if job.State.Terminal() {
			metrics.IncJob(string(job.Kind), string(job.State))
			metrics.ObserveJobDuration(string(job.Kind), g.now().Sub(start).Seconds())
		}
	}()

	job.State = model.JobStatePolling
	g.persistJob(job)

	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Shutdown mid-flight: the credit stays charged because the
			// provider may still deliver after restart. Reconciled later by
			// a provider-side audit.
			g.log.Warn().Str("job_id", job.ID).Int64("tg_id", job.UserID).
				Str("task_id", job.TaskID).Msg("poll loop abandoned at shutdown; job left charged")
			return
		case <-ticker.C:
		}

		if g.now().After(deadline) {
			job.State = model.JobStateTimedOut
			job.FailReason = fmt.Sprintf("no result within %s", g.pollBudget)
			g.refundAndReport(ctx, job, chatID,
				"Generation took too long and was cancelled. Your credit has been returned.")
			return
		}

		status, err := g.provider.PollTask(ctx, job.TaskID)
		if err != nil {
			// Transient by assumption; the budget bounds how long we retry.
			g.log.Debug().Err(err).Str("job_id", job.ID).Msg("poll error, will retry")
			continue
		}

		switch status.State {
		case adapter.TaskStateRunning:
			continue
		case adapter.TaskStateSucceeded:
			job.State = model.JobStateSucceeded
			g.deliverSuccess(ctx, job, chatID, status.ResultURLs)
			return
		case adapter.TaskStateFailed:
			job.State = model.JobStateFailed
			job.FailReason = status.FailReason
			g.refundAndReport(ctx, job, chatID,
				"Generation failed on the provider side. Your credit has been returned.")
			return
		default:
			g.log.Debug().Str("job_id", job.ID).Str("state", string(status.State)).Msg("unknown provider state, treating as running")
		}
	}
}

// refundAndReport compensates the charge and tells the user. The refund runs
// before the deferred slot release so a racing re-submit observes the
// restored balance.
func (g *generationUC) refundAndReport(ctx context.Context, job *model.GenerationJob, chatID int64, text string) {
	if err := g.ledger.Refund(ctx, job.UserID, job.Kind); err != nil {
		g.log.Error().Err(err).Str("job_id", job.ID).Int64("tg_id", job.UserID).Msg("terminal refund failed")
	}
	g.log.Info().Str("job_id", job.ID).Str("state", string(job.State)).Str("reason", job.FailReason).Msg("generation job did not succeed")
	if err := g.sink.DeliverFailure(ctx, chatID, text); err != nil {
		g.log.Error().Err(err).Str("job_id", job.ID).Msg("failure notice delivery failed")
	}
}

// deliverSuccess downloads and relays artifacts. The credit was legitimately
// consumed; a delivery error here is reported as such and never refunded.
func (g *generationUC) deliverSuccess(ctx context.Context, job *model.GenerationJob, chatID int64, urls []string) {
	artifacts := make([]adapter.Artifact, 0, len(urls))
	for i, u := range urls {
		data, err := g.provider.Download(ctx, u)
		if err != nil {
			g.log.Error().Err(err).Str("job_id", job.ID).Str("url", u).Msg("artifact download failed")
			continue
		}
		artifacts = append(artifacts, adapter.Artifact{
			Filename: fmt.Sprintf("result_%d.png", i+1),
			Data:     data,
		})
	}
	if len(artifacts) == 0 {
		g.log.Error().Str("job_id", job.ID).Msg("job succeeded but no artifact could be downloaded")
		_ = g.sink.DeliverFailure(ctx, chatID, "Generation finished but the result could not be delivered. Please contact support.")
		return
	}
	if err := g.sink.DeliverArtifacts(ctx, chatID, artifacts); err != nil {
		g.log.Error().Err(err).Str("job_id", job.ID).Msg("artifact delivery failed")
	}
}

func (g *generationUC) finishJob(job *model.GenerationJob, state model.JobState, reason string) {
	job.State = state
	job.FailReason = reason
	g.persistJob(job)
}

// persistJob writes the audit row with a detached context: the job outcome
// must be recorded even when the triggering context is gone.
func (g *generationUC) persistJob(job *model.GenerationJob) {
	job.UpdatedAt = g.now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.jobs.Save(ctx, repository.NoTX, job); err != nil {
		g.log.Error().Err(err).Str("job_id", job.ID).Str("state", string(job.State)).Msg("job audit update failed")
	}
}
