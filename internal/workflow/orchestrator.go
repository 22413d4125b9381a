package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"podcast-ai-backend/internal/events"
	"podcast-ai-backend/internal/generators"
	"podcast-ai-backend/internal/models"
	"podcast-ai-backend/internal/store"
)

// ErrInvalidEvent marks a trigger event failing validation; never retried.
var ErrInvalidEvent = errors.New("invalid trigger event")

// Transcriber converts an audio URL into a canonical transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL string) (*models.Transcript, error)
}

// Summarizer produces the summary content unit from transcript text.
type Summarizer interface {
	Summarize(ctx context.Context, transcriptText string) (*models.Summary, error)
}

// Step names of the processing pipeline.
const (
	stepSetStatusProcessing      = "set-status-processing"
	stepSetTranscribing          = "set-transcription-processing"
	stepTranscribe               = "transcribe-audio"
	stepSaveTranscript           = "save-transcript"
	stepMarkTranscribed          = "mark-transcription-complete"
	stepSaveContent              = "save-generated-content"
	stepSaveJobErrors            = "save-job-errors"
	stepMarkContentComplete      = "mark-content-generation-complete"
	stepSetStatusCompleted       = "set-status-completed"
	stepGenerateSummary          = "generate-summary"
	stepGenerateSocialPosts      = "generate-social-posts"
	stepGenerateTitles           = "generate-titles"
	stepGenerateHashtags         = "generate-hashtags"
	stepGenerateKeyMoments       = "generate-key-moments"
	stepGenerateYouTubeTimestamp = "generate-youtube-timestamps"
)

// stepErrorKeys maps each step to the job-error category shown on the
// matching UI tab when the workflow dies inside it.
var stepErrorKeys = map[string]models.JobKey{
	stepSetStatusProcessing:      models.JobGeneral,
	stepSetTranscribing:          models.JobTranscript,
	stepTranscribe:               models.JobTranscript,
	stepSaveTranscript:           models.JobTranscript,
	stepMarkTranscribed:          models.JobTranscript,
	stepSaveContent:              models.JobGeneral,
	stepSaveJobErrors:            models.JobGeneral,
	stepMarkContentComplete:      models.JobGeneral,
	stepSetStatusCompleted:       models.JobGeneral,
	stepGenerateSummary:          models.JobSummary,
	stepGenerateSocialPosts:      models.JobSocialPosts,
	stepGenerateTitles:           models.JobTitles,
	stepGenerateHashtags:         models.JobHashtags,
	stepGenerateKeyMoments:       models.JobKeyMoments,
	stepGenerateYouTubeTimestamp: models.JobYouTubeTimestamps,
	"panic":                      models.JobGeneral,
}

func errorKeyForStep(step string) models.JobKey {
	if key, ok := stepErrorKeys[step]; ok {
		return key
	}
	log.Printf("Warning: no job error key mapped for step %q, using general", step)
	return models.JobGeneral
}

// jobSteps maps generator job keys to their step names.
var jobSteps = map[models.JobKey]string{
	models.JobSummary:           stepGenerateSummary,
	models.JobSocialPosts:       stepGenerateSocialPosts,
	models.JobTitles:            stepGenerateTitles,
	models.JobHashtags:          stepGenerateHashtags,
	models.JobKeyMoments:        stepGenerateKeyMoments,
	models.JobYouTubeTimestamps: stepGenerateYouTubeTimestamp,
}

// Orchestrator drives one project from upload to terminal state as a
// sequence of named, independently retryable steps.
type Orchestrator struct {
	store       store.ProjectStore
	steps       StepLog
	transcriber Transcriber
	summarizer  Summarizer
	maxAttempts int
}

func NewOrchestrator(st store.ProjectStore, steps StepLog, t Transcriber, s Summarizer) *Orchestrator {
	return &Orchestrator{
		store:       st,
		steps:       steps,
		transcriber: t,
		summarizer:  s,
		maxAttempts: 3,
	}
}

// HandleUploaded is the host entry point for podcast/uploaded. The
// pipeline is re-invoked on uncaught failure a fixed number of times;
// committed steps are not recomputed on replay.
func (o *Orchestrator) HandleUploaded(ctx context.Context, evt events.PodcastUploaded) error {
	if err := evt.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	backoffs := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
	var lastErr error
	for attempt := 0; attempt < o.maxAttempts; attempt++ {
		lastErr = o.ProcessUploaded(ctx, evt)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrInvalidEvent) || ctx.Err() != nil {
			return lastErr
		}
		log.Printf("workflow attempt %d for project %s failed: %v", attempt+1, evt.ProjectID, lastErr)
		if attempt < len(backoffs) {
			time.Sleep(backoffs[attempt])
		}
	}
	return fmt.Errorf("workflow failed after %d attempts: %w", o.maxAttempts, lastErr)
}

// ProcessUploaded runs the pipeline once. On failure it records the
// job-level and top-level error, then re-raises the original failure so
// the outer retry layer sees it.
func (o *Orchestrator) ProcessUploaded(ctx context.Context, evt events.PodcastUploaded) error {
	if err := evt.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	projectID, err := uuid.Parse(evt.ProjectID)
	if err != nil {
		return fmt.Errorf("%w: bad project id: %v", ErrInvalidEvent, err)
	}

	run := NewRun("uploaded:"+evt.ProjectID, o.steps)
	if err := o.runPipeline(ctx, run, evt, projectID); err != nil {
		o.recordFailure(ctx, projectID, evt.UserID, err)
		return err
	}
	return nil
}

func (o *Orchestrator) runPipeline(ctx context.Context, run *Run, evt events.PodcastUploaded, projectID uuid.UUID) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &StepError{
				Step: "panic",
				Err:  &panicError{value: r, stack: debug.Stack()},
			}
		}
	}()

	if err := Do(ctx, run, stepSetStatusProcessing, func(ctx context.Context) error {
		return o.store.UpdateStatus(ctx, projectID, evt.UserID, models.StatusProcessing)
	}); err != nil {
		return err
	}

	if err := Do(ctx, run, stepSetTranscribing, func(ctx context.Context) error {
		processing := models.TranscriptionProcessing
		return o.store.UpdateJobStatuses(ctx, projectID, evt.UserID, &processing, nil)
	}); err != nil {
		return err
	}

	transcript, err := Step(ctx, run, stepTranscribe, func(ctx context.Context) (*models.Transcript, error) {
		return o.transcriber.Transcribe(ctx, evt.FileURL)
	})
	if err != nil {
		return err
	}

	if err := Do(ctx, run, stepSaveTranscript, func(ctx context.Context) error {
		return o.store.SaveTranscript(ctx, projectID, evt.UserID, transcript)
	}); err != nil {
		return err
	}

	if err := Do(ctx, run, stepMarkTranscribed, func(ctx context.Context) error {
		completed := models.TranscriptionCompleted
		running := models.ContentRunning
		return o.store.UpdateJobStatuses(ctx, projectID, evt.UserID, &completed, &running)
	}); err != nil {
		return err
	}

	content, jobErrs := o.fanOut(ctx, run, evt.Plan, transcript)

	if !content.IsEmpty() {
		if err := Do(ctx, run, stepSaveContent, func(ctx context.Context) error {
			return o.store.SaveGeneratedContent(ctx, projectID, evt.UserID, content)
		}); err != nil {
			return err
		}
	}
	if len(jobErrs) > 0 {
		if err := Do(ctx, run, stepSaveJobErrors, func(ctx context.Context) error {
			return o.store.SaveJobErrors(ctx, projectID, evt.UserID, jobErrs)
		}); err != nil {
			return err
		}
	}

	if err := Do(ctx, run, stepMarkContentComplete, func(ctx context.Context) error {
		completed := models.ContentCompleted
		return o.store.UpdateJobStatuses(ctx, projectID, evt.UserID, nil, &completed)
	}); err != nil {
		return err
	}

	return Do(ctx, run, stepSetStatusCompleted, func(ctx context.Context) error {
		return o.store.UpdateStatus(ctx, projectID, evt.UserID, models.StatusCompleted)
	})
}

// fanOut runs the plan-gated generators concurrently and settles every
// one of them: a job that fails is captured in the error map and never
// aborts or rolls back its siblings.
func (o *Orchestrator) fanOut(ctx context.Context, run *Run, plan models.Plan, transcript *models.Transcript) (models.GeneratedContent, map[models.JobKey]string) {
	jobs := generators.JobsForPlan(plan)
	cell := &summaryCell{summarizer: o.summarizer, text: transcript.Text}

	type jobResult struct {
		key   models.JobKey
		patch models.GeneratedContent
		err   error
	}
	results := make(chan jobResult, len(jobs))

	var wg sync.WaitGroup
	for _, key := range jobs {
		wg.Add(1)
		go func(key models.JobKey) {
			defer wg.Done()
			patch, err := o.runJob(ctx, run, key, cell, transcript)
			results <- jobResult{key: key, patch: patch, err: err}
		}(key)
	}
	wg.Wait()
	close(results)

	var content models.GeneratedContent
	jobErrs := make(map[models.JobKey]string)
	for r := range results {
		if r.err != nil {
			jobErrs[r.key] = r.err.Error()
			continue
		}
		content.Merge(r.patch)
	}
	return content, jobErrs
}

// runJob executes a single generator inside its own durable step.
func (o *Orchestrator) runJob(ctx context.Context, run *Run, key models.JobKey, cell *summaryCell, transcript *models.Transcript) (models.GeneratedContent, error) {
	stepName, ok := jobSteps[key]
	if !ok {
		return models.GeneratedContent{}, fmt.Errorf("unknown generator job %q", key)
	}

	return Step(ctx, run, stepName, func(ctx context.Context) (models.GeneratedContent, error) {
		switch key {
		case models.JobSummary:
			summary, err := cell.get(ctx)
			if err != nil {
				return models.GeneratedContent{}, err
			}
			return models.GeneratedContent{Summary: summary}, nil

		case models.JobSocialPosts:
			summary, err := cell.get(ctx)
			if err != nil {
				return models.GeneratedContent{}, err
			}
			posts, err := generators.SocialPosts(summary)
			if err != nil {
				return models.GeneratedContent{}, err
			}
			return models.GeneratedContent{SocialPosts: posts}, nil

		case models.JobTitles:
			summary, err := cell.get(ctx)
			if err != nil {
				return models.GeneratedContent{}, err
			}
			titles, err := generators.Titles(summary)
			if err != nil {
				return models.GeneratedContent{}, err
			}
			return models.GeneratedContent{Titles: titles}, nil

		case models.JobHashtags:
			tags := generators.Hashtags()
			return models.GeneratedContent{Hashtags: &tags}, nil

		case models.JobKeyMoments:
			moments := generators.KeyMoments(transcript)
			return models.GeneratedContent{KeyMoments: &moments}, nil

		case models.JobYouTubeTimestamps:
			stamps := generators.YouTubeTimestamps(transcript)
			return models.GeneratedContent{YouTubeTimestamps: &stamps}, nil
		}
		return models.GeneratedContent{}, fmt.Errorf("unknown generator job %q", key)
	})
}

// panicError wraps a recovered panic value together with the goroutine
// stack captured at the recovery site.
type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("workflow panicked: %v", e.value)
}

// recordFailure attributes the failure to a step, stores the job-level
// and top-level error and flips the project to failed. Secondary
// failures while recording are logged and swallowed so they never mask
// the original error.
func (o *Orchestrator) recordFailure(ctx context.Context, projectID uuid.UUID, userID string, cause error) {
	stepName := "unknown"
	var stepErr *StepError
	if errors.As(cause, &stepErr) {
		stepName = stepErr.Step
	}

	key := errorKeyForStep(stepName)
	if err := o.store.SaveJobErrors(ctx, projectID, userID, map[models.JobKey]string{
		key: cause.Error(),
	}); err != nil {
		log.Printf("failed to record job error for project %s: %v", projectID, err)
	}

	var stack string
	var pErr *panicError
	if errors.As(cause, &pErr) {
		stack = string(pErr.stack)
	}

	if err := o.store.RecordWorkflowError(ctx, projectID, userID, models.WorkflowError{
		Message:   cause.Error(),
		Step:      stepName,
		Stack:     stack,
		Timestamp: time.Now(),
	}); err != nil {
		log.Printf("failed to record workflow error for project %s: %v", projectID, err)
	}
}

// RetryJob re-runs one generator after a point failure or plan upgrade.
// Each retry uses a fresh run id so the committed result of the failed
// attempt does not short-circuit it.
func (o *Orchestrator) RetryJob(ctx context.Context, evt events.PodcastRetryJob) error {
	if err := evt.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	projectID, err := uuid.Parse(evt.ProjectID)
	if err != nil {
		return fmt.Errorf("%w: bad project id: %v", ErrInvalidEvent, err)
	}

	allowed := false
	for _, key := range generators.JobsForPlan(evt.CurrentPlan) {
		if key == evt.Job {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: job %q is not available on plan %q", ErrInvalidEvent, evt.Job, evt.CurrentPlan)
	}

	project, err := o.store.GetProject(ctx, projectID, evt.UserID)
	if err != nil {
		return fmt.Errorf("failed to load project for retry: %w", err)
	}
	if project.Transcript == nil {
		return fmt.Errorf("project %s has no transcript to generate from", evt.ProjectID)
	}

	run := NewRun("retry:"+evt.ProjectID+":"+uuid.NewString(), o.steps)
	cell := &summaryCell{summarizer: o.summarizer, text: project.Transcript.Text}
	if project.Content.Summary != nil {
		// Reuse the stored summary instead of paying for a new model call.
		cell.preload(project.Content.Summary)
	}

	patch, err := o.runJob(ctx, run, evt.Job, cell, project.Transcript)
	if err != nil {
		if saveErr := o.store.SaveJobErrors(ctx, projectID, evt.UserID, map[models.JobKey]string{
			evt.Job: err.Error(),
		}); saveErr != nil {
			log.Printf("failed to record retry error for project %s: %v", projectID, saveErr)
		}
		return err
	}
	return o.store.SaveGeneratedContent(ctx, projectID, evt.UserID, patch)
}

// summaryCell memoizes the summary for one workflow run; socialPosts and
// titles both read it, and it must only be computed once.
type summaryCell struct {
	once       sync.Once
	summarizer Summarizer
	text       string
	val        *models.Summary
	err        error
}

func (c *summaryCell) get(ctx context.Context) (*models.Summary, error) {
	c.once.Do(func() {
		c.val, c.err = c.summarizer.Summarize(ctx, c.text)
	})
	return c.val, c.err
}

func (c *summaryCell) preload(s *models.Summary) {
	c.once.Do(func() {
		c.val = s
	})
}
