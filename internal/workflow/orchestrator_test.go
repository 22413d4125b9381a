package workflow_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"podcast-ai-backend/internal/events"
	"podcast-ai-backend/internal/models"
	"podcast-ai-backend/internal/store"
	"podcast-ai-backend/internal/workflow"
)

type fakeTranscriber struct {
	calls      int32
	transcript *models.Transcript
	err        error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioURL string) (*models.Transcript, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return f.transcript, nil
}

type fakeSummarizer struct {
	calls   int32
	summary *models.Summary
	err     error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, text string) (*models.Summary, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return f.summary, nil
}

type panickingTranscriber struct{}

func (panickingTranscriber) Transcribe(ctx context.Context, audioURL string) (*models.Transcript, error) {
	panic("transcriber exploded")
}

func sampleTranscript() *models.Transcript {
	return &models.Transcript{
		Text: "Welcome to the show. Today we talk about Go.",
		Segments: []models.Segment{
			{ID: 0, Start: 0, End: 4, Text: "Welcome to the show."},
			{ID: 1, Start: 4, End: 9, Text: "Today we talk about Go."},
		},
	}
}

func sampleSummary() *models.Summary {
	return &models.Summary{
		Full:     "An episode about Go.",
		Bullets:  []string{"Go is discussed"},
		Insights: []string{"Concurrency matters"},
		TLDR:     "An episode about Go.",
	}
}

func newTestProject(t *testing.T, st *store.MemoryStore, userID string) *models.Project {
	t.Helper()
	project := &models.Project{
		ID:                uuid.New(),
		UserID:            userID,
		Name:              "Episode 1",
		Status:            models.StatusPending,
		Transcription:     models.TranscriptionPending,
		ContentGeneration: models.ContentPending,
		FileURL:           "https://cdn.example.com/ep1.mp3",
		FileName:          "ep1.mp3",
	}
	require.NoError(t, st.CreateProject(context.Background(), project))
	return project
}

func uploadedEvent(project *models.Project, plan models.Plan) events.PodcastUploaded {
	return events.PodcastUploaded{
		ProjectID: project.ID.String(),
		UserID:    project.UserID,
		Plan:      plan,
		FileURL:   project.FileURL,
		FileName:  project.FileName,
	}
}

func TestProcessUploaded_UltraPlanGeneratesEverything(t *testing.T) {
	st := store.NewMemoryStore()
	project := newTestProject(t, st, "user-1")
	transcriber := &fakeTranscriber{transcript: sampleTranscript()}
	summarizer := &fakeSummarizer{summary: sampleSummary()}
	orch := workflow.NewOrchestrator(st, st, transcriber, summarizer)

	err := orch.ProcessUploaded(context.Background(), uploadedEvent(project, models.PlanUltra))
	require.NoError(t, err)

	got, err := st.GetProject(context.Background(), project.ID, "user-1")
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, models.TranscriptionCompleted, got.Transcription)
	assert.Equal(t, models.ContentCompleted, got.ContentGeneration)
	require.NotNil(t, got.Transcript)
	assert.Len(t, got.Transcript.Segments, 2)

	require.NotNil(t, got.Content.Summary)
	assert.Equal(t, "An episode about Go.", got.Content.Summary.TLDR)
	assert.NotNil(t, got.Content.SocialPosts)
	assert.NotNil(t, got.Content.Titles)
	assert.NotNil(t, got.Content.Hashtags)
	require.NotNil(t, got.Content.KeyMoments)
	assert.Len(t, *got.Content.KeyMoments, 2)
	assert.NotNil(t, got.Content.YouTubeTimestamps)
	assert.Empty(t, got.JobErrors)
	assert.NotNil(t, got.CompletedAt)
}

func TestProcessUploaded_FreePlanOnlySummary(t *testing.T) {
	st := store.NewMemoryStore()
	project := newTestProject(t, st, "user-1")
	orch := workflow.NewOrchestrator(st, st,
		&fakeTranscriber{transcript: sampleTranscript()},
		&fakeSummarizer{summary: sampleSummary()})

	err := orch.ProcessUploaded(context.Background(), uploadedEvent(project, models.PlanFree))
	require.NoError(t, err)

	got, err := st.GetProject(context.Background(), project.ID, "user-1")
	require.NoError(t, err)

	assert.NotNil(t, got.Content.Summary)
	assert.Nil(t, got.Content.SocialPosts)
	assert.Nil(t, got.Content.Titles)
	assert.Nil(t, got.Content.Hashtags)
	assert.Nil(t, got.Content.KeyMoments)
	assert.Nil(t, got.Content.YouTubeTimestamps)
}

func TestProcessUploaded_SummaryFailureDoesNotAbortSiblings(t *testing.T) {
	st := store.NewMemoryStore()
	project := newTestProject(t, st, "user-1")
	orch := workflow.NewOrchestrator(st, st,
		&fakeTranscriber{transcript: sampleTranscript()},
		&fakeSummarizer{err: errors.New("model unavailable")})

	err := orch.ProcessUploaded(context.Background(), uploadedEvent(project, models.PlanUltra))
	require.NoError(t, err)

	got, err := st.GetProject(context.Background(), project.ID, "user-1")
	require.NoError(t, err)

	// The workflow still completes; only the summary-dependent jobs fail.
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Contains(t, got.JobErrors, models.JobSummary)
	assert.Contains(t, got.JobErrors, models.JobSocialPosts)
	assert.Contains(t, got.JobErrors, models.JobTitles)
	assert.NotContains(t, got.JobErrors, models.JobKeyMoments)

	assert.Nil(t, got.Content.Summary)
	assert.NotNil(t, got.Content.Hashtags)
	assert.NotNil(t, got.Content.KeyMoments)
	assert.NotNil(t, got.Content.YouTubeTimestamps)
}

func TestProcessUploaded_SummaryComputedOncePerRun(t *testing.T) {
	st := store.NewMemoryStore()
	project := newTestProject(t, st, "user-1")
	summarizer := &fakeSummarizer{summary: sampleSummary()}
	orch := workflow.NewOrchestrator(st, st,
		&fakeTranscriber{transcript: sampleTranscript()}, summarizer)

	err := orch.ProcessUploaded(context.Background(), uploadedEvent(project, models.PlanPro))
	require.NoError(t, err)

	// summary, socialPosts and titles all read it, but the cell runs once.
	assert.Equal(t, int32(1), atomic.LoadInt32(&summarizer.calls))
}

func TestProcessUploaded_ReplaySkipsCommittedSteps(t *testing.T) {
	st := store.NewMemoryStore()
	project := newTestProject(t, st, "user-1")
	transcriber := &fakeTranscriber{transcript: sampleTranscript()}
	orch := workflow.NewOrchestrator(st, st, transcriber,
		&fakeSummarizer{summary: sampleSummary()})

	evt := uploadedEvent(project, models.PlanFree)
	require.NoError(t, orch.ProcessUploaded(context.Background(), evt))
	require.NoError(t, orch.ProcessUploaded(context.Background(), evt))

	assert.Equal(t, int32(1), atomic.LoadInt32(&transcriber.calls))
}

func TestProcessUploaded_TranscriptionFailureIsFatal(t *testing.T) {
	st := store.NewMemoryStore()
	project := newTestProject(t, st, "user-1")
	orch := workflow.NewOrchestrator(st, st,
		&fakeTranscriber{err: errors.New("provider down")},
		&fakeSummarizer{summary: sampleSummary()})

	err := orch.ProcessUploaded(context.Background(), uploadedEvent(project, models.PlanFree))
	require.Error(t, err)

	got, err := st.GetProject(context.Background(), project.ID, "user-1")
	require.NoError(t, err)

	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Contains(t, got.JobErrors, models.JobTranscript)
	require.NotNil(t, got.Error)
	assert.Equal(t, "transcribe-audio", got.Error.Step)
	assert.Contains(t, got.Error.Message, "provider down")
}

func TestProcessUploaded_PanicRecordedWithStack(t *testing.T) {
	st := store.NewMemoryStore()
	project := newTestProject(t, st, "user-1")
	orch := workflow.NewOrchestrator(st, st,
		panickingTranscriber{},
		&fakeSummarizer{summary: sampleSummary()})

	err := orch.ProcessUploaded(context.Background(), uploadedEvent(project, models.PlanFree))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")

	got, err := st.GetProject(context.Background(), project.ID, "user-1")
	require.NoError(t, err)

	assert.Equal(t, models.StatusFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, "panic", got.Error.Step)
	assert.Contains(t, got.Error.Message, "transcriber exploded")
	assert.NotEmpty(t, got.Error.Stack)
}

func TestProcessUploaded_InvalidEvent(t *testing.T) {
	st := store.NewMemoryStore()
	orch := workflow.NewOrchestrator(st, st, &fakeTranscriber{}, &fakeSummarizer{})

	err := orch.ProcessUploaded(context.Background(), events.PodcastUploaded{UserID: "u"})
	assert.ErrorIs(t, err, workflow.ErrInvalidEvent)

	err = orch.HandleUploaded(context.Background(), events.PodcastUploaded{UserID: "u"})
	assert.ErrorIs(t, err, workflow.ErrInvalidEvent)
}

func TestRetryJob_PlanGating(t *testing.T) {
	st := store.NewMemoryStore()
	project := newTestProject(t, st, "user-1")
	orch := workflow.NewOrchestrator(st, st, &fakeTranscriber{}, &fakeSummarizer{})

	err := orch.RetryJob(context.Background(), events.PodcastRetryJob{
		ProjectID:   project.ID.String(),
		UserID:      "user-1",
		Job:         models.JobKeyMoments,
		CurrentPlan: models.PlanFree,
	})
	assert.ErrorIs(t, err, workflow.ErrInvalidEvent)
}

func TestRetryJob_GeneratesFromStoredTranscript(t *testing.T) {
	st := store.NewMemoryStore()
	project := newTestProject(t, st, "user-1")
	require.NoError(t, st.SaveTranscript(context.Background(), project.ID, "user-1", sampleTranscript()))
	orch := workflow.NewOrchestrator(st, st, &fakeTranscriber{}, &fakeSummarizer{summary: sampleSummary()})

	err := orch.RetryJob(context.Background(), events.PodcastRetryJob{
		ProjectID:   project.ID.String(),
		UserID:      "user-1",
		Job:         models.JobKeyMoments,
		CurrentPlan: models.PlanUltra,
	})
	require.NoError(t, err)

	got, err := st.GetProject(context.Background(), project.ID, "user-1")
	require.NoError(t, err)
	require.NotNil(t, got.Content.KeyMoments)
	assert.Len(t, *got.Content.KeyMoments, 2)
}

func TestRetryJob_ReusesStoredSummary(t *testing.T) {
	st := store.NewMemoryStore()
	project := newTestProject(t, st, "user-1")
	require.NoError(t, st.SaveTranscript(context.Background(), project.ID, "user-1", sampleTranscript()))
	require.NoError(t, st.SaveGeneratedContent(context.Background(), project.ID, "user-1",
		models.GeneratedContent{Summary: sampleSummary()}))

	summarizer := &fakeSummarizer{summary: sampleSummary()}
	orch := workflow.NewOrchestrator(st, st, &fakeTranscriber{}, summarizer)

	err := orch.RetryJob(context.Background(), events.PodcastRetryJob{
		ProjectID:   project.ID.String(),
		UserID:      "user-1",
		Job:         models.JobSocialPosts,
		CurrentPlan: models.PlanPro,
	})
	require.NoError(t, err)

	assert.Equal(t, int32(0), atomic.LoadInt32(&summarizer.calls))

	got, err := st.GetProject(context.Background(), project.ID, "user-1")
	require.NoError(t, err)
	assert.NotNil(t, got.Content.SocialPosts)
}

func TestRetryJob_MissingTranscript(t *testing.T) {
	st := store.NewMemoryStore()
	project := newTestProject(t, st, "user-1")
	orch := workflow.NewOrchestrator(st, st, &fakeTranscriber{}, &fakeSummarizer{})

	err := orch.RetryJob(context.Background(), events.PodcastRetryJob{
		ProjectID:   project.ID.String(),
		UserID:      "user-1",
		Job:         models.JobHashtags,
		CurrentPlan: models.PlanPro,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no transcript")
}

func TestHandleUploaded_DoesNotHangOnContext(t *testing.T) {
	st := store.NewMemoryStore()
	project := newTestProject(t, st, "user-1")
	orch := workflow.NewOrchestrator(st, st,
		&fakeTranscriber{err: errors.New("provider down")},
		&fakeSummarizer{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := orch.HandleUploaded(ctx, uploadedEvent(project, models.PlanFree))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
