package generators_test

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"podcast-ai-backend/internal/generators"
	"podcast-ai-backend/internal/models"
)

func TestJobsForPlan(t *testing.T) {
	assert.Equal(t, []models.JobKey{models.JobSummary}, generators.JobsForPlan(models.PlanFree))

	assert.Equal(t, []models.JobKey{
		models.JobSummary, models.JobSocialPosts, models.JobTitles, models.JobHashtags,
	}, generators.JobsForPlan(models.PlanPro))

	assert.Equal(t, []models.JobKey{
		models.JobSummary, models.JobSocialPosts, models.JobTitles, models.JobHashtags,
		models.JobKeyMoments, models.JobYouTubeTimestamps,
	}, generators.JobsForPlan(models.PlanUltra))
}

func TestJobsForPlan_UnknownPlanGetsFreeTier(t *testing.T) {
	assert.Equal(t, []models.JobKey{models.JobSummary}, generators.JobsForPlan(models.Plan("enterprise")))
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "0:00", generators.FormatTimestamp(0))
	assert.Equal(t, "0:59", generators.FormatTimestamp(59.9))
	assert.Equal(t, "2:05", generators.FormatTimestamp(125))
	assert.Equal(t, "59:59", generators.FormatTimestamp(3599))
	assert.Equal(t, "1:00:00", generators.FormatTimestamp(3600))
	assert.Equal(t, "1:02:05", generators.FormatTimestamp(3725))
}

func TestSocialPosts_RequiresSummary(t *testing.T) {
	_, err := generators.SocialPosts(nil)
	assert.Error(t, err)
}

func TestSocialPosts_FromSummary(t *testing.T) {
	posts, err := generators.SocialPosts(&models.Summary{TLDR: "An episode about Go concurrency."})
	require.NoError(t, err)

	assert.Contains(t, posts.Twitter, "Go concurrency")
	assert.Contains(t, posts.LinkedIn, "full episode")
	assert.NotEmpty(t, posts.Instagram)
	assert.NotEmpty(t, posts.TikTok)
	assert.NotEmpty(t, posts.YouTube)
	assert.NotEmpty(t, posts.Facebook)
}

func TestSocialPosts_MultibyteHookStaysValidUTF8(t *testing.T) {
	// No spaces, so the cut cannot land on a word boundary and must
	// land on a rune boundary instead.
	hook := strings.Repeat("é", 300)
	posts, err := generators.SocialPosts(&models.Summary{TLDR: hook})
	require.NoError(t, err)

	assert.True(t, utf8.ValidString(posts.Twitter))
	assert.True(t, utf8.ValidString(posts.Instagram))
	assert.True(t, utf8.ValidString(posts.TikTok))
	assert.True(t, strings.HasSuffix(posts.Twitter, "…"))
}

func TestTitles_RequiresSummary(t *testing.T) {
	_, err := generators.Titles(nil)
	assert.Error(t, err)
}

func TestTitles_FromSummary(t *testing.T) {
	titles, err := generators.Titles(&models.Summary{TLDR: "Understanding goroutine scheduling internals deeply."})
	require.NoError(t, err)

	require.Len(t, titles.YouTubeShort, 1)
	assert.LessOrEqual(t, len(titles.YouTubeShort[0]), 63)
	require.Len(t, titles.PodcastTitles, 1)
	assert.Contains(t, titles.SEOKeywords, "understanding")
}

func TestHashtags_Placeholder(t *testing.T) {
	tags := generators.Hashtags()
	assert.NotNil(t, tags)
	assert.Empty(t, tags)
}

func testTranscript(segmentCount int) *models.Transcript {
	t := &models.Transcript{}
	for i := 0; i < segmentCount; i++ {
		t.Segments = append(t.Segments, models.Segment{
			ID:    i,
			Start: float64(i * 60),
			End:   float64(i*60 + 50),
			Text:  fmt.Sprintf("segment %d text", i),
		})
	}
	return t
}

func TestKeyMoments_LimitsToFive(t *testing.T) {
	moments := generators.KeyMoments(testTranscript(8))

	require.Len(t, moments, 5)
	assert.Equal(t, "0:00", moments[0].Time)
	assert.Equal(t, 0.0, moments[0].Timestamp)
	assert.Equal(t, "4:00", moments[4].Time)
	assert.Equal(t, "segment 4 text", moments[4].Text)
}

func TestKeyMoments_NilTranscript(t *testing.T) {
	assert.Empty(t, generators.KeyMoments(nil))
}

func TestYouTubeTimestamps_LimitsToTen(t *testing.T) {
	stamps := generators.YouTubeTimestamps(testTranscript(12))

	require.Len(t, stamps, 10)
	assert.Equal(t, "0:00", stamps[0].Timestamp)
	assert.Equal(t, "9:00", stamps[9].Timestamp)
	assert.Equal(t, "segment 9 text", stamps[9].Description)
}
