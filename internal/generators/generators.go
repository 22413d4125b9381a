package generators

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"podcast-ai-backend/internal/models"
)

const (
	maxKeyMoments        = 5
	maxYouTubeTimestamps = 10
)

// JobsForPlan returns the plan-gated generator list. Each tier includes
// every job of the tier below it.
func JobsForPlan(plan models.Plan) []models.JobKey {
	jobs := []models.JobKey{models.JobSummary}
	if plan == models.PlanPro || plan == models.PlanUltra {
		jobs = append(jobs, models.JobSocialPosts, models.JobTitles, models.JobHashtags)
	}
	if plan == models.PlanUltra {
		jobs = append(jobs, models.JobKeyMoments, models.JobYouTubeTimestamps)
	}
	return jobs
}

// SocialPosts derives per-platform post drafts from the summary by
// template slicing; no model call.
func SocialPosts(summary *models.Summary) (*models.SocialPosts, error) {
	if summary == nil {
		return nil, fmt.Errorf("social posts require a summary")
	}
	hook := firstNonEmpty(summary.TLDR, summary.Full)
	return &models.SocialPosts{
		Twitter:   truncate(hook, 240),
		LinkedIn:  hook + "\n\nListen to the full episode for more.",
		Instagram: truncate(hook, 200) + " 🎙️ Link in bio.",
		TikTok:    truncate(hook, 140),
		YouTube:   hook,
		Facebook:  hook + "\n\nNew episode out now.",
	}, nil
}

// Titles derives grouped title suggestions from the summary by template
// slicing; no model call.
func Titles(summary *models.Summary) (*models.TitleSuggestions, error) {
	if summary == nil {
		return nil, fmt.Errorf("titles require a summary")
	}
	hook := firstNonEmpty(summary.TLDR, summary.Full)
	short := truncate(hook, 60)
	long := truncate(hook, 95)
	return &models.TitleSuggestions{
		YouTubeShort:  []string{short},
		YouTubeLong:   []string{long},
		PodcastTitles: []string{short},
		SEOKeywords:   keywords(hook, 5),
	}, nil
}

// Hashtags is a deliberate placeholder producing an empty list.
func Hashtags() []string {
	return []string{}
}

// KeyMoments projects the first few transcript segments into display
// records with a formatted time label.
func KeyMoments(t *models.Transcript) []models.KeyMoment {
	moments := []models.KeyMoment{}
	for _, seg := range limitSegments(t, maxKeyMoments) {
		moments = append(moments, models.KeyMoment{
			Time:        FormatTimestamp(seg.Start),
			Timestamp:   seg.Start,
			Text:        seg.Text,
			Description: truncate(seg.Text, 80),
		})
	}
	return moments
}

// YouTubeTimestamps pairs formatted segment start times with segment
// text for a chapter-style description block.
func YouTubeTimestamps(t *models.Transcript) []models.YouTubeTimestamp {
	stamps := []models.YouTubeTimestamp{}
	for _, seg := range limitSegments(t, maxYouTubeTimestamps) {
		stamps = append(stamps, models.YouTubeTimestamp{
			Timestamp:   FormatTimestamp(seg.Start),
			Description: seg.Text,
		})
	}
	return stamps
}

// FormatTimestamp renders seconds as H:MM:SS, omitting hours when zero:
// 125 -> "2:05", 3725 -> "1:02:05".
func FormatTimestamp(seconds float64) string {
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func limitSegments(t *models.Transcript, max int) []models.Segment {
	if t == nil {
		return nil
	}
	if len(t.Segments) > max {
		return t.Segments[:max]
	}
	return t.Segments
}

func truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := text[:max]
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	} else {
		// No word boundary; back off so the cut never splits a rune.
		for len(cut) > 0 && !utf8.RuneStart(text[len(cut)]) {
			cut = cut[:len(cut)-1]
		}
	}
	return strings.TrimRight(cut, " ") + "…"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// keywords pulls distinct longer words from the hook text, lowercased.
func keywords(text string, max int) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, w := range strings.Fields(text) {
		w = strings.ToLower(strings.Trim(w, `.,!?"'()[]{}:;`))
		if len(w) < 5 || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
		if len(out) == max {
			break
		}
	}
	return out
}
