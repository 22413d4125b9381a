package transcribe

import (
	"strings"

	"podcast-ai-backend/internal/models"
)

const (
	// wordGapThresholdMs closes a segment when the silence between two
	// consecutive words exceeds it.
	wordGapThresholdMs = 1500
	// maxSegmentWords caps how many words a synthesized segment may hold.
	maxSegmentWords = 40
)

// normalizeTranscript converts a raw provider response into the
// canonical transcript shape. Provider times are milliseconds; canonical
// times are seconds.
func normalizeTranscript(resp *transcriptResponse) *models.Transcript {
	t := &models.Transcript{
		Text:     resp.Text,
		Segments: []models.Segment{},
	}

	if len(resp.Segments) > 0 {
		for i, seg := range resp.Segments {
			t.Segments = append(t.Segments, models.Segment{
				ID:    i,
				Start: msToSeconds(seg.Start),
				End:   msToSeconds(seg.End),
				Text:  seg.Text,
				Words: convertWords(seg.Words),
			})
		}
	} else {
		t.Segments = synthesizeSegments(resp.Words)
	}

	t.Speakers = validSpeakerTurns(resp.Utterances)
	t.Chapters = validChapters(resp.AutoChaptersResult)
	return t
}

// synthesizeSegments groups word-level timestamps into segments using
// three boundary rules, checked per word in order: a long gap since the
// previous word, sentence-terminal punctuation on the previous word, or
// the word-count cap.
func synthesizeSegments(words []providerWord) []models.Segment {
	segments := []models.Segment{}
	var current []providerWord

	flush := func() {
		if len(current) == 0 {
			return
		}
		texts := make([]string, len(current))
		for i, w := range current {
			texts[i] = w.Text
		}
		segments = append(segments, models.Segment{
			ID:    len(segments),
			Start: msToSeconds(current[0].Start),
			End:   msToSeconds(current[len(current)-1].End),
			Text:  strings.Join(texts, " "),
			Words: convertWords(current),
		})
		current = nil
	}

	for _, w := range words {
		if len(current) > 0 {
			prev := current[len(current)-1]
			switch {
			case w.Start-prev.End > wordGapThresholdMs:
				flush()
			case endsSentence(prev.Text):
				flush()
			case len(current) >= maxSegmentWords:
				flush()
			}
		}
		current = append(current, w)
	}
	flush()

	return segments
}

// endsSentence reports whether a word ends with sentence-terminal
// punctuation, optionally followed by a closing quote or bracket.
func endsSentence(word string) bool {
	trimmed := strings.TrimRight(word, `"')]}»”’`)
	if trimmed == "" {
		return false
	}
	switch trimmed[len(trimmed)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}

func convertWords(words []providerWord) []models.Word {
	if len(words) == 0 {
		return nil
	}
	out := make([]models.Word, len(words))
	for i, w := range words {
		out[i] = models.Word{
			Word:  w.Text,
			Start: msToSeconds(w.Start),
			End:   msToSeconds(w.End),
		}
	}
	return out
}

// validSpeakerTurns keeps only well-shaped utterances; partially
// invalid collections are filtered, not rejected wholesale.
func validSpeakerTurns(utterances []providerUtterance) []models.SpeakerTurn {
	var out []models.SpeakerTurn
	for _, u := range utterances {
		if u.Speaker == "" || u.Text == "" || u.Start == nil || u.End == nil {
			continue
		}
		if *u.Start < 0 || *u.End < *u.Start {
			continue
		}
		out = append(out, models.SpeakerTurn{
			Speaker:    u.Speaker,
			Start:      msToSeconds(*u.Start),
			End:        msToSeconds(*u.End),
			Text:       u.Text,
			Confidence: u.Confidence,
		})
	}
	return out
}

func validChapters(chapters []providerChapter) []models.Chapter {
	var out []models.Chapter
	for _, ch := range chapters {
		if ch.Headline == "" || ch.Start == nil || ch.End == nil {
			continue
		}
		if *ch.Start < 0 || *ch.End < *ch.Start {
			continue
		}
		out = append(out, models.Chapter{
			Start:    msToSeconds(*ch.Start),
			End:      msToSeconds(*ch.End),
			Headline: ch.Headline,
			Summary:  ch.Summary,
			Gist:     ch.Gist,
		})
	}
	return out
}

func msToSeconds(ms int64) float64 {
	return float64(ms) / 1000
}
