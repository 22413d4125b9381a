package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/conneroisu/groq-go"

	"podcast-ai-backend/internal/models"
)

const systemPrompt = `You are a podcast summarization assistant. Respond with strict JSON only, ` +
	`no prose and no code fences, in the shape {"bullets": [...], "insights": [...], "tldr": "..."}. ` +
	`Produce 3-6 bullets, 3-6 insights, and a one-sentence tldr.`

// fallbackTLDRLen bounds the local-fallback tl;dr, truncated at the
// nearest word boundary.
const fallbackTLDRLen = 240

// Client produces the summary content unit from a transcript. It is the
// only generator that calls a language model; with no API key, or when
// the model call fails, it degrades to a local summary so the summary
// job always yields some output.
type Client struct {
	llm   *groq.Client
	model groq.ChatModel
}

// NewClient builds a summary client. An empty apiKey yields a client in
// local-fallback mode rather than an error.
func NewClient(apiKey, model string, opts ...groq.Opts) (*Client, error) {
	c := &Client{model: groq.ChatModel(model)}
	if apiKey == "" {
		return c, nil
	}
	llm, err := groq.NewClient(apiKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("create groq client: %w", err)
	}
	c.llm = llm
	return c, nil
}

// Summarize returns a summary for the transcript text. An empty
// transcript short-circuits to the local fallback without touching the
// model.
func (c *Client) Summarize(ctx context.Context, transcriptText string) (*models.Summary, error) {
	text := strings.TrimSpace(transcriptText)
	if text == "" || c.llm == nil {
		return localSummary(text), nil
	}

	content, err := c.complete(ctx, text)
	if err != nil {
		log.Printf("summary model call failed, using local fallback: %v", err)
		return localSummary(text), nil
	}
	return parseSummary(content), nil
}

func (c *Client) complete(ctx context.Context, text string) (string, error) {
	resp, err := c.llm.ChatCompletion(ctx, groq.ChatCompletionRequest{
		Model: c.model,
		Messages: []groq.ChatCompletionMessage{
			{Role: groq.RoleSystem, Content: systemPrompt},
			{Role: groq.RoleUser, Content: "Summarize this podcast transcript:\n\n" + text},
		},
		ResponseFormat: &groq.ChatResponseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("summary completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("empty summary response")
	}
	return resp.Choices[0].Message.Content, nil
}

// parseSummary decodes the model response: strict JSON first, then a
// line-oriented heuristic that recognizes "bullets:"/"insights:" section
// headers and bullet markers, then all lines as bullets.
func parseSummary(content string) *models.Summary {
	trimmed := stripCodeFence(content)

	var parsed struct {
		Bullets  []string `json:"bullets"`
		Insights []string `json:"insights"`
		TLDR     string   `json:"tldr"`
	}
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
		s := &models.Summary{
			Full:     parsed.TLDR,
			Bullets:  emptyIfNil(parsed.Bullets),
			Insights: emptyIfNil(parsed.Insights),
			TLDR:     parsed.TLDR,
		}
		return s
	}

	return heuristicParse(trimmed)
}

func heuristicParse(content string) *models.Summary {
	s := &models.Summary{Bullets: []string{}, Insights: []string{}}

	section := ""
	matchedAny := false
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "bullets:"):
			section = "bullets"
			matchedAny = true
			continue
		case strings.HasPrefix(lower, "insights:"):
			section = "insights"
			matchedAny = true
			continue
		case strings.HasPrefix(lower, "tldr:"):
			s.TLDR = strings.TrimSpace(line[len("tldr:"):])
			matchedAny = true
			continue
		}

		item := strings.TrimLeft(line, "-*• \t")
		if item == "" {
			continue
		}
		switch section {
		case "insights":
			s.Insights = append(s.Insights, item)
		default:
			s.Bullets = append(s.Bullets, item)
		}
	}

	if !matchedAny && s.TLDR == "" && len(s.Bullets) > 0 {
		s.TLDR = truncateAtWord(s.Bullets[0], fallbackTLDRLen)
	}
	s.Full = s.TLDR
	return s
}

// localSummary is the no-model fallback: empty bullets and insights,
// tl;dr from the opening of the transcript.
func localSummary(text string) *models.Summary {
	tldr := truncateAtWord(text, fallbackTLDRLen)
	return &models.Summary{
		Full:     tldr,
		Bullets:  []string{},
		Insights: []string{},
		TLDR:     tldr,
	}
}

func truncateAtWord(text string, max int) string {
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

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func emptyIfNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
