package models

// GeneratedContent holds the output of every generator job. Fields are
// pointers so a merge-patch can tell "not produced yet" apart from
// "produced empty"; a failed generator never clobbers a sibling's output.
type GeneratedContent struct {
	Summary           *Summary            `json:"summary,omitempty"`
	SocialPosts       *SocialPosts        `json:"social_posts,omitempty"`
	Titles            *TitleSuggestions   `json:"titles,omitempty"`
	Hashtags          *[]string           `json:"hashtags,omitempty"`
	KeyMoments        *[]KeyMoment        `json:"key_moments,omitempty"`
	YouTubeTimestamps *[]YouTubeTimestamp `json:"youtube_timestamps,omitempty"`
}

// Merge copies every populated field of patch onto c, leaving the rest
// untouched.
func (c *GeneratedContent) Merge(patch GeneratedContent) {
	if patch.Summary != nil {
		c.Summary = patch.Summary
	}
	if patch.SocialPosts != nil {
		c.SocialPosts = patch.SocialPosts
	}
	if patch.Titles != nil {
		c.Titles = patch.Titles
	}
	if patch.Hashtags != nil {
		c.Hashtags = patch.Hashtags
	}
	if patch.KeyMoments != nil {
		c.KeyMoments = patch.KeyMoments
	}
	if patch.YouTubeTimestamps != nil {
		c.YouTubeTimestamps = patch.YouTubeTimestamps
	}
}

// IsEmpty reports whether no generator has populated anything yet.
func (c GeneratedContent) IsEmpty() bool {
	return c.Summary == nil && c.SocialPosts == nil && c.Titles == nil &&
		c.Hashtags == nil && c.KeyMoments == nil && c.YouTubeTimestamps == nil
}

type Summary struct {
	Full     string   `json:"full"`
	Bullets  []string `json:"bullets"`
	Insights []string `json:"insights"`
	TLDR     string   `json:"tldr"`
}

type SocialPosts struct {
	Twitter   string `json:"twitter"`
	LinkedIn  string `json:"linkedin"`
	Instagram string `json:"instagram"`
	TikTok    string `json:"tiktok"`
	YouTube   string `json:"youtube"`
	Facebook  string `json:"facebook"`
}

type TitleSuggestions struct {
	YouTubeShort  []string `json:"youtube_short"`
	YouTubeLong   []string `json:"youtube_long"`
	PodcastTitles []string `json:"podcast_titles"`
	SEOKeywords   []string `json:"seo_keywords"`
}

type KeyMoment struct {
	Time        string  `json:"time"`
	Timestamp   float64 `json:"timestamp"`
	Text        string  `json:"text"`
	Description string  `json:"description"`
}

type YouTubeTimestamp struct {
	Timestamp   string `json:"timestamp"`
	Description string `json:"description"`
}
