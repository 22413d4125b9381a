package models

// Transcript is the canonical transcript shape produced by the
// transcription client regardless of provider response format.
// Times are in seconds.
type Transcript struct {
	Text     string        `json:"text"`
	Segments []Segment     `json:"segments"`
	Speakers []SpeakerTurn `json:"speakers,omitempty"`
	Chapters []Chapter     `json:"chapters,omitempty"`
}

type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type SpeakerTurn struct {
	Speaker    string   `json:"speaker"`
	Start      float64  `json:"start"`
	End        float64  `json:"end"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
}

type Chapter struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Headline string  `json:"headline"`
	Summary  string  `json:"summary"`
	Gist     string  `json:"gist"`
}
