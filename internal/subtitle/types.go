package subtitle

// Word is a single transcribed word with real source timestamps in seconds.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Segment is one transcript unit from the transcription source. Words is
// optional; when present the words are time-ordered and non-overlapping as
// delivered by the source.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

// Cue is one timed subtitle entry. Start and End are milliseconds; Index is
// 1-based and contiguous in file order.
type Cue struct {
	Index int
	Start int
	End   int
	Text  string
}
