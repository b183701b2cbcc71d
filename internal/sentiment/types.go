package sentiment

// Overall sentiment labels returned by the analysis endpoint
const (
	Positive = "POSITIVE"
	Negative = "NEGATIVE"
	Neutral  = "NEUTRAL"
	Mixed    = "MIXED"
)

// AnalysisResult is the endpoint's response body
type AnalysisResult struct {
	Sentiment  Sentiment   `json:"sentiment"`
	KeyPhrases []KeyPhrase `json:"keyPhrases"`
	Entities   []Entity    `json:"entities"`
}

// Sentiment holds the overall label and per-category scores in [0, 1]
type Sentiment struct {
	Overall string             `json:"overall"`
	Scores  map[string]float64 `json:"scores"`
}

type KeyPhrase struct {
	Text string `json:"text"`
}

type Entity struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

// State is a snapshot of the client published to OnChange listeners
type State struct {
	Result   *AnalysisResult `json:"result"`
	Err      string          `json:"error,omitempty"`
	InFlight bool            `json:"analyzing"`
}

type analyzeRequest struct {
	Transcript string `json:"transcript"`
}
