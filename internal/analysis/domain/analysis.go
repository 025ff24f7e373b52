package domain

import "errors"

// ErrEmptyReply is returned when the model produced no reply text.
var ErrEmptyReply = errors.New("model returned an empty reply")

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// ProductSearch holds the model's catalog keyword guesses. Empty or
// "null" means the model found nothing.
type ProductSearch struct {
	ProductTitle string `json:"productTitle"`
	Category     string `json:"category"`
}

// Guardrail is the triage verdict. Triggered messages go to a human.
type Guardrail struct {
	Triggered bool   `json:"triggered"`
	Reason    string `json:"reason"`
}

// AnalysisResult is what one inbound email is reduced to.
type AnalysisResult struct {
	ProductSearch ProductSearch `json:"productSearch"`
	Summary       string        `json:"summary"`
	Guardrail     Guardrail     `json:"guardrail"`
	Sentiment     Sentiment     `json:"sentiment"`
}
