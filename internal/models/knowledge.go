// internal/models/knowledge.go
package models

import "time"

// Pattern types recorded by the feedback store.
const (
	PatternIntent      = "intent"
	PatternClientAlias = "client_alias"
	PatternDomain      = "domain"
	PatternTerm        = "term"
)

// MinHintConfidence is the confidence a learned pattern needs before it can
// fill analysis context or rewrite a query.
const MinHintConfidence = 0.5

// KnowledgePattern is a learned association between a text fragment and an interpretation.
// Confidence stays within [0.1, 1.0].
type KnowledgePattern struct {
	ID             string    `json:"id"`
	PatternType    string    `json:"patternType"`
	PatternText    string    `json:"patternText"`
	Interpretation string    `json:"interpretation"`
	Confidence     float64   `json:"confidence"`
	UsageCount     int       `json:"usageCount"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type FeedbackOutcome string

const (
	FeedbackReinforce  FeedbackOutcome = "reinforce"
	FeedbackContradict FeedbackOutcome = "contradict"
)

// FeedbackInput is what a caller reports about an interaction.
type FeedbackInput struct {
	Query          string          `json:"query"`
	PatternType    string          `json:"patternType"`
	PatternText    string          `json:"patternText"`
	Interpretation string          `json:"interpretation"`
	Outcome        FeedbackOutcome `json:"outcome"`
	Comment        string          `json:"comment,omitempty"`
}

// FeedbackRecord is append-only and immutable once written.
type FeedbackRecord struct {
	ID             string          `json:"id"`
	Query          string          `json:"query"`
	PatternType    string          `json:"patternType"`
	PatternText    string          `json:"patternText"`
	Interpretation string          `json:"interpretation"`
	Outcome        FeedbackOutcome `json:"outcome"`
	Comment        string          `json:"comment,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}
