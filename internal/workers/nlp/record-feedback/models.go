// internal/workers/nlp/record-feedback/models.go
package recordfeedback

import "github.com/Rafael-2109/frete-sistema-sub002/internal/models"

type Input struct {
	Query          string                 `json:"query"`
	PatternType    string                 `json:"patternType"`
	PatternText    string                 `json:"patternText"`
	Interpretation string                 `json:"interpretation"`
	Outcome        models.FeedbackOutcome `json:"outcome"`
	Comment        string                 `json:"comment,omitempty"`
}

type Output struct {
	FeedbackID  string `json:"feedbackId"`
	PatternText string `json:"patternText"`
	Recorded    bool   `json:"recorded"`
}
