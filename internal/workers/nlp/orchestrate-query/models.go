// internal/workers/nlp/orchestrate-query/models.go
package orchestratequery

import "github.com/Rafael-2109/frete-sistema-sub002/internal/models"

type Input struct {
	Query   string               `json:"query"`
	Context *models.QueryContext `json:"context,omitempty"`
}

type Output struct {
	RequestID           string                       `json:"requestId"`
	IntentType          string                       `json:"intentType"`
	ConfidenceScore     float64                      `json:"confidenceScore"`
	ResponseText        string                       `json:"responseText,omitempty"`
	ContributingAgents  []string                     `json:"contributingAgents"`
	ValidationScore     float64                      `json:"validationScore"`
	ValidationNote      string                       `json:"validationNote,omitempty"`
	Insufficient        bool                         `json:"insufficient"`
	ClarificationNeeded bool                         `json:"clarificationNeeded"`
	Clarification       *models.ClarificationRequest `json:"clarification,omitempty"`
}

func newOutput(r models.OrchestrationResult) *Output {
	out := &Output{
		RequestID:           r.Analysis.RequestID,
		IntentType:          string(r.Analysis.Intent.Type),
		ConfidenceScore:     r.Analysis.ConfidenceScore,
		ContributingAgents:  []string{},
		ClarificationNeeded: r.Clarification != nil,
		Clarification:       r.Clarification,
	}
	if r.Response != nil {
		out.ResponseText = r.Response.Text
		out.ValidationNote = r.Response.ValidationNote
		out.Insufficient = r.Response.Insufficient
		if r.Response.ContributingAgents != nil {
			out.ContributingAgents = r.Response.ContributingAgents
		}
	}
	if r.Validation != nil {
		out.ValidationScore = r.Validation.Score
	}
	return out
}
