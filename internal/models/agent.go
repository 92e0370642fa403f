// internal/models/agent.go
package models

import (
	"encoding/json"
	"strings"
	"time"
)

// SpecialistText is the text a specialist produced. The zero value is NoResponse,
// so a missing answer can never leak into concatenation as a nil or undefined value.
type SpecialistText struct {
	text    string
	present bool
}

// NoResponse is the explicit absent variant.
var NoResponse = SpecialistText{}

// TextOf wraps s; blank text collapses to NoResponse.
func TextOf(s string) SpecialistText {
	s = strings.TrimSpace(s)
	if s == "" {
		return NoResponse
	}
	return SpecialistText{text: s, present: true}
}

func (t SpecialistText) Get() (string, bool) { return t.text, t.present }

func (t SpecialistText) IsPresent() bool { return t.present }

// OrElse returns the text or def when absent.
func (t SpecialistText) OrElse(def string) string {
	if !t.present {
		return def
	}
	return t.text
}

func (t SpecialistText) MarshalJSON() ([]byte, error) {
	if !t.present {
		return []byte("null"), nil
	}
	return json.Marshal(t.text)
}

func (t *SpecialistText) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == nil {
		*t = NoResponse
		return nil
	}
	*t = TextOf(*s)
	return nil
}

type AgentStatus string

const (
	AgentAnswered    AgentStatus = "answered"
	AgentNotRelevant AgentStatus = "not_relevant"
	AgentFailed      AgentStatus = "failed"
)

// AgentResponse is the outcome of one specialist for one request.
type AgentResponse struct {
	AgentID    string         `json:"agentId"`
	Relevance  float64        `json:"relevance"`
	Confidence float64        `json:"confidence"`
	Status     AgentStatus    `json:"status"`
	Text       SpecialistText `json:"text"`
	Err        error          `json:"-"`
	Error      string         `json:"error,omitempty"`
	Latency    time.Duration  `json:"latency"`
}

// Usable reports whether the response can take part in convergence.
func (r AgentResponse) Usable(relevanceThreshold float64) bool {
	return r.Err == nil && r.Status == AgentAnswered && r.Text.IsPresent() && r.Relevance >= relevanceThreshold
}

type InconsistencyCategory string

const (
	InconsistencyDateMentions InconsistencyCategory = "date_mentions"
	InconsistencyDataPresence InconsistencyCategory = "data_presence"
)

type Inconsistency struct {
	Category InconsistencyCategory `json:"category"`
	Detail   string                `json:"detail"`
	Agents   []string              `json:"agents,omitempty"`
}

type ValidationResult struct {
	Score           float64         `json:"score"`
	Inconsistencies []Inconsistency `json:"inconsistencies"`
	Approved        bool            `json:"approved"`
}

// ConvergedResponse is the merged answer. Text is never empty.
type ConvergedResponse struct {
	Text               string   `json:"text"`
	ContributingAgents []string `json:"contributingAgents"`
	ValidationNote     string   `json:"validationNote,omitempty"`
	Insufficient       bool     `json:"insufficient"`
}

// OrchestrationResult carries exactly one of Response or Clarification.
type OrchestrationResult struct {
	Analysis      NLPResult             `json:"analysis"`
	Response      *ConvergedResponse    `json:"response,omitempty"`
	Clarification *ClarificationRequest `json:"clarification,omitempty"`
	Validation    *ValidationResult     `json:"validation,omitempty"`
	Trace         []AgentResponse       `json:"trace,omitempty"`
}
