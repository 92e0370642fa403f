// internal/models/analysis.go
package models

import (
	"maps"
	"slices"
	"time"

	apperrors "github.com/Rafael-2109/frete-sistema-sub002/internal/common/errors"
)

type IntentType string

const (
	IntentCount      IntentType = "count"
	IntentStatus     IntentType = "status"
	IntentListing    IntentType = "listing"
	IntentHistory    IntentType = "history"
	IntentSum        IntentType = "sum"
	IntentTrend      IntentType = "trend"
	IntentComparison IntentType = "comparison"
	IntentIssue      IntentType = "issue"
	IntentLocation   IntentType = "location"
	IntentBilling    IntentType = "billing"
)

// AllIntents is the declaration order used to break scoring ties.
var AllIntents = []IntentType{
	IntentCount,
	IntentStatus,
	IntentListing,
	IntentHistory,
	IntentSum,
	IntentTrend,
	IntentComparison,
	IntentIssue,
	IntentLocation,
	IntentBilling,
}

// ParseIntentType maps a string to a known intent.
func ParseIntentType(s string) (IntentType, bool) {
	for _, it := range AllIntents {
		if string(it) == s {
			return it, true
		}
	}
	return "", false
}

type Intent struct {
	Type       IntentType   `json:"type"`
	Confidence float64      `json:"confidence"`
	SubIntents []IntentType `json:"subIntents,omitempty"`
}

type TemporalKind string

const (
	TemporalSpecificDate   TemporalKind = "specific_date"
	TemporalRange          TemporalKind = "range"
	TemporalRelativeWindow TemporalKind = "relative_window"
)

// TemporalScope bounds are inclusive calendar days. Explicit is false only for
// the default rolling window.
type TemporalScope struct {
	Kind     TemporalKind `json:"kind"`
	Start    time.Time    `json:"start"`
	End      time.Time    `json:"end"`
	Label    string       `json:"label"`
	Explicit bool         `json:"explicit"`
}

type Domain string

const (
	DomainDeliveries Domain = "deliveries"
	DomainFreight    Domain = "freight"
	DomainOrders     Domain = "orders"
	DomainShipments  Domain = "shipments"
	DomainFinance    Domain = "finance"
	DomainGeneral    Domain = "general"
)

type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyHigh     Urgency = "high"
	UrgencyMedium   Urgency = "medium"
	UrgencyNormal   Urgency = "normal"
)

// Implicit filter keys.
const (
	FilterPriority = "priority"
	FilterStatus   = "status"
	FilterClient   = "client"
	FilterPlace    = "place"
)

type AnalysisContext struct {
	TemporalScope   TemporalScope     `json:"temporalScope"`
	ImplicitFilters map[string]string `json:"implicitFilters"`
	BusinessDomain  Domain            `json:"businessDomain"`
	UrgencyLevel    Urgency           `json:"urgencyLevel"`
}

// QueryContext is optional caller-supplied context. Filters set here take
// precedence over implicit ones; DomainHint is used when no domain wins.
type QueryContext struct {
	UserID     string            `json:"userId,omitempty"`
	SessionID  string            `json:"sessionId,omitempty"`
	DomainHint Domain            `json:"domainHint,omitempty"`
	Filters    map[string]string `json:"filters,omitempty"`
}

// ClarificationRequest replaces a best-effort answer when confidence is too low.
type ClarificationRequest struct {
	Understood []string `json:"understood"`
	Questions  []string `json:"questions"`
	Examples   []string `json:"examples"`
}

// NLPResult is the structured interpretation of one query.
type NLPResult struct {
	RequestID           string                   `json:"requestId"`
	Query               string                   `json:"query"`
	NormalizedText      string                   `json:"normalizedText"`
	Tokens              []Token                  `json:"tokens"`
	Intent              Intent                   `json:"intent"`
	Entities            []Entity                 `json:"entities"`
	Context             AnalysisContext          `json:"context"`
	ConfidenceScore     float64                  `json:"confidenceScore"`
	ClarificationNeeded bool                     `json:"clarificationNeeded"`
	Clarification       *ClarificationRequest    `json:"clarification,omitempty"`
	Suggestions         []string                 `json:"suggestions,omitempty"`
	KnowledgeHints      []KnowledgePattern       `json:"knowledgeHints,omitempty"`
	Error               *apperrors.StandardError `json:"error,omitempty"`
}

// Clone returns a deep copy, so concurrent readers never share slices or maps.
func (r NLPResult) Clone() NLPResult {
	out := r
	out.Tokens = slices.Clone(r.Tokens)
	out.Intent.SubIntents = slices.Clone(r.Intent.SubIntents)
	out.Entities = slices.Clone(r.Entities)
	for i, e := range out.Entities {
		if e.NormalizedValue != nil {
			v := *e.NormalizedValue
			out.Entities[i].NormalizedValue = &v
		}
	}
	out.Context.ImplicitFilters = maps.Clone(r.Context.ImplicitFilters)
	if r.Clarification != nil {
		c := ClarificationRequest{
			Understood: slices.Clone(r.Clarification.Understood),
			Questions:  slices.Clone(r.Clarification.Questions),
			Examples:   slices.Clone(r.Clarification.Examples),
		}
		out.Clarification = &c
	}
	out.Suggestions = slices.Clone(r.Suggestions)
	out.KnowledgeHints = slices.Clone(r.KnowledgeHints)
	if r.Error != nil {
		e := *r.Error
		e.Metadata = maps.Clone(r.Error.Metadata)
		out.Error = &e
	}
	return out
}
