// Package errors provides the structured error taxonomy of the query pipeline and its
// conversion into BPMN errors for the Zeebe workers.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Pipeline outcomes.
const (
	ErrCodeParseFailure          ErrorCode = "PARSE_FAILURE"
	ErrCodeAgentFailure          ErrorCode = "AGENT_FAILURE"
	ErrCodeConvergenceImpossible ErrorCode = "CONVERGENCE_IMPOSSIBLE"
	ErrCodeAmbiguousQuery        ErrorCode = "AMBIGUOUS_QUERY"
)

// Transport and infrastructure failures.
const (
	ErrCodeInvalidInput             ErrorCode = "INVALID_INPUT"
	ErrCodeLLMTimeout               ErrorCode = "LLM_TIMEOUT"
	ErrCodeLLMCallFailed            ErrorCode = "LLM_CALL_FAILED"
	ErrCodeKnowledgeStoreFailed     ErrorCode = "KNOWLEDGE_STORE_FAILED"
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeEngineUnavailable        ErrorCode = "ENGINE_UNAVAILABLE"
	ErrCodeInternal                 ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a key to the error metadata and returns the error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewParseFailureError records an entity value that could not be normalized.
func NewParseFailureError(entityType, raw string, err error) *StandardError {
	details := fmt.Sprintf("entityType: %s, raw: %q", entityType, raw)
	if err != nil {
		details += ", error: " + err.Error()
	}
	return newError(ErrCodeParseFailure, "Entity value could not be parsed", details, false)
}

// NewAgentFailureError wraps a specialist call error or timeout.
func NewAgentFailureError(agentID string, err error) *StandardError {
	return newError(ErrCodeAgentFailure, "Specialist agent failed", fmt.Sprintf("agent: %s, error: %v", agentID, err), false).
		WithMetadata("agent", agentID)
}

// NewConvergenceImpossibleError is returned when no specialist produced a usable response.
func NewConvergenceImpossibleError(attempted int) *StandardError {
	return newError(ErrCodeConvergenceImpossible, "No valid specialist responses", fmt.Sprintf("attempted: %d", attempted), false)
}

// NewAmbiguousQueryError is returned when the clarification gate rejects a query.
func NewAmbiguousQueryError(confidence float64) *StandardError {
	return newError(ErrCodeAmbiguousQuery, "Query requires clarification", fmt.Sprintf("confidence: %.2f", confidence), false).
		WithMetadata("confidence", confidence)
}

// NewInvalidInputError creates a non-retryable input validation error.
func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid job input", details, false)
}

// NewLLMTimeoutError creates a retryable LLM timeout error.
func NewLLMTimeoutError() *StandardError {
	return newError(ErrCodeLLMTimeout, "LLM request timed out", "", true)
}

// NewLLMCallFailedError creates a retryable LLM failure.
func NewLLMCallFailedError(provider string, err error) *StandardError {
	return newError(ErrCodeLLMCallFailed, "LLM completion failed", fmt.Sprintf("provider: %s, error: %v", provider, err), true)
}

// NewKnowledgeStoreFailedError creates a retryable knowledge store error.
func NewKnowledgeStoreFailedError(op string, err error) *StandardError {
	return newError(ErrCodeKnowledgeStoreFailed, "Knowledge store operation failed", fmt.Sprintf("op: %s, error: %v", op, err), true)
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true)
}

// NewEngineUnavailableError reports a Zeebe gateway that could not be reached in time.
func NewEngineUnavailableError(op string, err error) *StandardError {
	return newError(ErrCodeEngineUnavailable, "Workflow engine unavailable", fmt.Sprintf("op: %s, error: %v", op, err), true)
}

// NewInternalError wraps an unexpected error.
func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeKnowledgeStoreFailed,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeEngineUnavailable,
		ErrCodeLLMCallFailed:
		return 3
	case ErrCodeLLMTimeout:
		return 1
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case codeStr == string(ErrCodeParseFailure) || codeStr == string(ErrCodeAmbiguousQuery):
		return "UNDERSTANDING"
	case strings.Contains(codeStr, "AGENT") || strings.Contains(codeStr, "CONVERGENCE"):
		return "ORCHESTRATION"
	case strings.Contains(codeStr, "LLM"):
		return "AI"
	case strings.Contains(codeStr, "KNOWLEDGE") || strings.Contains(codeStr, "DATABASE"):
		return "STORAGE"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	case strings.Contains(codeStr, "ENGINE"):
		return "INFRASTRUCTURE"
	default:
		return "OTHER"
	}
}
