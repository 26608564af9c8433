// Package errors provides the shared error taxonomy of the dialogue engine.
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

const (
	// Generation provider
	ErrCodeGenAIRateLimited   ErrorCode = "GENAI_RATE_LIMITED"
	ErrCodeGenAIUnauthorized  ErrorCode = "GENAI_UNAUTHORIZED"
	ErrCodeGenAITimeout       ErrorCode = "GENAI_TIMEOUT"
	ErrCodeGenAIEmptyResponse ErrorCode = "GENAI_EMPTY_RESPONSE"
	ErrCodeGenAIFailed        ErrorCode = "GENAI_FAILED"

	// Malformed provider output
	ErrCodeActionArgumentsInvalid ErrorCode = "ACTION_ARGUMENTS_INVALID"

	// Retrieval
	ErrCodeIndexUnavailable ErrorCode = "INDEX_UNAVAILABLE"
	ErrCodeIndexEmpty       ErrorCode = "INDEX_EMPTY"
	ErrCodeNoMatches        ErrorCode = "NO_MATCHES"
	ErrCodeEmbeddingFailed  ErrorCode = "EMBEDDING_FAILED"

	// Web evidence
	ErrCodeWebSearchFailed  ErrorCode = "WEB_SEARCH_FAILED"
	ErrCodeWebSearchTimeout ErrorCode = "WEB_SEARCH_TIMEOUT"
	ErrCodeWebNoData        ErrorCode = "WEB_NO_DATA"

	// Ticketing
	ErrCodeTicketingFailed ErrorCode = "TICKETING_FAILED"

	// Orchestration
	ErrCodeOrchestrationFault ErrorCode = "ORCHESTRATION_FAULT"
	ErrCodeEmptyInput         ErrorCode = "EMPTY_INPUT"

	// Session storage
	ErrCodeSessionNotFound          ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeSessionStoreFailed       ErrorCode = "SESSION_STORE_FAILED"
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
)

// Kind groups error codes by how the engine recovers from them.
type Kind string

const (
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindMalformedOutput     Kind = "malformed_provider_output"
	KindNotFound            Kind = "not_found"
	KindOrchestrationFault  Kind = "orchestration_fault"
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

// UserMessage is the natural-language text shown for this error.
func (e *StandardError) UserMessage() string {
	return UserMessage(e.Code)
}

// ==========================
// 2. Error Constructors
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

func detailsOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// NewGenAIError maps a generation provider failure to a StandardError.
func NewGenAIError(code ErrorCode, err error) *StandardError {
	return newError(code, "Generation provider call failed", detailsOf(err), code == ErrCodeGenAITimeout || code == ErrCodeGenAIRateLimited)
}

// NewActionArgumentsInvalidError is returned when the provider sent unparseable arguments.
func NewActionArgumentsInvalidError(action string, err error) *StandardError {
	e := newError(ErrCodeActionArgumentsInvalid, "Action arguments could not be parsed", detailsOf(err), false)
	e.Metadata = map[string]interface{}{"action": action}
	return e
}

// NewIndexUnavailableError wraps a vector index failure.
func NewIndexUnavailableError(err error) *StandardError {
	return newError(ErrCodeIndexUnavailable, "Vector index is unreachable", detailsOf(err), true)
}

// NewEmbeddingFailedError wraps an embedding failure after every provider was tried.
func NewEmbeddingFailedError(err error) *StandardError {
	return newError(ErrCodeEmbeddingFailed, "Embedding could not be computed", detailsOf(err), true)
}

// NewWebSearchFailedError wraps a search provider failure.
func NewWebSearchFailedError(err error) *StandardError {
	return newError(ErrCodeWebSearchFailed, "Web search failed", detailsOf(err), true)
}

// NewTicketingError wraps a ticketing system failure for one action.
func NewTicketingError(action string, err error) *StandardError {
	e := newError(ErrCodeTicketingFailed, "Ticketing system call failed", detailsOf(err), true)
	e.Metadata = map[string]interface{}{"action": action}
	return e
}

// NewOrchestrationFaultError wraps a recovered fault inside the state machine.
func NewOrchestrationFaultError(node string, details string) *StandardError {
	e := newError(ErrCodeOrchestrationFault, "Turn aborted by an orchestration fault", details, false)
	e.Metadata = map[string]interface{}{"node": node}
	return e
}

// NewSessionNotFoundError is returned by session stores for unknown ids.
func NewSessionNotFoundError(sessionID string) *StandardError {
	return newError(ErrCodeSessionNotFound, "Session not found", sessionID, false)
}

// NewSessionStoreError wraps a persistence failure.
func NewSessionStoreError(op string, err error) *StandardError {
	e := newError(ErrCodeSessionStoreFailed, "Session store operation failed", detailsOf(err), true)
	e.Metadata = map[string]interface{}{"operation": op}
	return e
}

// NewDatabaseConnectionFailedError creates a retryable connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Failed to connect to the database", detailsOf(err), true)
}

// ==========================
// 3. User-facing messages
// ==========================

// GenericApology is shown when nothing more specific applies.
const GenericApology = "Sorry, an error occurred while processing your request."

var userMessages = map[ErrorCode]string{
	ErrCodeGenAIRateLimited:       "The language service is receiving too many requests right now. Please try again in a minute.",
	ErrCodeGenAIUnauthorized:      "The language service rejected the configured API key. Please contact the administrator.",
	ErrCodeGenAITimeout:           "The language service did not respond in time. Please try again.",
	ErrCodeGenAIEmptyResponse:     "The language service returned an empty answer. Please rephrase your request.",
	ErrCodeGenAIFailed:            GenericApology,
	ErrCodeActionArgumentsInvalid: "I understood which action you want, but could not read its parameters. Please state them explicitly.",
	ErrCodeIndexUnavailable:       "The knowledge base is unavailable right now.",
	ErrCodeIndexEmpty:             "The knowledge base is empty.",
	ErrCodeNoMatches:              "Nothing relevant was found in the knowledge base.",
	ErrCodeEmbeddingFailed:        "The knowledge base could not process this query.",
	ErrCodeWebSearchFailed:        "Web search failed.",
	ErrCodeWebSearchTimeout:       "Web search timed out.",
	ErrCodeWebNoData:              "Could not retrieve information from web sources.",
	ErrCodeTicketingFailed:        "The ticketing system request failed.",
	ErrCodeOrchestrationFault:     GenericApology,
	ErrCodeEmptyInput:             "Please enter a query.",
}

// UserMessage returns the natural-language text for a code, never a raw code.
func UserMessage(code ErrorCode) string {
	if msg, ok := userMessages[code]; ok {
		return msg
	}
	return GenericApology
}

// ==========================
// 4. Utility Functions
// ==========================

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeIndexUnavailable,
		ErrCodeEmbeddingFailed,
		ErrCodeWebSearchFailed,
		ErrCodeSessionStoreFailed,
		ErrCodeDatabaseConnectionFailed:
		return 3

	case ErrCodeGenAITimeout,
		ErrCodeWebSearchTimeout,
		ErrCodeGenAIRateLimited:
		return 2

	case ErrCodeGenAIFailed, ErrCodeTicketingFailed:
		return 1

	default:
		return 0
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetKind places a code in the recovery taxonomy.
func GetKind(code ErrorCode) Kind {
	switch code {
	case ErrCodeActionArgumentsInvalid, ErrCodeGenAIEmptyResponse:
		return KindMalformedOutput
	case ErrCodeIndexEmpty, ErrCodeNoMatches, ErrCodeWebNoData, ErrCodeSessionNotFound, ErrCodeEmptyInput:
		return KindNotFound
	case ErrCodeOrchestrationFault:
		return KindOrchestrationFault
	default:
		return KindUpstreamUnavailable
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "GENAI") || strings.HasPrefix(codeStr, "ACTION"):
		return "AI"
	case strings.Contains(codeStr, "INDEX") || strings.Contains(codeStr, "EMBEDDING") || codeStr == string(ErrCodeNoMatches):
		return "RETRIEVAL"
	case strings.HasPrefix(codeStr, "WEB"):
		return "SEARCH"
	case strings.HasPrefix(codeStr, "TICKETING"):
		return "TICKETING"
	case strings.HasPrefix(codeStr, "SESSION") || strings.HasPrefix(codeStr, "DATABASE"):
		return "DATABASE"
	case codeStr == string(ErrCodeOrchestrationFault) || codeStr == string(ErrCodeEmptyInput):
		return "ORCHESTRATION"
	default:
		return "OTHER"
	}
}
