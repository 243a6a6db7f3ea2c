package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrorType is the failure taxonomy shared by every tool.
type ErrorType string

const (
	ErrNetwork        ErrorType = "network"
	ErrTimeout        ErrorType = "timeout"
	ErrAuthentication ErrorType = "authentication"
	ErrRateLimit      ErrorType = "rate_limit"
	ErrNotFound       ErrorType = "not_found"
	ErrValidation     ErrorType = "validation"
	ErrServer         ErrorType = "server_error"
	ErrEmptyResult    ErrorType = "empty_result"
	ErrUnknown        ErrorType = "unknown"
)

// StructuredError is a classified tool failure. It is returned to the
// model as ordinary tool output so the model can react: retry with
// different arguments, switch to an alternative tool, or give up.
type StructuredError struct {
	Type             ErrorType `json:"errorType"`
	Message          string    `json:"message"`
	Tool             string    `json:"toolName"`
	SuggestedActions []string  `json:"suggestedActions"`
	RetryRecommended bool      `json:"retryRecommended"`
	AlternativeTools []string  `json:"alternativeTools,omitempty"`
}

func (e *StructuredError) Error() string {
	return fmt.Sprintf("tool %s failed (%s): %s", e.Tool, e.Type, e.Message)
}

// JSON renders the structured error as the payload fed back into the
// model's context.
func (e *StructuredError) JSON() string {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"errorType":"unknown","message":%q}`, e.Message)
	}
	return string(b)
}

// Failure is an opaque failure descriptor fed to Classify.
type Failure struct {
	Message string
	Code    string
	Status  int // HTTP-status-like field, 0 when absent
}

// matcher pairs an error type with its detection predicate. Evaluation
// order is fixed; the first match wins.
type matcher struct {
	typ        ErrorType
	statuses   []int
	substrings []string
}

var matchers = []matcher{
	{ErrNetwork, nil, []string{
		"no such host", "connection refused", "network is unreachable",
		"connection reset", "dial tcp", "econnrefused", "broken pipe",
	}},
	{ErrTimeout, []int{408, 504}, []string{
		"timeout", "timed out", "deadline exceeded",
	}},
	{ErrAuthentication, []int{401, 403}, []string{
		"unauthorized", "forbidden", "api key", "invalid key", "authentication",
	}},
	{ErrRateLimit, []int{429}, []string{
		"rate limit", "too many requests", "quota exceeded", "overloaded",
	}},
	{ErrNotFound, []int{404}, []string{
		"not found", "no such", "does not exist",
	}},
	{ErrValidation, []int{400, 422}, []string{
		"invalid", "validation", "malformed", "missing required",
		"unmarshal", "cannot parse", "unexpected end of json",
	}},
	{ErrServer, []int{500, 502, 503}, []string{
		"internal server", "bad gateway", "service unavailable", "server error",
	}},
	{ErrEmptyResult, nil, []string{
		"no results", "empty result", "nothing matched",
	}},
}

var suggestedActions = map[ErrorType][]string{
	ErrNetwork: {
		"check that the service is reachable",
		"try again once connectivity is restored",
	},
	ErrTimeout: {
		"retry the call",
		"narrow the request so it completes faster",
	},
	ErrAuthentication: {
		"verify the configured credentials",
		"do not retry with the same credentials",
	},
	ErrRateLimit: {
		"wait before retrying",
		"reduce the number of calls in this turn",
	},
	ErrNotFound: {
		"check the identifier for typos",
		"list available items first",
	},
	ErrValidation: {
		"fix the arguments to match the tool's schema",
		"consult the tool description for required fields",
	},
	ErrServer: {
		"retry the call",
		"fall back to a different tool if the error persists",
	},
	ErrEmptyResult: {
		"rephrase the query",
		"broaden the search terms",
	},
	ErrUnknown: {
		"inspect the error message",
		"try a different approach",
	},
}

// alternativeTools suggests substitutes keyed by (tool name, error type).
var alternativeTools = map[string]map[ErrorType][]string{
	"search_documents": {
		ErrEmptyResult: {"web_search", "list_sources"},
		ErrNotFound:    {"list_sources"},
		ErrServer:      {"web_search"},
	},
	"web_search": {
		ErrEmptyResult: {"search_documents"},
		ErrServer:      {"search_documents"},
	},
	"fetch_webpage": {
		ErrNotFound: {"web_search"},
		ErrNetwork:  {"web_search"},
		ErrTimeout:  {"web_search"},
	},
	"read_chunks": {
		ErrNotFound: {"search_documents"},
	},
}

// retryRecommended lists the only categories where an immediate retry is
// worth the model's budget.
var retryRecommended = map[ErrorType]bool{
	ErrTimeout:   true,
	ErrServer:    true,
	ErrRateLimit: true,
}

// Classify maps a raw failure into the taxonomy. It is pure and total:
// unmatched input becomes ErrUnknown, never an error.
func Classify(toolName string, f Failure) *StructuredError {
	msg := strings.ToLower(f.Message)
	code := strings.ToLower(f.Code)

	typ := ErrUnknown
	for _, m := range matchers {
		if matches(m, msg, code, f.Status) {
			typ = m.typ
			break
		}
	}

	return &StructuredError{
		Type:             typ,
		Message:          f.Message,
		Tool:             toolName,
		SuggestedActions: suggestedActions[typ],
		RetryRecommended: retryRecommended[typ],
		AlternativeTools: alternativeTools[toolName][typ],
	}
}

// ClassifyErr derives a Failure from a Go error and classifies it.
// Context deadline errors always classify as timeout.
func ClassifyErr(toolName string, err error) *StructuredError {
	if errors.Is(err, context.DeadlineExceeded) {
		return Classify(toolName, Failure{Message: "deadline exceeded: " + err.Error()})
	}
	return Classify(toolName, Failure{Message: err.Error()})
}

func matches(m matcher, msg, code string, status int) bool {
	for _, s := range m.statuses {
		if status == s {
			return true
		}
	}
	for _, sub := range m.substrings {
		if strings.Contains(msg, sub) || (code != "" && strings.Contains(code, sub)) {
			return true
		}
	}
	return false
}
