package models

import (
	"fmt"
	"strings"
)

// Mode selects the answer strategy for a turn.
type Mode string

const (
	ModeRedmine Mode = "redmine"
	ModeWebOnly Mode = "web_only"
	ModeHybrid  Mode = "hybrid"

	// ModeKnowledgeOnly is accepted as an alias of ModeRedmine.
	ModeKnowledgeOnly Mode = "knowledge_only"
)

// ParseMode normalizes a mode name. Empty selects hybrid.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeHybrid:
		return ModeHybrid, nil
	case ModeRedmine, ModeKnowledgeOnly:
		return ModeRedmine, nil
	case ModeWebOnly:
		return ModeWebOnly, nil
	}
	return "", fmt.Errorf("unsupported mode %q", s)
}

// Route is the classifier's decision on where the turn goes next.
type Route string

const (
	RouteSynthesizeDirectly Route = "synthesize_directly"
	RouteExecuteFunction    Route = "execute_function"
	RouteHandleError        Route = "handle_error"
)

// Node names the state-machine node currently executing.
type Node string

const (
	NodeAnalyzeIntent    Node = "analyze_intent"
	NodeExecuteFunction  Node = "execute_function"
	NodeGenerateResponse Node = "generate_response"
	NodeHandleError      Node = "handle_error"
)

// Answer source labels reported with every final answer.
const (
	SourceSystem            = "System"
	SourceRedmineWorkflow   = "Redmine Workflow"
	SourceKnowledgeBase     = "Knowledge Base"
	SourceWebSearchAnalysis = "Web Search Analysis"
	SourceWebSearchNoData   = "Web Search (No Data)"
	SourceWebSearchError    = "Google Search Error"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Action is the single structured action chosen by the classifier for a turn.
type Action struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// TurnMetadata is reported alongside the final answer.
type TurnMetadata struct {
	Mode           Mode    `json:"mode,omitempty"`
	Score          float64 `json:"score,omitempty"`
	SourcesCount   int     `json:"sources_count,omitempty"`
	TotalSearched  int     `json:"total_searched,omitempty"`
	SearchQuery    string  `json:"search_query,omitempty"`
	Error          string  `json:"error,omitempty"`
	NoData         bool    `json:"no_data,omitempty"`
	FallbackReason string  `json:"fallback_reason,omitempty"`
}

// ConversationState is the value threaded through one turn of the pipeline.
type ConversationState struct {
	UserInput        string         `json:"user_input"`
	History          []Message      `json:"history"`
	Mode             Mode           `json:"mode"`
	RetrievedContext string         `json:"retrieved_context,omitempty"`
	RetrievalScore   float64        `json:"retrieval_score,omitempty"`
	Sources          []SourceRef    `json:"sources,omitempty"`
	Action           *Action        `json:"action,omitempty"`
	ActionResult     string         `json:"action_result,omitempty"`
	FinalAnswer      string         `json:"final_answer,omitempty"`
	Route            Route          `json:"route,omitempty"`
	Node             Node           `json:"node,omitempty"`
	Evidence         []EvidenceItem `json:"evidence,omitempty"`
	ErrorMessage     string         `json:"error_message,omitempty"`
	AnswerSource     string         `json:"answer_source,omitempty"`
	Metadata         TurnMetadata   `json:"metadata"`
}

// ResetTurn clears every per-turn field. History and Mode survive.
func (s *ConversationState) ResetTurn() {
	s.UserInput = ""
	s.RetrievedContext = ""
	s.RetrievalScore = 0
	s.Sources = nil
	s.Action = nil
	s.ActionResult = ""
	s.FinalAnswer = ""
	s.Route = ""
	s.Node = ""
	s.Evidence = nil
	s.ErrorMessage = ""
	s.AnswerSource = ""
	s.Metadata = TurnMetadata{}
}

// Clone returns a copy that shares no slices or maps with s.
func (s ConversationState) Clone() ConversationState {
	out := s
	if s.History != nil {
		out.History = append([]Message(nil), s.History...)
	}
	if s.Sources != nil {
		out.Sources = append([]SourceRef(nil), s.Sources...)
	}
	if s.Evidence != nil {
		out.Evidence = append([]EvidenceItem(nil), s.Evidence...)
	}
	if s.Action != nil {
		a := &Action{Name: s.Action.Name}
		if s.Action.Arguments != nil {
			a.Arguments = make(map[string]interface{}, len(s.Action.Arguments))
			for k, v := range s.Action.Arguments {
				a.Arguments[k] = v
			}
		}
		out.Action = a
	}
	return out
}

// RecentHistory returns at most the last n messages.
func (s ConversationState) RecentHistory(n int) []Message {
	if n <= 0 || len(s.History) == 0 {
		return nil
	}
	if len(s.History) <= n {
		return s.History
	}
	return s.History[len(s.History)-n:]
}

// AppendExchange records the user input and final answer, in that order.
func (s *ConversationState) AppendExchange() {
	s.History = append(s.History,
		Message{Role: RoleUser, Content: s.UserInput},
		Message{Role: RoleAssistant, Content: s.FinalAnswer},
	)
}
