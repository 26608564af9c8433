// Package orchestrator runs one dialogue turn through retrieval, intent
// analysis, action dispatch and answer synthesis.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	apperrors "dialogue-engine/internal/common/errors"
	"dialogue-engine/internal/common/logger"
	"dialogue-engine/internal/common/metrics"
	"dialogue-engine/internal/common/observability"
	"dialogue-engine/internal/models"
	knowledgeretriever "dialogue-engine/internal/workers/dialogue/knowledge-retriever"
	webevidence "dialogue-engine/internal/workers/dialogue/web-evidence"
)

// Score gates. They are distinct from the retriever's relevance threshold.
const (
	HybridScoreThreshold    = 0.7
	RedmineContextThreshold = 0.75
)

// Fallback reasons reported when a hybrid turn is answered from the web.
const (
	FallbackRetrievalFailed = "retrieval_failed"
	FallbackLowScore        = "low_score"
	FallbackWorkflowError   = "workflow_error"
	FallbackPanic           = "panic"
)

var ErrMissingDependency = errors.New("MISSING_DEPENDENCY")

type Retriever interface {
	Search(ctx context.Context, query string, topK int) *knowledgeretriever.RetrievalResult
}

type Classifier interface {
	Classify(ctx context.Context, state models.ConversationState) models.ConversationState
}

type Dispatcher interface {
	Dispatch(ctx context.Context, state models.ConversationState) models.ConversationState
}

type Synthesizer interface {
	Synthesize(ctx context.Context, state models.ConversationState) string
}

type Gatherer interface {
	Gather(ctx context.Context, query string, n int) *webevidence.GatherResult
}

// Dependencies are the process-owned components shared by every turn.
type Dependencies struct {
	Retriever     Retriever
	Classifier    Classifier
	Dispatcher    Dispatcher
	Synthesizer   Synthesizer
	Gatherer      Gatherer
	Observability *observability.Observability
	Logger        logger.Logger
}

type Config struct {
	TopK        int
	WebResults  int
	DefaultMode models.Mode
}

func DefaultConfig() *Config {
	return &Config{TopK: 5, WebResults: 3, DefaultMode: models.ModeHybrid}
}

type Engine struct {
	config *Config
	deps   Dependencies
	logger logger.Logger
	errors *apperrors.ErrorHandler
}

func NewEngine(config *Config, deps Dependencies) (*Engine, error) {
	switch {
	case deps.Retriever == nil:
		return nil, fmt.Errorf("%w: retriever", ErrMissingDependency)
	case deps.Classifier == nil:
		return nil, fmt.Errorf("%w: classifier", ErrMissingDependency)
	case deps.Dispatcher == nil:
		return nil, fmt.Errorf("%w: dispatcher", ErrMissingDependency)
	case deps.Synthesizer == nil:
		return nil, fmt.Errorf("%w: synthesizer", ErrMissingDependency)
	case deps.Gatherer == nil:
		return nil, fmt.Errorf("%w: gatherer", ErrMissingDependency)
	}
	if config == nil {
		config = DefaultConfig()
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = log.WithFields(map[string]interface{}{"component": "orchestrator"})
	return &Engine{
		config: config,
		deps:   deps,
		logger: log,
		errors: apperrors.NewErrorHandler(log),
	}, nil
}

// ProcessTurn answers input against state and returns the updated state. The
// input state is not modified. On success the exchange is appended to History.
func (e *Engine) ProcessTurn(ctx context.Context, state models.ConversationState, input string) models.ConversationState {
	st := state.Clone()
	st.ResetTurn()
	st.UserInput = input
	st.Mode = e.mode(st.Mode)

	if strings.TrimSpace(input) == "" {
		st.FinalAnswer = apperrors.UserMessage(apperrors.ErrCodeEmptyInput)
		st.AnswerSource = models.SourceSystem
		return st
	}

	start := time.Now()
	metrics.TurnsActive.Inc()
	defer metrics.TurnsActive.Dec()

	ctx, span := e.deps.Observability.StartSpan(ctx, "process_turn", attribute.String("mode", string(st.Mode)))
	defer span.End()

	switch st.Mode {
	case models.ModeRedmine:
		st = e.guard(ctx, st, e.processRedmine)
	case models.ModeWebOnly:
		st = e.guard(ctx, st, e.processWeb)
	default:
		st = e.processHybrid(ctx, st)
	}

	if st.Node != models.NodeHandleError {
		st.AppendExchange()
	}

	mode := string(st.Mode)
	metrics.TurnsCompleted.WithLabelValues(mode, st.AnswerSource).Inc()
	metrics.TurnDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	e.deps.Observability.RecordTurn(ctx, mode, st.AnswerSource)
	span.SetAttributes(attribute.String("source", st.AnswerSource))

	e.logger.Info("turn completed", map[string]interface{}{
		"mode":     mode,
		"source":   st.AnswerSource,
		"action":   actionName(st.Action),
		"duration": time.Since(start).String(),
	})
	return st
}

func (e *Engine) mode(m models.Mode) models.Mode {
	if m == "" {
		m = e.config.DefaultMode
	}
	parsed, err := models.ParseMode(string(m))
	if err != nil {
		e.logger.Warn("unknown mode, using hybrid", map[string]interface{}{"mode": string(m)})
		return models.ModeHybrid
	}
	return parsed
}

// guard runs fn and turns a panic into the generic apology, leaving the
// session usable.
func (e *Engine) guard(ctx context.Context, st models.ConversationState, fn func(context.Context, models.ConversationState) models.ConversationState) (out models.ConversationState) {
	before := st.Clone()
	defer func() {
		if r := recover(); r != nil {
			e.fault(ctx, before.Node, r)
			out = before
			out.Node = models.NodeHandleError
			out.FinalAnswer = apperrors.GenericApology
			out.AnswerSource = models.SourceSystem
			out.Metadata.Mode = before.Mode
			out.Metadata.Error = string(apperrors.ErrCodeOrchestrationFault)
		}
	}()
	return fn(ctx, st)
}

func (e *Engine) fault(ctx context.Context, node models.Node, r interface{}) {
	if node == "" {
		node = "process_turn"
	}
	e.errors.HandleStageError(ctx, string(node), apperrors.NewOrchestrationFaultError(string(node), fmt.Sprint(r)))
	e.logger.Debug("recovered panic stack", map[string]interface{}{"stack": string(debug.Stack())})
	metrics.StageFailures.WithLabelValues("orchestrator", string(apperrors.ErrCodeOrchestrationFault)).Inc()
}

// step runs one node inside its own span.
func (e *Engine) step(ctx context.Context, node models.Node, fn func(context.Context)) {
	ctx, span := e.deps.Observability.StartSpan(ctx, string(node))
	defer span.End()
	start := time.Now()
	fn(ctx)
	e.deps.Observability.RecordStageDuration(ctx, string(node), time.Since(start))
}

func (e *Engine) retrieve(ctx context.Context, query string) *knowledgeretriever.RetrievalResult {
	var res *knowledgeretriever.RetrievalResult
	e.step(ctx, "retrieve_knowledge", func(ctx context.Context) {
		res = e.deps.Retriever.Search(ctx, query, e.config.TopK)
	})
	if res == nil {
		res = &knowledgeretriever.RetrievalResult{Message: "no retrieval result"}
	}
	return res
}

// workflow is analyze_intent -> execute_function -> generate_response, with
// handle_error terminal when the classifier could not reach the provider.
func (e *Engine) workflow(ctx context.Context, st models.ConversationState) models.ConversationState {
	e.step(ctx, models.NodeAnalyzeIntent, func(ctx context.Context) {
		st = e.deps.Classifier.Classify(ctx, st)
	})

	switch st.Route {
	case models.RouteHandleError:
		st.Node = models.NodeHandleError
		st.FinalAnswer = st.ErrorMessage
		if st.FinalAnswer == "" {
			st.FinalAnswer = apperrors.GenericApology
		}
		st.Metadata.Error = st.ErrorMessage
		return st
	case models.RouteExecuteFunction:
		e.step(ctx, models.NodeExecuteFunction, func(ctx context.Context) {
			st = e.deps.Dispatcher.Dispatch(ctx, st)
		})
	}

	e.step(ctx, models.NodeGenerateResponse, func(ctx context.Context) {
		st.Node = models.NodeGenerateResponse
		st.FinalAnswer = e.deps.Synthesizer.Synthesize(ctx, st)
	})
	return st
}

func (e *Engine) processRedmine(ctx context.Context, st models.ConversationState) models.ConversationState {
	res := e.retrieve(ctx, st.UserInput)
	if res.Success && res.Score > RedmineContextThreshold {
		st.RetrievedContext = res.Context
		st.RetrievalScore = res.Score
	}

	st = e.workflow(ctx, st)
	st.AnswerSource = models.SourceRedmineWorkflow
	st.Metadata.Mode = models.ModeRedmine
	return st
}

func (e *Engine) processWeb(ctx context.Context, st models.ConversationState) models.ConversationState {
	st.Metadata.Mode = models.ModeWebOnly
	st.Metadata.SearchQuery = st.UserInput

	var res *webevidence.GatherResult
	e.step(ctx, "gather_web_evidence", func(ctx context.Context) {
		res = e.deps.Gatherer.Gather(ctx, st.UserInput, e.config.WebResults)
	})

	if res == nil || !res.Success {
		msg := apperrors.UserMessage(apperrors.ErrCodeWebSearchFailed)
		if res != nil && res.Message != "" {
			msg = res.Message
		}
		st.FinalAnswer = "❌ " + msg
		st.AnswerSource = models.SourceWebSearchError
		st.Metadata.Error = msg
		return st
	}

	valid := res.Valid()
	st.Metadata.TotalSearched = len(res.Items)
	if len(valid) == 0 {
		st.FinalAnswer = "❌ " + apperrors.UserMessage(apperrors.ErrCodeWebNoData)
		st.AnswerSource = models.SourceWebSearchNoData
		st.Metadata.NoData = true
		return st
	}

	st.Evidence = valid
	st.Sources = make([]models.SourceRef, 0, len(valid))
	for _, it := range valid {
		st.Sources = append(st.Sources, models.SourceRef{Title: it.Title, URL: it.URLOrID, QualityScore: it.QualityScore})
	}

	e.step(ctx, models.NodeGenerateResponse, func(ctx context.Context) {
		st.Node = models.NodeGenerateResponse
		st.FinalAnswer = e.deps.Synthesizer.Synthesize(ctx, st)
	})
	st.AnswerSource = models.SourceWebSearchAnalysis
	st.Metadata.SourcesCount = len(valid)
	return st
}

func (e *Engine) processHybrid(ctx context.Context, st models.ConversationState) models.ConversationState {
	base := st.Clone()

	out, reason := e.tryKnowledge(ctx, st)
	if reason == "" {
		return out
	}

	metrics.HybridFallbacks.WithLabelValues(reason).Inc()
	e.logger.Warn("hybrid turn falling back to web search", map[string]interface{}{
		"fallback_reason": reason,
		"retrievalScore":  out.RetrievalScore,
	})

	fb := e.guard(ctx, base, e.processWeb)
	fb.Metadata.Mode = models.ModeHybrid
	fb.Metadata.FallbackReason = reason
	return fb
}

// tryKnowledge answers from the knowledge base. A non-empty reason means the
// turn must be answered from the web instead.
func (e *Engine) tryKnowledge(ctx context.Context, st models.ConversationState) (out models.ConversationState, reason string) {
	defer func() {
		if r := recover(); r != nil {
			e.fault(ctx, st.Node, r)
			out = st
			reason = FallbackPanic
		}
	}()

	res := e.retrieve(ctx, st.UserInput)
	if !res.Success {
		return st, FallbackRetrievalFailed
	}
	if res.Score <= HybridScoreThreshold {
		st.RetrievalScore = res.Score
		return st, FallbackLowScore
	}

	st.RetrievedContext = res.Context
	st.RetrievalScore = res.Score
	st.Sources = res.Sources

	st = e.workflow(ctx, st)
	if st.Route == models.RouteHandleError {
		return st, FallbackWorkflowError
	}

	st.AnswerSource = models.SourceKnowledgeBase
	st.Metadata.Mode = models.ModeHybrid
	st.Metadata.Score = res.Score
	st.Metadata.SourcesCount = len(res.Sources)
	return st, ""
}

func actionName(a *models.Action) string {
	if a == nil {
		return ""
	}
	return a.Name
}
