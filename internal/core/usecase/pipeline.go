package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/megachat/sales-assistant/internal/core/domain"
	"github.com/megachat/sales-assistant/internal/core/nlu"
	"github.com/megachat/sales-assistant/internal/core/ports"
)

// ApologyResponse is returned when answer generation fails.
const ApologyResponse = "متأسفانه در حال حاضر نمی‌توانم به سوال شما پاسخ دهم. لطفاً دوباره تلاش کنید."

var tracer = otel.Tracer("github.com/megachat/sales-assistant/pipeline")

type Stage string

const (
	StageCheckCache   Stage = "check_cache"
	StagePreprocess   Stage = "preprocess"
	StageDetectIntent Stage = "detect_intent"
	StageRetrieve     Stage = "retrieve"
	StageRerank       Stage = "rerank"
	StageGenerate     Stage = "generate"
	StageCacheWrite   Stage = "cache_write"
	StageEnd          Stage = "end"
)

// QueryClassifier maps a query to an intent and slots.
type QueryClassifier interface {
	Classify(original, normalized string) domain.ParsedQuery
}

// StageObserver receives the duration of every executed stage.
type StageObserver func(stage Stage, duration time.Duration)

// ChatPipeline is the chat orchestrator: an explicit state machine over
// Stage with a cache short-circuit and a retrieval bypass for greetings.
type ChatPipeline struct {
	cache      *ResponseCache
	classifier QueryClassifier
	expander   *QueryExpander
	retriever  *FusionRetriever
	reranker   *Reranker
	generator  ports.AnswerGenerator
	timeout    time.Duration
	observer   StageObserver
}

func NewChatPipeline(
	cache *ResponseCache,
	classifier QueryClassifier,
	expander *QueryExpander,
	retriever *FusionRetriever,
	reranker *Reranker,
	generator ports.AnswerGenerator,
	timeout time.Duration,
) *ChatPipeline {
	return &ChatPipeline{
		cache:      cache,
		classifier: classifier,
		expander:   expander,
		retriever:  retriever,
		reranker:   reranker,
		generator:  generator,
		timeout:    timeout,
	}
}

func (p *ChatPipeline) WithStageObserver(observer StageObserver) *ChatPipeline {
	p.observer = observer
	return p
}

// nextStage is the transition table. It never returns a stage that precedes
// the current one.
func nextStage(stage Stage, state *domain.PipelineState) Stage {
	switch stage {
	case StageCheckCache:
		if state.FromCache {
			return StageEnd
		}
		return StagePreprocess
	case StagePreprocess:
		return StageDetectIntent
	case StageDetectIntent:
		if state.Parsed != nil && state.Parsed.Intent == domain.IntentGreeting {
			return StageGenerate
		}
		return StageRetrieve
	case StageRetrieve:
		return StageRerank
	case StageRerank:
		return StageGenerate
	case StageGenerate:
		return StageCacheWrite
	default:
		return StageEnd
	}
}

func (p *ChatPipeline) Run(ctx context.Context, query domain.Query) (*domain.ChatResult, error) {
	if strings.TrimSpace(query.Text) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "run pipeline", errors.New("query text is required"))
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	ctx, span := tracer.Start(ctx, "pipeline.Run")
	defer span.End()

	state := &domain.PipelineState{Query: query}
	visited := make(map[Stage]struct{}, 8)
	for stage := StageCheckCache; stage != StageEnd; stage = nextStage(stage, state) {
		if _, seen := visited[stage]; seen {
			err := domain.WrapError(domain.ErrContractViolation, "run pipeline", fmt.Errorf("stage %s revisited", stage))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		visited[stage] = struct{}{}

		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("pipeline %s: %w", stage, err)
		}
		if err := p.runStage(ctx, stage, state); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("pipeline %s: %w", stage, err)
		}
	}

	result := buildChatResult(state)
	span.SetAttributes(
		attribute.String("chat.intent", string(result.Intent)),
		attribute.Bool("chat.from_cache", result.FromCache),
		attribute.Int("chat.products", len(result.RetrievedProducts)),
	)
	return result, nil
}

func (p *ChatPipeline) runStage(ctx context.Context, stage Stage, state *domain.PipelineState) error {
	ctx, span := tracer.Start(ctx, "pipeline."+string(stage), trace.WithAttributes(attribute.String("pipeline.stage", string(stage))))
	defer span.End()

	start := time.Now()
	var err error
	switch stage {
	case StageCheckCache:
		err = p.checkCache(ctx, state)
	case StagePreprocess:
		state.NormalizedQuery = nlu.Normalize(state.Query.Text)
	case StageDetectIntent:
		parsed := p.classifier.Classify(state.Query.Text, state.NormalizedQuery)
		state.Parsed = &parsed
	case StageRetrieve:
		err = p.retrieve(ctx, state)
	case StageRerank:
		err = p.rerank(ctx, state)
	case StageGenerate:
		err = p.generate(ctx, state)
	case StageCacheWrite:
		p.writeCache(ctx, state)
	default:
		err = domain.WrapError(domain.ErrContractViolation, "run stage", fmt.Errorf("unknown stage %q", stage))
	}
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if p.observer != nil {
		p.observer(stage, elapsed)
	}
	slog.Debug("pipeline_stage",
		"stage", string(stage),
		"duration_ms", float64(elapsed.Microseconds())/1000.0,
		"error", err,
	)
	return err
}

func (p *ChatPipeline) checkCache(ctx context.Context, state *domain.PipelineState) error {
	if p.cache == nil {
		return nil
	}
	response, found, err := p.cache.Get(ctx, state.Query.Text)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		slog.Warn("response_cache_get_failed", "error", err)
		return nil
	}
	if found {
		state.FromCache = true
		state.FinalResponse = response
	}
	return nil
}

func (p *ChatPipeline) retrieve(ctx context.Context, state *domain.PipelineState) error {
	if state.Parsed == nil {
		return missingField("retrieve", "parsed query")
	}
	variations, err := p.expander.Expand(ctx, state.NormalizedQuery)
	if err != nil {
		return err
	}
	docs, err := p.retriever.Retrieve(ctx, variations, searchFilterFromSlots(state.Parsed.Slots))
	if err != nil {
		return err
	}
	if docs == nil {
		docs = []domain.RetrievedDocument{}
	}
	state.Retrieved = docs
	return nil
}

func (p *ChatPipeline) rerank(ctx context.Context, state *domain.PipelineState) error {
	if state.Retrieved == nil {
		return missingField("rerank", "retrieved documents")
	}
	reranked, err := p.reranker.Rerank(ctx, state.NormalizedQuery, state.Retrieved)
	if err != nil {
		return err
	}
	state.Reranked = reranked
	return nil
}

func (p *ChatPipeline) generate(ctx context.Context, state *domain.PipelineState) error {
	if state.Parsed == nil {
		return missingField("generate", "parsed query")
	}
	if state.FromCache {
		return domain.WrapError(domain.ErrContractViolation, "generate", errors.New("cached response must not be regenerated"))
	}

	response, err := p.generator.GenerateAnswer(ctx, state.Query.Text, state.Parsed.Intent, state.Reranked)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		slog.Warn("answer_generation_failed", "intent", string(state.Parsed.Intent), "error", err)
		response = ApologyResponse
	}
	state.FinalResponse = response
	return nil
}

func (p *ChatPipeline) writeCache(ctx context.Context, state *domain.PipelineState) {
	if p.cache == nil || state.FromCache || state.FinalResponse == "" || state.FinalResponse == ApologyResponse {
		return
	}
	if err := p.cache.Set(ctx, state.Query.Text, state.FinalResponse); err != nil {
		slog.Warn("response_cache_set_failed", "error", err)
	}
}

func missingField(stage, field string) error {
	return domain.WrapError(domain.ErrContractViolation, stage, fmt.Errorf("%s is missing", field))
}

func buildChatResult(state *domain.PipelineState) *domain.ChatResult {
	result := &domain.ChatResult{
		Response:  state.FinalResponse,
		Intent:    domain.IntentGeneral,
		FromCache: state.FromCache,
		SessionID: state.Query.SessionID,
	}
	if state.Parsed != nil {
		result.Intent = state.Parsed.Intent
		confidence := state.Parsed.Confidence
		result.Confidence = &confidence
	}
	if len(state.Reranked) > 0 {
		result.RetrievedProducts = state.Reranked
	}
	return result
}
