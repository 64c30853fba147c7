package generation

import (
	"context"
	"fmt"

	"github.com/platinummonkey/kotoba/pkg/observability"
	"github.com/platinummonkey/kotoba/pkg/usage"
)

// Generation outcomes recorded in kotoba_generations_total
const (
	OutcomeSuccess       = "success"
	OutcomeInvalidInput  = "invalid_input"
	OutcomeQuotaExceeded = "quota_exceeded"
)

// Service runs the generation admission flow: validate, check the monthly
// quota, call the model, then persist the record and count the usage.
//
// Persistence after a successful model call is best effort. A failure to
// save the record or increment usage is logged and counted but the generated
// content is still returned.
type Service struct {
	validator *Validator
	tracker   *usage.Tracker
	generator Generator
	store     Store
	prompts   *PromptConfig
	metrics   *observability.Metrics
}

// NewService creates a generation service
func NewService(tracker *usage.Tracker, generator Generator, store Store, prompts *PromptConfig, metrics *observability.Metrics) *Service {
	if prompts == nil {
		prompts = DefaultPromptConfig()
	}
	return &Service{
		validator: NewValidator(),
		tracker:   tracker,
		generator: generator,
		store:     store,
		prompts:   prompts,
		metrics:   metrics,
	}
}

// GenerateVideo localizes a video's metadata and subtitles
func (s *Service) GenerateVideo(ctx context.Context, caller Caller, req VideoRequest) (*VideoResponse, error) {
	req = NormalizeVideoRequest(req)
	if err := s.validator.ValidateVideo(req); err != nil {
		s.metrics.RecordGeneration(string(PipelineVideo), OutcomeInvalidInput)
		return nil, err
	}

	if err := s.admit(ctx, PipelineVideo, caller); err != nil {
		return nil, err
	}

	raw, err := s.generator.Generate(ctx, s.prompts.VideoPrompt(req))
	if err != nil {
		return nil, s.upstreamFailure(ctx, PipelineVideo, err)
	}
	content, err := ParseVideoContent(raw)
	if err != nil {
		return nil, s.upstreamFailure(ctx, PipelineVideo, err)
	}

	videoID := VideoIDFor(req.Platform, req.VideoURL)
	record := &Record{
		UserID:          caller.UserID,
		Pipeline:        PipelineVideo,
		Platform:        req.Platform,
		Dialect:         req.Dialect,
		VideoURL:        req.VideoURL,
		VideoID:         videoID,
		OriginalText:    req.Subtitles,
		TranslatedTitle: content.TranslatedTitle,
		TranslatedText:  content.TranslatedDescription,
		Hashtags:        content.Hashtags,
		OptimalPostTime: content.OptimalPostTime,
		CulturalAdvice:  content.CulturalAdvice,
		Transcript:      content.Transcript,
	}
	s.persist(ctx, record)

	s.metrics.RecordGeneration(string(PipelineVideo), OutcomeSuccess)
	return &VideoResponse{ID: record.ID, VideoID: videoID, VideoContent: content}, nil
}

// GenerateText localizes a plain-text post
func (s *Service) GenerateText(ctx context.Context, caller Caller, req TextRequest) (*TextResponse, error) {
	if err := s.validator.ValidateText(req); err != nil {
		s.metrics.RecordGeneration(string(PipelineText), OutcomeInvalidInput)
		return nil, err
	}

	if err := s.admit(ctx, PipelineText, caller); err != nil {
		return nil, err
	}

	raw, err := s.generator.Generate(ctx, s.prompts.TextPrompt(req))
	if err != nil {
		return nil, s.upstreamFailure(ctx, PipelineText, err)
	}
	content, err := ParseTextContent(raw)
	if err != nil {
		return nil, s.upstreamFailure(ctx, PipelineText, err)
	}

	record := &Record{
		UserID:          caller.UserID,
		Pipeline:        PipelineText,
		OriginalText:    req.OriginalText,
		TranslatedText:  content.TranslatedText,
		Hashtags:        content.Hashtags,
		OptimalPostTime: content.OptimalPostTime,
	}
	s.persist(ctx, record)

	s.metrics.RecordGeneration(string(PipelineText), OutcomeSuccess)
	return &TextResponse{ID: record.ID, TextContent: content}, nil
}

// Get returns one of the caller's generations
func (s *Service) Get(ctx context.Context, userID, id string) (*Record, error) {
	return s.store.Get(ctx, userID, id)
}

// History returns the caller's newest generations
func (s *Service) History(ctx context.Context, userID string, limit int) ([]*Record, error) {
	return s.store.ListByUser(ctx, userID, limit)
}

// admit runs the usage gate. A ledger failure denies the request with
// current 0 rather than letting it through.
func (s *Service) admit(ctx context.Context, pipeline Pipeline, caller Caller) error {
	plan := usage.NormalizePlan(caller.Plan)

	result, err := s.tracker.Admit(ctx, caller.UserID, plan)
	if err == nil {
		return nil
	}

	s.metrics.RecordGeneration(string(pipeline), OutcomeQuotaExceeded)
	s.metrics.RecordQuotaRejection(string(plan))

	if qe, ok := usage.AsQuotaExceeded(err); ok {
		return qe
	}

	observability.FromContext(ctx).
		WithError(err).
		WithField("plan", plan).
		Error("usage check failed, denying generation")
	return &usage.QuotaExceededError{Plan: plan, Current: 0, Limit: result.Limit}
}

func (s *Service) upstreamFailure(ctx context.Context, pipeline Pipeline, err error) error {
	upstreamErr := ClassifyUpstreamError(err)
	s.metrics.RecordGeneration(string(pipeline), "upstream_"+string(upstreamErr.Kind))

	observability.FromContext(ctx).
		WithError(upstreamErr).
		WithFields(map[string]interface{}{
			"pipeline":        pipeline,
			"upstream_kind":   upstreamErr.Kind,
			"upstream_status": upstreamErr.Status,
		}).
		Error("generation failed upstream")

	return upstreamErr
}

// persist saves the record and counts the usage. Neither failure is returned;
// record.ID stays empty when the insert fails.
func (s *Service) persist(ctx context.Context, record *Record) {
	logger := observability.FromContext(ctx).WithField("pipeline", record.Pipeline)

	if err := s.store.Create(ctx, record); err != nil {
		record.ID = ""
		s.metrics.RecordSwallowedFailure(observability.StagePersistGeneration)
		logger.WithError(err).Error("failed to save generation")
	}

	if _, err := s.tracker.IncrementUsage(ctx, record.UserID); err != nil {
		s.metrics.RecordSwallowedFailure(observability.StageIncrementUsage)
		logger.WithError(fmt.Errorf("increment usage: %w", err)).Error("failed to record usage")
	}
}
