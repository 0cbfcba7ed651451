package generation

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jobhunter/server/internal/module/llm"
	"github.com/jobhunter/server/internal/module/quota"
	"github.com/jobhunter/server/internal/module/subscription"
	apperrors "github.com/jobhunter/server/internal/utils/errors"
)

// Generation outcomes, used as metric labels.
const (
	OutcomeSuccess             = "success"
	OutcomeAccessDenied        = "access_denied"
	OutcomeQuotaExceeded       = "quota_exceeded"
	OutcomeProviderUnavailable = "provider_unavailable"
	OutcomeExtractionFailed    = "extraction_failed"
	OutcomeSchemaInvalid       = "schema_invalid"
)

// SubscriptionReader resolves a user's subscription. A nil subscription means the user is unknown.
type SubscriptionReader interface {
	GetSubscription(ctx context.Context, userID string) (*subscription.Subscription, error)
}

// ProfileSaver stores a generated professional profile.
type ProfileSaver interface {
	SaveProfile(ctx context.Context, userID string, data any) error
}

// Recorder receives generation telemetry. *metrics.Metrics satisfies it.
type Recorder interface {
	RecordGeneration(capability, outcome string)
	RecordRepair(repaired bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordGeneration(string, string) {}
func (nopRecorder) RecordRepair(bool)               {}

// Config holds the orchestrator settings.
type Config struct {
	// PremiumFeatures lists capabilities that require an active paid subscription.
	PremiumFeatures []string
}

// Service runs every generation through the same pipeline: resolve the tier, check premium
// access, check quota, build the prompt, call the provider, extract the result, consume quota.
type Service struct {
	provider llm.Provider
	limiter  *quota.Limiter
	subs     SubscriptionReader
	profiles ProfileSaver
	schema   *SchemaValidator
	premium  map[Capability]bool
	now      func() time.Time
	logger   *zap.Logger
	recorder Recorder
}

// NewService creates a generation service. profiles may be nil.
func NewService(
	provider llm.Provider,
	limiter *quota.Limiter,
	subs SubscriptionReader,
	profiles ProfileSaver,
	cfg Config,
	logger *zap.Logger,
	recorder Recorder,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	premium := make(map[Capability]bool, len(cfg.PremiumFeatures))
	for _, f := range cfg.PremiumFeatures {
		if f = strings.TrimSpace(f); f != "" {
			premium[Capability(f)] = true
		}
	}
	return &Service{
		provider: provider,
		limiter:  limiter,
		subs:     subs,
		profiles: profiles,
		schema:   NewSchemaValidator(),
		premium:  premium,
		now:      time.Now,
		logger:   logger,
		recorder: recorder,
	}
}

// IsPremium reports whether capability is gated on a paid subscription.
func (s *Service) IsPremium(capability Capability) bool {
	return s.premium[capability]
}

// GenerateCV tailors the résumé to the job description.
func (s *Service) GenerateCV(ctx context.Context, userID, jobDescription, resume string) (*CVResult, error) {
	if err := requireText(jobDescription, resume); err != nil {
		return nil, err
	}
	return s.structuredCV(ctx, userID, CapabilityCV, TailoredCVPrompt(jobDescription, resume))
}

// StructureCVFromText turns free résumé text, typed or read from an upload, into a structured
// CV. It is gated as cv_upload_and_parse.
func (s *Service) StructureCVFromText(ctx context.Context, userID, rawText string) (*CVResult, error) {
	if err := requireText(rawText); err != nil {
		return nil, err
	}
	return s.structuredCV(ctx, userID, CapabilityCVUpload, StructuredCVPrompt(rawText))
}

func (s *Service) structuredCV(ctx context.Context, userID string, capability Capability, prompt Prompt) (*CVResult, error) {
	g, err := s.admit(ctx, userID, capability)
	if err != nil {
		return nil, err
	}

	obj, repaired, err := s.completeObject(ctx, userID, capability, prompt)
	if err != nil {
		return nil, err
	}
	q := s.consume(ctx, userID, g)

	var cv CV
	if err := s.schema.Decode(obj, &cv); err != nil {
		return nil, s.schemaFailure(userID, capability, err)
	}

	s.recorder.RecordGeneration(capability.String(), OutcomeSuccess)
	return &CVResult{CV: &cv, Quota: q, Repaired: repaired}, nil
}

// GenerateCoverLetter writes a cover letter. feedback, when set, steers a regeneration.
func (s *Service) GenerateCoverLetter(ctx context.Context, userID, jobDescription, resume, feedback string) (*CoverLetterResult, error) {
	if err := requireText(jobDescription, resume); err != nil {
		return nil, err
	}
	capability := CapabilityCoverLetter

	g, err := s.admit(ctx, userID, capability)
	if err != nil {
		return nil, err
	}

	text, err := s.complete(ctx, userID, capability, CoverLetterPrompt(jobDescription, resume, feedback))
	if err != nil {
		return nil, err
	}
	letter := ExtractText(text)
	if letter == "" {
		s.recorder.RecordGeneration(capability.String(), OutcomeExtractionFailed)
		return nil, apperrors.ContentExtractionFailed("The model returned an empty cover letter")
	}
	q := s.consume(ctx, userID, g)

	s.recorder.RecordGeneration(capability.String(), OutcomeSuccess)
	return &CoverLetterResult{CoverLetter: letter, Quota: q}, nil
}

// GenerateProfessionalProfile analyses a CV, non-professional experience and the three
// profiling answers. The profile is stored for the user; a failed save does not fail the call.
func (s *Service) GenerateProfessionalProfile(
	ctx context.Context,
	userID, cvText, nonProfessional string,
	answers ProfilingAnswers,
) (*ProfileResult, error) {
	if err := requireText(cvText, answers.WorkApproach, answers.ProblemSolving, answers.WorkValues); err != nil {
		return nil, err
	}
	capability := CapabilityProfessionalProfiling

	g, err := s.admit(ctx, userID, capability)
	if err != nil {
		return nil, err
	}

	obj, repaired, err := s.completeObject(ctx, userID, capability, ProfessionalProfilePrompt(cvText, nonProfessional, answers))
	if err != nil {
		return nil, err
	}
	q := s.consume(ctx, userID, g)

	var profile ProfessionalProfile
	if err := s.schema.Decode(obj, &profile); err != nil {
		return nil, s.schemaFailure(userID, capability, err)
	}
	if profile.GeneratedAt.IsZero() {
		profile.GeneratedAt = s.now().UTC()
	}

	if s.profiles != nil {
		if err := s.profiles.SaveProfile(ctx, userID, &profile); err != nil {
			s.logger.Warn("failed to save generated profile",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
	}

	s.recorder.RecordGeneration(capability.String(), OutcomeSuccess)
	return &ProfileResult{Profile: &profile, Quota: q, Repaired: repaired}, nil
}

// gate is what admit learned about the caller.
type gate struct {
	tier     string
	decision quota.Decision
}

// admit resolves the tier and runs the access and quota checks.
func (s *Service) admit(ctx context.Context, userID string, capability Capability) (gate, error) {
	sub := s.subscription(ctx, userID)
	tier := quota.TierFree
	if sub != nil && strings.TrimSpace(sub.Tier) != "" {
		tier = sub.Tier
	}

	if s.premium[capability] && (sub == nil || !sub.IsPremiumActive(s.now())) {
		s.logger.Info("premium capability denied",
			zap.String("user_id", userID),
			zap.String("capability", capability.String()),
			zap.String("tier", tier),
		)
		s.recorder.RecordGeneration(capability.String(), OutcomeAccessDenied)
		return gate{}, apperrors.AccessDenied(capability.String())
	}

	decision := s.limiter.Check(ctx, userID, tier)
	if decision.LimitReached {
		s.logger.Info("daily quota reached",
			zap.String("user_id", userID),
			zap.String("tier", tier),
			zap.Int("limit", decision.Limit),
		)
		s.recorder.RecordGeneration(capability.String(), OutcomeQuotaExceeded)
		return gate{}, apperrors.QuotaExceeded(tier, decision.Limit)
	}

	return gate{tier: tier, decision: decision}, nil
}

// subscription loads the caller's subscription. Lookup failures are treated as free.
func (s *Service) subscription(ctx context.Context, userID string) *subscription.Subscription {
	if s.subs == nil {
		return nil
	}
	sub, err := s.subs.GetSubscription(ctx, userID)
	if err != nil {
		s.logger.Warn("subscription lookup failed, treating user as free",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil
	}
	return sub
}

func (s *Service) complete(ctx context.Context, userID string, capability Capability, prompt Prompt) (string, error) {
	resp, err := s.provider.Complete(ctx, prompt.Request())
	if err != nil {
		if errors.Is(err, llm.ErrEmptyCompletion) {
			s.logger.Warn("provider returned no content",
				zap.String("user_id", userID),
				zap.String("capability", capability.String()),
			)
			s.recorder.RecordGeneration(capability.String(), OutcomeExtractionFailed)
			return "", apperrors.ContentExtractionFailed("The model returned no content")
		}
		s.logger.Error("provider call failed",
			zap.String("user_id", userID),
			zap.String("capability", capability.String()),
			zap.String("provider", s.provider.Name()),
			zap.Error(err),
		)
		s.recorder.RecordGeneration(capability.String(), OutcomeProviderUnavailable)
		return "", apperrors.ProviderUnavailable(err)
	}

	if resp.FinishReason == llm.FinishLength {
		s.logger.Info("provider output truncated at token limit",
			zap.String("user_id", userID),
			zap.String("capability", capability.String()),
			zap.Int("max_tokens", prompt.MaxTokens),
		)
	}
	return resp.Text, nil
}

func (s *Service) completeObject(ctx context.Context, userID string, capability Capability, prompt Prompt) (map[string]any, bool, error) {
	text, err := s.complete(ctx, userID, capability, prompt)
	if err != nil {
		return nil, false, err
	}
	if strings.TrimSpace(text) == "" {
		s.recorder.RecordGeneration(capability.String(), OutcomeExtractionFailed)
		return nil, false, apperrors.ContentExtractionFailed("The model returned no content")
	}

	ex := Extract(text)
	if ex.Repaired {
		s.recorder.RecordRepair(!ex.Failed())
	}
	if ex.Failed() {
		s.logger.Warn("could not extract JSON from provider output",
			zap.String("user_id", userID),
			zap.String("capability", capability.String()),
			zap.Int("output_bytes", len(text)),
		)
		s.recorder.RecordGeneration(capability.String(), OutcomeExtractionFailed)
		return nil, false, apperrors.ContentExtractionFailed("Failed to extract valid JSON from the model response")
	}
	return ex.Object, ex.Repaired, nil
}

// consume charges one generation and reports the quota left after it.
func (s *Service) consume(ctx context.Context, userID string, g gate) Quota {
	s.limiter.Consume(ctx, userID, g.tier)
	return Quota{
		Remaining: max(0, g.decision.Remaining-1),
		Total:     s.limiter.Allowance(g.tier),
	}
}

func (s *Service) schemaFailure(userID string, capability Capability, err error) error {
	s.logger.Warn("generated content failed schema validation",
		zap.String("user_id", userID),
		zap.String("capability", capability.String()),
		zap.Error(err),
	)
	s.recorder.RecordGeneration(capability.String(), OutcomeSchemaInvalid)
	appErr := apperrors.SchemaValidationFailed(err)
	var se *SchemaError
	if errors.As(err, &se) {
		fields := make(map[string]any, len(se.Fields))
		for k, v := range se.Fields {
			fields[k] = v
		}
		appErr = appErr.WithDetails(map[string]any{"fields": fields})
	}
	return appErr
}

func requireText(values ...string) error {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return apperrors.BadRequest(ErrEmptyInput.Error())
		}
	}
	return nil
}
