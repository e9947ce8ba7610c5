package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-ledger-api/internal/models"
	appErrors "github.com/noah-isme/sma-ledger-api/pkg/errors"
)

const (
	assistantKindRemarks      = "remarks"
	assistantKindAnnouncement = "announcement"

	assistantSourceModel    = "model"
	assistantSourceFallback = "fallback"

	remarksEmptyText    = "Keep up the hard work!"
	remarksFallbackText = "Consistently showing good progress across all subjects."
)

// TextGenerator produces free text for a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratedText is assistant output. Generated is false when the text is a
// canned fallback.
type GeneratedText struct {
	Text      string `json:"text"`
	Generated bool   `json:"generated"`
}

// AnnouncementRequest asks for a drafted announcement.
type AnnouncementRequest struct {
	Topic string `json:"topic" validate:"required,max=500"`
}

// AssistantService drafts remarks and announcements. It never fails on
// model errors; the fixed fallback text is returned instead.
type AssistantService struct {
	generator TextGenerator
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssistantService accepts a nil generator, in which case every call
// returns the fallback text.
func NewAssistantService(generator TextGenerator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AssistantService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssistantService{generator: generator, metrics: metrics, validator: validate, logger: logger}
}

// ReportRemarks asks for a two sentence report card remark.
func (s *AssistantService) ReportRemarks(ctx context.Context, studentName string, results models.ExamResults) GeneratedText {
	scores, err := json.Marshal(results)
	if err != nil {
		s.logger.Warn("failed to encode scores for remarks", zap.Error(err))
		return s.fallback(assistantKindRemarks, remarksFallbackText)
	}
	prompt := fmt.Sprintf("Based on the following scores for student %s, generate a 2-sentence encouraging academic remark for a school report card: %s", studentName, scores)
	return s.generate(ctx, assistantKindRemarks, prompt, remarksEmptyText, remarksFallbackText)
}

// DraftAnnouncement writes a WhatsApp announcement about the topic.
func (s *AssistantService) DraftAnnouncement(ctx context.Context, req AnnouncementRequest) (GeneratedText, error) {
	if err := s.validator.Struct(req); err != nil {
		return GeneratedText{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}
	topic := strings.TrimSpace(req.Topic)
	prompt := fmt.Sprintf("Write a professional but friendly school WhatsApp announcement message about: %s. Include emojis.", topic)
	empty := fmt.Sprintf("Announcement: %s", topic)
	fallback := fmt.Sprintf("📢 Important Update: %s. Please check the notice board for details.", topic)
	return s.generate(ctx, assistantKindAnnouncement, prompt, empty, fallback), nil
}

func (s *AssistantService) generate(ctx context.Context, kind, prompt, emptyText, fallbackText string) GeneratedText {
	if s.generator == nil {
		return s.fallback(kind, fallbackText)
	}
	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.logger.Warn("assistant generation failed", zap.String("kind", kind), zap.Error(err))
		return s.fallback(kind, fallbackText)
	}
	if strings.TrimSpace(text) == "" {
		s.metrics.RecordAssistant(kind, assistantSourceFallback)
		return GeneratedText{Text: emptyText}
	}
	s.metrics.RecordAssistant(kind, assistantSourceModel)
	return GeneratedText{Text: text, Generated: true}
}

func (s *AssistantService) fallback(kind, text string) GeneratedText {
	s.metrics.RecordAssistant(kind, assistantSourceFallback)
	return GeneratedText{Text: text}
}
