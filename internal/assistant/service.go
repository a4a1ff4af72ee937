// Package assistant implements the summarization service that the session
// daemon calls: structured summaries, record-grounded chat and term
// explanations, generated by a language model.
package assistant

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/liliang-cn/medbrief/internal/domain"
	"github.com/liliang-cn/medbrief/internal/remote"
	"github.com/liliang-cn/medbrief/internal/summary"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Token budgets per operation
const (
	chatMaxTokens    = 2048
	explainMaxTokens = 1024
)

// InvalidJSONError is returned when the model's summary is not valid JSON
type InvalidJSONError struct {
	RawResponse string
}

func (e *InvalidJSONError) Error() string {
	return "Invalid JSON response from AI"
}

// Service answers the summarize, chat and explain-term operations
type Service struct {
	gen     Generator
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a new assistant service
func NewService(gen Generator, timeout time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{gen: gen, timeout: timeout, logger: logger, now: time.Now}
}

// Summarize produces the JSON summary of text for the audience named by viewType
func (s *Service) Summarize(ctx context.Context, req remote.SummarizeRequest) (*remote.SummarizeResponse, error) {
	if strings.TrimSpace(req.MedicalText) == "" {
		return nil, domain.NewValidationError("No medical text provided")
	}
	mode := modeFor(req.ViewType, domain.ModeClinician)

	text, err := s.generate(ctx, Request{
		Messages:    []Message{{Role: domain.RoleUser, Content: summaryPrompt(mode, req.MedicalText)}},
		Temperature: 1,
	})
	if err != nil {
		return nil, err
	}

	cleaned := summary.ExtractJSON(text)
	if !gjson.Valid(cleaned) {
		s.logger.Warn("Model returned invalid JSON", zap.String("view_type", mode.ViewType()), zap.Int("bytes", len(text)))
		return nil, &InvalidJSONError{RawResponse: text}
	}

	return &remote.SummarizeResponse{
		Summary:   cleaned,
		ViewType:  mode.ViewType(),
		Timestamp: s.timestamp(),
	}, nil
}

// Chat answers a question about the records, continuing the given history
func (s *Service) Chat(ctx context.Context, req remote.ChatRequest) (*remote.ChatResponse, error) {
	if strings.TrimSpace(req.MedicalText) == "" || strings.TrimSpace(req.Question) == "" {
		return nil, domain.NewValidationError("Missing medical text or question")
	}
	mode := modeFor(req.ViewType, domain.ModePatient)

	messages := make([]Message, 0, len(req.ChatHistory)+1)
	for _, h := range req.ChatHistory {
		messages = append(messages, Message{Role: h.Role, Content: h.Content})
	}
	messages = append(messages, Message{Role: domain.RoleUser, Content: req.Question})

	text, err := s.generate(ctx, Request{
		System:    chatPrompt(mode, req.MedicalText),
		Messages:  messages,
		MaxTokens: chatMaxTokens,
	})
	if err != nil {
		return nil, err
	}
	return &remote.ChatResponse{Response: text, Timestamp: s.timestamp()}, nil
}

// ExplainTerm explains a medical term in plain language
func (s *Service) ExplainTerm(ctx context.Context, req remote.ExplainRequest) (*remote.ExplainResponse, error) {
	term := strings.TrimSpace(req.Term)
	if term == "" {
		return nil, domain.NewValidationError("No term provided")
	}

	text, err := s.generate(ctx, Request{
		Messages:  []Message{{Role: domain.RoleUser, Content: explainTermPrompt(term, req.Context)}},
		MaxTokens: explainMaxTokens,
	})
	if err != nil {
		return nil, err
	}
	return &remote.ExplainResponse{Explanation: text, Term: term, Timestamp: s.timestamp()}, nil
}

// Health reports the service as healthy
func (s *Service) Health() *remote.HealthResponse {
	return &remote.HealthResponse{Status: "healthy", Timestamp: s.timestamp()}
}

func (s *Service) generate(ctx context.Context, req Request) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := s.now()
	text, err := s.gen.Generate(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("Generation timed out", zap.Duration("timeout", s.timeout))
		} else {
			s.logger.Error("Generation failed", zap.Error(err))
		}
		return "", err
	}

	s.logger.Debug("Generation completed", zap.Duration("duration", s.now().Sub(start)), zap.Int("bytes", len(text)))
	return text, nil
}

func (s *Service) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

// modeFor reads a view_type tag; an empty tag selects fallback and an
// unknown one the patient audience.
func modeFor(viewType string, fallback domain.Mode) domain.Mode {
	if strings.TrimSpace(viewType) == "" {
		return fallback
	}
	mode, err := domain.ParseMode(viewType)
	if err != nil {
		return domain.ModePatient
	}
	return mode
}
