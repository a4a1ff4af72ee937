package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/liliang-cn/medbrief/internal/domain"
	"github.com/liliang-cn/medbrief/internal/remote"
	"github.com/liliang-cn/medbrief/internal/repository"
	"go.uber.org/zap"
)

// pythonTimestamp is the layout of datetime.isoformat() without a zone
const pythonTimestamp = "2006-01-02T15:04:05.999999"

// ConversationService keeps the ordered chat turns about the loaded records.
// A single history is shared by both audience modes; each turn records the
// mode it was asked in.
type ConversationService struct {
	client RemoteClient
	repo   *repository.SessionRepository
	logger *zap.Logger
	now    func() time.Time

	sendMu sync.Mutex // one turn in flight at a time

	mu    sync.Mutex
	turns []domain.ChatTurn
	epoch uint64 // bumped by Clear
}

// NewConversationService creates a new conversation service
func NewConversationService(client RemoteClient, repo *repository.SessionRepository, logger *zap.Logger) *ConversationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationService{
		client: client,
		repo:   repo,
		logger: logger,
		now:    time.Now,
		turns:  []domain.ChatTurn{},
	}
}

// Restore loads the mirrored history
func (s *ConversationService) Restore(ctx context.Context) {
	turns := s.repo.LoadChatHistory(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = turns
}

// Send asks question about records. It is a no-op, reported as false, when
// there are no records or the question is blank. Otherwise the user turn is
// appended before the remote call and the reply (or an error turn) after it.
func (s *ConversationService) Send(ctx context.Context, records, question string, mode domain.Mode) (domain.ChatTurn, bool) {
	return s.SendFrom(ctx, question, func() (string, domain.Mode) { return records, mode })
}

// SendFrom is Send with the records and mode read by source once this turn
// holds the conversation. A turn queued behind a Clear sees the cleared state.
func (s *ConversationService) SendFrom(ctx context.Context, question string, source func() (string, domain.Mode)) (domain.ChatTurn, bool) {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.ChatTurn{}, false
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()

	records, mode := source()
	if records == "" {
		return domain.ChatTurn{}, false
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return domain.ChatTurn{}, false
	}
	history := make([]domain.HistoryMessage, 0, len(s.turns))
	for _, turn := range s.turns {
		history = append(history, domain.HistoryMessage{Role: turn.Role, Content: turn.Content})
	}
	s.appendLocked(ctx, s.newTurn(domain.RoleUser, question, mode))
	s.mu.Unlock()

	var reply domain.ChatTurn
	resp, err := s.client.Chat(ctx, remote.ChatRequest{
		MedicalText: records,
		Question:    question,
		ChatHistory: history,
		ViewType:    mode.ViewType(),
	})
	if err != nil {
		s.logger.Warn("Chat turn failed", zap.String("mode", string(mode)), zap.Error(err))
		reply = s.newTurn(domain.RoleAssistant, "Error: "+errorMessage(err), mode)
		reply.IsError = true
	} else {
		reply = s.newTurn(domain.RoleAssistant, resp.Response, mode)
		reply.Timestamp = parseTimestamp(resp.Timestamp, reply.Timestamp)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		s.logger.Info("Dropping reply for cleared conversation")
		return reply, true
	}
	s.appendLocked(ctx, reply)
	return reply, true
}

// Clear empties the conversation
func (s *ConversationService) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = []domain.ChatTurn{}
	s.epoch++
	s.repo.SaveChatHistory(ctx, s.turns)
}

// Turns returns a copy of the conversation
func (s *ConversationService) Turns() []domain.ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := make([]domain.ChatTurn, len(s.turns))
	copy(turns, s.turns)
	return turns
}

// ExplainTerm returns a plain-language explanation of term. Failures are
// returned as explanation text rather than as an error.
func (s *ConversationService) ExplainTerm(ctx context.Context, term, context string) string {
	term = strings.TrimSpace(term)
	if term == "" {
		return "Error getting explanation: No term provided"
	}

	resp, err := s.client.ExplainTerm(ctx, term, context)
	if err != nil {
		s.logger.Warn("Explain term failed", zap.String("term", term), zap.Error(err))
		return "Error getting explanation: " + errorMessage(err)
	}
	return resp.Explanation
}

func (s *ConversationService) appendLocked(ctx context.Context, turn domain.ChatTurn) {
	s.turns = append(s.turns, turn)
	if !s.repo.SaveChatHistory(ctx, s.turns) {
		s.logger.Warn("Chat history not mirrored", zap.Int("turns", len(s.turns)))
	}
}

func (s *ConversationService) newTurn(role domain.Role, content string, mode domain.Mode) domain.ChatTurn {
	return domain.ChatTurn{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: s.now().UTC(),
		Mode:      mode,
	}
}

// parseTimestamp reads a server timestamp, falling back when it is missing or malformed
func parseTimestamp(value string, fallback time.Time) time.Time {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC()
	}
	// isoformat() without a zone is the server's local time
	if t, err := time.ParseInLocation(pythonTimestamp, value, time.Local); err == nil {
		return t.UTC()
	}
	return fallback
}
