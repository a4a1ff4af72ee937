package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/liliang-cn/medbrief/internal/domain"
	"github.com/liliang-cn/medbrief/internal/repository"
	"github.com/liliang-cn/medbrief/internal/summary"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SessionService owns the session: record text, the summary pair, the
// active mode and the pipeline status. Every committed change is mirrored
// to the session repository.
type SessionService struct {
	client RemoteClient
	repo   *repository.SessionRepository
	conv   *ConversationService
	logger *zap.Logger

	mu        sync.Mutex
	records   string
	summaries domain.SummaryPair
	mode      domain.Mode
	status    domain.Status
	epoch     uint64 // bumped by Clear so in-flight generations are discarded
}

// NewSessionService creates a new session service
func NewSessionService(
	client RemoteClient,
	repo *repository.SessionRepository,
	conv *ConversationService,
	logger *zap.Logger,
) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		client:    client,
		repo:      repo,
		conv:      conv,
		logger:    logger,
		summaries: domain.EmptySummaryPair(),
		mode:      domain.DefaultMode,
		status:    domain.IdleStatus(),
	}
}

// Restore rehydrates records, summaries and chat history from the mirror.
// Missing or corrupt slots start empty.
func (s *SessionService) Restore(ctx context.Context) {
	records, _ := s.repo.LoadRecords(ctx)
	summaries := s.repo.LoadSummaries(ctx)
	s.conv.Restore(ctx)

	s.mu.Lock()
	s.records = records
	s.summaries = summaries
	s.mu.Unlock()

	s.logger.Info("Session restored",
		zap.Int("records_bytes", len(records)),
		zap.Bool("clinician_summary", !summaries.Clinician.IsAbsent()),
		zap.Bool("patient_summary", !summaries.Patient.IsAbsent()),
		zap.Int("chat_turns", len(s.conv.Turns())),
	)
}

// Ingest replaces the record text with the joined documents
func (s *SessionService) Ingest(ctx context.Context, docs []domain.Document) string {
	records := domain.JoinDocuments(docs)
	s.setRecords(ctx, records)
	s.logger.Info("Documents ingested", zap.Int("documents", len(docs)), zap.Int("bytes", len(records)))
	return records
}

// IngestFiles decodes uploaded files and ingests them. Nothing is ingested
// if any file is rejected.
func (s *SessionService) IngestFiles(ctx context.Context, files []UploadedFile) (string, error) {
	docs := make([]domain.Document, 0, len(files))
	for _, file := range files {
		doc, err := DecodeDocument(file)
		if err != nil {
			return "", err
		}
		docs = append(docs, doc)
	}
	return s.Ingest(ctx, docs), nil
}

// EditRecords replaces the record text directly
func (s *SessionService) EditRecords(ctx context.Context, text string) string {
	s.setRecords(ctx, text)
	return text
}

func (s *SessionService) setRecords(ctx context.Context, records string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = records
	if s.status.State == domain.StateError {
		s.status = domain.IdleStatus()
	}
	if !s.repo.SaveRecords(ctx, records) {
		s.logger.Warn("Records not mirrored", zap.Int("bytes", len(records)))
	}
}

// Generate requests both summaries concurrently. The pair is replaced only
// when both succeed; on any failure the status records the error and the
// previous pair is kept.
func (s *SessionService) Generate(ctx context.Context) (domain.SummaryPair, error) {
	s.mu.Lock()
	if s.records == "" {
		s.mu.Unlock()
		return domain.SummaryPair{}, domain.ErrNoRecords
	}
	if s.status.State == domain.StateGenerating {
		s.mu.Unlock()
		return domain.SummaryPair{}, domain.ErrBusy
	}
	records := s.records
	epoch := s.epoch
	s.status = domain.GeneratingStatus()
	s.mu.Unlock()

	s.logger.Info("Generating summaries", zap.Int("records_bytes", len(records)))

	results := make([]domain.Summary, len(domain.Modes))
	g, gctx := errgroup.WithContext(ctx)
	for i, mode := range domain.Modes {
		g.Go(func() error {
			resp, err := s.client.Summarize(gctx, records, mode)
			if err != nil {
				return err
			}
			results[i] = summary.Parse(mode, resp.Summary)
			return nil
		})
	}
	err := g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		s.logger.Info("Discarding summaries for cleared session")
		return s.summaries, nil
	}

	if err != nil {
		s.status = domain.ErrorStatus("Failed to generate summary: " + errorMessage(err))
		s.logger.Error("Summary generation failed", zap.Error(err))
		return domain.SummaryPair{}, fmt.Errorf("generate summaries: %w", err)
	}

	pair := domain.SummaryPair{Clinician: results[0], Patient: results[1]}
	s.summaries = pair
	s.status = domain.IdleStatus()
	if !s.repo.SaveSummaries(ctx, pair) {
		s.logger.Warn("Summaries not mirrored")
	}

	s.logger.Info("Summaries generated",
		zap.String("clinician", string(pair.Clinician.Kind)),
		zap.String("patient", string(pair.Patient.Kind)),
	)
	return pair, nil
}

// SwitchMode selects the active audience mode
func (s *SessionService) SwitchMode(mode domain.Mode) error {
	if !mode.Valid() {
		return domain.NewValidationError("unknown mode: " + string(mode))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	return nil
}

// Clear resets records, summaries, conversation and status, and empties the
// mirror. It is irreversible and must be confirmed.
func (s *SessionService) Clear(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return domain.NewValidationError("clear not confirmed")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = ""
	s.summaries = domain.EmptySummaryPair()
	s.status = domain.IdleStatus()
	s.epoch++

	// The mirror is wiped under s.mu so a concurrent ingest lands after it
	s.conv.Clear(ctx)
	if !s.repo.ClearAll(ctx) {
		s.logger.Warn("Session mirror not fully cleared")
	}

	s.logger.Info("Session cleared")
	return nil
}

// SendTurn asks a question about the records in the active mode.
// It reports false when nothing was sent.
func (s *SessionService) SendTurn(ctx context.Context, question string) (domain.ChatTurn, bool) {
	return s.conv.SendFrom(ctx, question, func() (string, domain.Mode) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.records, s.mode
	})
}

// ClearChat empties the conversation only
func (s *SessionService) ClearChat(ctx context.Context) {
	s.conv.Clear(ctx)
}

// ChatTurns returns a copy of the conversation
func (s *SessionService) ChatTurns() []domain.ChatTurn {
	return s.conv.Turns()
}

// ExplainTerm explains term, using the whole record text as context when none is given
func (s *SessionService) ExplainTerm(ctx context.Context, term, context string) string {
	if context == "" {
		s.mu.Lock()
		context = s.records
		s.mu.Unlock()
	}
	return s.conv.ExplainTerm(ctx, term, context)
}

// Summary returns the current summary for mode
func (s *SessionService) Summary(mode domain.Mode) domain.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaries.Get(mode)
}

// Snapshot returns a read-only copy of the session
func (s *SessionService) Snapshot() domain.Snapshot {
	s.mu.Lock()
	snap := domain.Snapshot{
		Records:            s.records,
		HasRecords:         s.records != "",
		Mode:               s.mode,
		Status:             s.status,
		Summaries:          s.summaries,
		ActiveSummary:      s.summaries.Get(s.mode),
		SuggestedQuestions: domain.SuggestedQuestions(s.mode),
	}
	s.mu.Unlock()

	snap.Chat = s.conv.Turns()
	return snap
}
