package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/liliang-cn/medbrief/internal/domain"
	"go.uber.org/zap"
)

// Slot names one persisted piece of session state
type Slot string

const (
	SlotRecords     Slot = "records"
	SlotSummaries   Slot = "summaries"
	SlotChatHistory Slot = "chat_history"
)

// Slots lists every slot the mirror owns
var Slots = []Slot{SlotRecords, SlotSummaries, SlotChatHistory}

// SessionRepository mirrors session state into a key-value store. Every value
// is JSON encoded. Persistence is best-effort: reads fall back to defaults on
// missing or corrupt data and writes report success as a bool.
type SessionRepository struct {
	kv         KeyValueStore
	logger     *zap.Logger
	mirrorChat bool
}

// NewSessionRepository creates a session mirror over kv
func NewSessionRepository(kv KeyValueStore, logger *zap.Logger, mirrorChat bool) *SessionRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionRepository{kv: kv, logger: logger, mirrorChat: mirrorChat}
}

// MirrorsChat reports whether chat history is persisted
func (r *SessionRepository) MirrorsChat() bool {
	return r.mirrorChat
}

// LoadRecords returns the stored record text; ok is false when nothing is stored
func (r *SessionRepository) LoadRecords(ctx context.Context) (string, bool) {
	var records string
	if !r.load(ctx, SlotRecords, &records) || records == "" {
		return "", false
	}
	return records, true
}

// SaveRecords stores the record text
func (r *SessionRepository) SaveRecords(ctx context.Context, records string) bool {
	return r.save(ctx, SlotRecords, records)
}

// LoadSummaries returns the stored pair, or a pair of absent summaries
func (r *SessionRepository) LoadSummaries(ctx context.Context) domain.SummaryPair {
	pair := domain.EmptySummaryPair()
	if !r.load(ctx, SlotSummaries, &pair) {
		return domain.EmptySummaryPair()
	}
	return pair
}

// SaveSummaries stores the summary pair
func (r *SessionRepository) SaveSummaries(ctx context.Context, pair domain.SummaryPair) bool {
	return r.save(ctx, SlotSummaries, pair)
}

// LoadChatHistory returns the stored turns, or an empty list
func (r *SessionRepository) LoadChatHistory(ctx context.Context) []domain.ChatTurn {
	turns := []domain.ChatTurn{}
	if !r.mirrorChat || !r.load(ctx, SlotChatHistory, &turns) || turns == nil {
		return []domain.ChatTurn{}
	}
	return turns
}

// SaveChatHistory stores the turns. It is a successful no-op when chat
// mirroring is disabled.
func (r *SessionRepository) SaveChatHistory(ctx context.Context, turns []domain.ChatTurn) bool {
	if !r.mirrorChat {
		return true
	}
	if turns == nil {
		turns = []domain.ChatTurn{}
	}
	return r.save(ctx, SlotChatHistory, turns)
}

// ClearSlot removes one slot
func (r *SessionRepository) ClearSlot(ctx context.Context, slot Slot) bool {
	if err := r.kv.Delete(ctx, string(slot)); err != nil {
		r.logger.Warn("Failed to clear slot", zap.String("slot", string(slot)), zap.Error(err))
		return false
	}
	return true
}

// ClearAll removes every slot, continuing past failures
func (r *SessionRepository) ClearAll(ctx context.Context) bool {
	ok := true
	for _, slot := range Slots {
		if !r.ClearSlot(ctx, slot) {
			ok = false
		}
	}
	return ok
}

func (r *SessionRepository) load(ctx context.Context, slot Slot, v any) bool {
	data, err := r.kv.Get(ctx, string(slot))
	if errors.Is(err, ErrKeyNotFound) {
		return false
	}
	if err != nil {
		r.logger.Warn("Failed to read slot", zap.String("slot", string(slot)), zap.Error(err))
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		r.logger.Warn("Ignoring corrupt slot", zap.String("slot", string(slot)), zap.Error(err))
		return false
	}
	return true
}

func (r *SessionRepository) save(ctx context.Context, slot Slot, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		r.logger.Warn("Failed to encode slot", zap.String("slot", string(slot)), zap.Error(err))
		return false
	}
	if err := r.kv.Set(ctx, string(slot), data); err != nil {
		r.logger.Warn("Failed to write slot", zap.String("slot", string(slot)), zap.Error(err))
		return false
	}
	return true
}
