package service

import (
	"context"
	"sync"
	"testing"

	"github.com/liliang-cn/medbrief/internal/domain"
	"github.com/liliang-cn/medbrief/internal/remote"
	"github.com/liliang-cn/medbrief/internal/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeClient is a scriptable RemoteClient
type fakeClient struct {
	mu sync.Mutex

	summarize func(ctx context.Context, text string, mode domain.Mode) (*remote.SummarizeResponse, error)
	chat      func(ctx context.Context, req remote.ChatRequest) (*remote.ChatResponse, error)
	explain   func(ctx context.Context, term, context string) (*remote.ExplainResponse, error)

	summarizeCalls []domain.Mode
	chatCalls      []remote.ChatRequest
	explainCalls   []remote.ExplainRequest
}

func (f *fakeClient) Summarize(ctx context.Context, text string, mode domain.Mode) (*remote.SummarizeResponse, error) {
	f.mu.Lock()
	f.summarizeCalls = append(f.summarizeCalls, mode)
	fn := f.summarize
	f.mu.Unlock()

	if fn == nil {
		return &remote.SummarizeResponse{Summary: "{}", ViewType: mode.ViewType()}, nil
	}
	return fn(ctx, text, mode)
}

func (f *fakeClient) Chat(ctx context.Context, req remote.ChatRequest) (*remote.ChatResponse, error) {
	f.mu.Lock()
	f.chatCalls = append(f.chatCalls, req)
	fn := f.chat
	f.mu.Unlock()

	if fn == nil {
		return &remote.ChatResponse{Response: "ok"}, nil
	}
	return fn(ctx, req)
}

func (f *fakeClient) ExplainTerm(ctx context.Context, term, context string) (*remote.ExplainResponse, error) {
	f.mu.Lock()
	f.explainCalls = append(f.explainCalls, remote.ExplainRequest{Term: term, Context: context})
	fn := f.explain
	f.mu.Unlock()

	if fn == nil {
		return &remote.ExplainResponse{Term: term, Explanation: term + " explained"}, nil
	}
	return fn(ctx, term, context)
}

func (f *fakeClient) chatRequests() []remote.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]remote.ChatRequest(nil), f.chatCalls...)
}

type fixture struct {
	client  *fakeClient
	kv      repository.KeyValueStore
	repo    *repository.SessionRepository
	conv    *ConversationService
	session *SessionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kv := repository.NewMemoryStore()
	t.Cleanup(func() { kv.Close() })
	return newFixtureWithStore(t, kv)
}

func newFixtureWithStore(t *testing.T, kv repository.KeyValueStore) *fixture {
	t.Helper()
	require.NotNil(t, kv)

	client := &fakeClient{}
	repo := repository.NewSessionRepository(kv, zap.NewNop(), true)
	conv := NewConversationService(client, repo, zap.NewNop())
	return &fixture{
		client:  client,
		kv:      kv,
		repo:    repo,
		conv:    conv,
		session: NewSessionService(client, repo, conv, zap.NewNop()),
	}
}
