package service

import (
	"context"
	"errors"

	"github.com/liliang-cn/medbrief/internal/domain"
	"github.com/liliang-cn/medbrief/internal/remote"
)

// RemoteClient is the summarization service as seen by the session
type RemoteClient interface {
	Summarize(ctx context.Context, text string, mode domain.Mode) (*remote.SummarizeResponse, error)
	Chat(ctx context.Context, req remote.ChatRequest) (*remote.ChatResponse, error)
	ExplainTerm(ctx context.Context, term, context string) (*remote.ExplainResponse, error)
}

var _ RemoteClient = (*remote.Client)(nil)

// errorMessage returns the user-facing part of an error
func errorMessage(err error) string {
	var remoteErr *domain.RemoteError
	if errors.As(err, &remoteErr) && remoteErr.Message != "" {
		return remoteErr.Message
	}
	return err.Error()
}
