package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/liliang-cn/medbrief/internal/domain"
	"github.com/liliang-cn/medbrief/internal/remote"
	"github.com/liliang-cn/medbrief/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIngestJoinsDocuments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	records := f.session.Ingest(ctx, []domain.Document{
		{Name: "A.txt", Content: "BP 120/80"},
		{Name: "B.txt", Content: "Allergy: penicillin"},
	})

	want := "=== A.txt ===\nBP 120/80\n\n=== B.txt ===\nAllergy: penicillin"
	assert.Equal(t, want, records)
	assert.Equal(t, want, f.session.Snapshot().Records)

	stored, ok := f.repo.LoadRecords(ctx)
	require.True(t, ok)
	assert.Equal(t, want, stored)
}

func TestIngestFilesRejectsBinary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.session.EditRecords(ctx, "existing")

	_, err := f.session.IngestFiles(ctx, []UploadedFile{
		{Name: "notes.txt", Data: []byte("BP 120/80")},
		{Name: "scan.pdf", Data: []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n")},
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, "existing", f.session.Snapshot().Records)

	records, err := f.session.IngestFiles(ctx, []UploadedFile{{Name: "notes.txt", Data: []byte("BP 120/80")}})
	require.NoError(t, err)
	assert.Equal(t, "=== notes.txt ===\nBP 120/80", records)
}

func TestGenerateRequiresRecords(t *testing.T) {
	f := newFixture(t)

	_, err := f.session.Generate(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoRecords)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, f.client.summarizeCalls)
	assert.Equal(t, domain.IdleStatus(), f.session.Snapshot().Status)
}

func TestGenerateUpdatesBothSummaries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.client.summarize = func(ctx context.Context, text string, mode domain.Mode) (*remote.SummarizeResponse, error) {
		assert.Equal(t, "BP 120/80", text)
		if mode == domain.ModeClinician {
			return &remote.SummarizeResponse{Summary: `{"current_medications":[]}`}, nil
		}
		return &remote.SummarizeResponse{Summary: "not json at all"}, nil
	}
	f.session.EditRecords(ctx, "BP 120/80")

	pair, err := f.session.Generate(ctx)
	require.NoError(t, err)

	require.True(t, pair.Clinician.IsValid())
	assert.Empty(t, pair.Clinician.Clinician.CurrentMedications)
	require.True(t, pair.Patient.IsUnparsed())
	assert.Equal(t, "not json at all", pair.Patient.Raw)

	snap := f.session.Snapshot()
	assert.Equal(t, domain.IdleStatus(), snap.Status)
	assert.Equal(t, pair, snap.Summaries)
	assert.Equal(t, pair.Patient, snap.ActiveSummary)
	assert.ElementsMatch(t, domain.Modes, f.client.summarizeCalls)

	stored := f.repo.LoadSummaries(ctx)
	assert.True(t, stored.Clinician.IsValid())
	assert.Equal(t, "not json at all", stored.Patient.Raw)
}

func TestGeneratePartialFailureKeepsPreviousPair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.session.EditRecords(ctx, "BP 120/80")

	// First generation succeeds
	_, err := f.session.Generate(ctx)
	require.NoError(t, err)
	before := f.session.Snapshot().Summaries

	// Second: patient succeeds, clinician fails
	f.client.summarize = func(ctx context.Context, text string, mode domain.Mode) (*remote.SummarizeResponse, error) {
		if mode == domain.ModeClinician {
			return nil, &domain.RemoteError{Op: remote.OpSummarize, StatusCode: 500, Message: "model overloaded"}
		}
		return &remote.SummarizeResponse{Summary: `{"conditions_summary":"new"}`}, nil
	}

	_, err = f.session.Generate(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRemote)

	snap := f.session.Snapshot()
	assert.Equal(t, before, snap.Summaries)
	assert.Equal(t, domain.ErrorStatus("Failed to generate summary: model overloaded"), snap.Status)
	assert.Equal(t, before, f.repo.LoadSummaries(ctx))

	// Editing the records clears the error
	f.session.EditRecords(ctx, "BP 130/85")
	assert.Equal(t, domain.IdleStatus(), f.session.Snapshot().Status)
}

func TestGenerateIsNotReentrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.session.EditRecords(ctx, "BP 120/80")

	started := make(chan struct{}, 2)
	release := make(chan struct{})
	f.client.summarize = func(ctx context.Context, text string, mode domain.Mode) (*remote.SummarizeResponse, error) {
		started <- struct{}{}
		<-release
		return &remote.SummarizeResponse{Summary: "{}"}, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.session.Generate(ctx)
		done <- err
	}()
	<-started

	assert.Equal(t, domain.StateGenerating, f.session.Snapshot().Status.State)
	_, err := f.session.Generate(ctx)
	assert.ErrorIs(t, err, domain.ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, domain.IdleStatus(), f.session.Snapshot().Status)
}

func TestClearDuringGenerationDiscardsResults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.session.EditRecords(ctx, "BP 120/80")

	started := make(chan struct{}, 2)
	release := make(chan struct{})
	f.client.summarize = func(ctx context.Context, text string, mode domain.Mode) (*remote.SummarizeResponse, error) {
		started <- struct{}{}
		<-release
		return &remote.SummarizeResponse{Summary: "{}"}, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.session.Generate(ctx)
		done <- err
	}()
	<-started

	require.NoError(t, f.session.Clear(ctx, true))
	close(release)
	require.NoError(t, <-done)

	snap := f.session.Snapshot()
	assert.True(t, snap.Summaries.Clinician.IsAbsent())
	assert.True(t, snap.Summaries.Patient.IsAbsent())
	assert.Equal(t, domain.IdleStatus(), snap.Status)
	assert.True(t, f.repo.LoadSummaries(ctx).Patient.IsAbsent())
}

func TestGenerateTimeoutBecomesError(t *testing.T) {
	f := newFixture(t)
	f.session.EditRecords(context.Background(), "BP 120/80")
	f.client.summarize = func(ctx context.Context, text string, mode domain.Mode) (*remote.SummarizeResponse, error) {
		<-ctx.Done()
		return nil, &domain.RemoteError{Op: remote.OpSummarize, Message: "request timed out after 10ms", Err: ctx.Err()}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.session.Generate(ctx)
	require.Error(t, err)
	status := f.session.Snapshot().Status
	assert.Equal(t, domain.StateError, status.State)
	assert.Contains(t, status.Message, "timed out")
}

func TestSwitchMode(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, domain.ModePatient, f.session.Snapshot().Mode)
	require.NoError(t, f.session.SwitchMode(domain.ModeClinician))

	snap := f.session.Snapshot()
	assert.Equal(t, domain.ModeClinician, snap.Mode)
	assert.Equal(t, domain.SuggestedQuestions(domain.ModeClinician), snap.SuggestedQuestions)

	assert.ErrorIs(t, f.session.SwitchMode("nurse"), domain.ErrValidation)
	assert.Empty(t, f.client.summarizeCalls)
}

func TestClearResetsSessionAndMirror(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.session.EditRecords(ctx, "BP 120/80")
	_, err := f.session.Generate(ctx)
	require.NoError(t, err)
	_, sent := f.session.SendTurn(ctx, "What is my BP?")
	require.True(t, sent)

	err = f.session.Clear(ctx, false)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.True(t, f.session.Snapshot().HasRecords)

	require.NoError(t, f.session.Clear(ctx, true))

	snap := f.session.Snapshot()
	assert.Equal(t, "", snap.Records)
	assert.False(t, snap.HasRecords)
	assert.True(t, snap.Summaries.Clinician.IsAbsent())
	assert.True(t, snap.Summaries.Patient.IsAbsent())
	assert.Empty(t, snap.Chat)
	assert.Equal(t, domain.IdleStatus(), snap.Status)

	for _, slot := range repository.Slots {
		_, err := f.kv.Get(ctx, string(slot))
		assert.ErrorIs(t, err, repository.ErrKeyNotFound, "slot %s", slot)
	}
}

func TestClearRacingIngestKeepsMirrorConsistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		f.session.EditRecords(ctx, "BP 120/80")

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			f.session.Clear(ctx, true)
		}()
		go func() {
			defer wg.Done()
			f.session.EditRecords(ctx, "HbA1c 7.2%")
		}()
		wg.Wait()

		mirrored, _ := f.repo.LoadRecords(ctx)
		assert.Equal(t, f.session.Snapshot().Records, mirrored)
	}
}

func TestRestoreRehydratesFromMirror(t *testing.T) {
	kv := repository.NewMemoryStore()
	defer kv.Close()
	ctx := context.Background()

	first := newFixtureWithStore(t, kv)
	first.session.EditRecords(ctx, "BP 120/80")
	_, err := first.session.Generate(ctx)
	require.NoError(t, err)
	_, sent := first.session.SendTurn(ctx, "What is my BP?")
	require.True(t, sent)

	second := newFixtureWithStore(t, kv)
	second.session.Restore(ctx)

	want := first.session.Snapshot()
	got := second.session.Snapshot()
	assert.Equal(t, want.Records, got.Records)
	assert.Equal(t, want.Summaries, got.Summaries)
	require.Len(t, got.Chat, 2)
	assert.Equal(t, want.Chat[0].ID, got.Chat[0].ID)
	assert.Equal(t, want.Chat[1].Content, got.Chat[1].Content)
}

func TestRestoreWithCorruptMirrorStartsEmpty(t *testing.T) {
	kv := repository.NewMemoryStore()
	defer kv.Close()
	ctx := context.Background()
	for _, slot := range repository.Slots {
		require.NoError(t, kv.Set(ctx, string(slot), []byte("{not json")))
	}

	f := newFixtureWithStore(t, kv)
	f.session.Restore(ctx)

	snap := f.session.Snapshot()
	assert.False(t, snap.HasRecords)
	assert.True(t, snap.ActiveSummary.IsAbsent())
	assert.Empty(t, snap.Chat)
}

func TestSessionSurvivesMirrorFailures(t *testing.T) {
	repo := repository.NewSessionRepository(brokenStore{}, zap.NewNop(), true)
	client := &fakeClient{}
	conv := NewConversationService(client, repo, zap.NewNop())
	session := NewSessionService(client, repo, conv, zap.NewNop())
	ctx := context.Background()

	session.EditRecords(ctx, "BP 120/80")
	_, err := session.Generate(ctx)
	require.NoError(t, err)
	_, sent := session.SendTurn(ctx, "What is my BP?")
	require.True(t, sent)
	require.NoError(t, session.Clear(ctx, true))
}

func TestExplainTermDefaultsToRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.session.EditRecords(ctx, "HbA1c 7.2%")

	assert.Equal(t, "HbA1c explained", f.session.ExplainTerm(ctx, "HbA1c", ""))
	assert.Equal(t, "HbA1c explained", f.session.ExplainTerm(ctx, "HbA1c", "lab section"))

	require.Len(t, f.client.explainCalls, 2)
	assert.Equal(t, "HbA1c 7.2%", f.client.explainCalls[0].Context)
	assert.Equal(t, "lab section", f.client.explainCalls[1].Context)
}

// brokenStore fails every operation
type brokenStore struct{}

func (brokenStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

func (brokenStore) Set(ctx context.Context, key string, value []byte) error {
	return errors.New("disk on fire")
}

func (brokenStore) Delete(ctx context.Context, key string) error {
	return errors.New("disk on fire")
}

func (brokenStore) Close() error { return nil }
