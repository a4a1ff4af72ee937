package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/liliang-cn/medbrief/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSummarize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/summarize", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req SummarizeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "BP 120/80", req.MedicalText)
		assert.Equal(t, "doctor", req.ViewType)

		json.NewEncoder(w).Encode(SummarizeResponse{Summary: `{"current_medications":[]}`, ViewType: "doctor"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/api/", time.Second, nil)
	resp, err := client.Summarize(context.Background(), "BP 120/80", domain.ModeClinician)
	require.NoError(t, err)
	assert.Equal(t, `{"current_medications":[]}`, resp.Summary)
}

func TestClientChatSendsHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		// Empty history is sent as a list, never null
		assert.JSONEq(t, `[]`, string(raw["chat_history"]))
		assert.JSONEq(t, `"patient"`, string(raw["view_type"]))

		json.NewEncoder(w).Encode(ChatResponse{Response: "Your BP is 120/80.", Timestamp: "2025-03-01T09:00:00.123456"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, nil)
	resp, err := client.Chat(context.Background(), ChatRequest{
		MedicalText: "BP 120/80",
		Question:    "What is my BP?",
		ViewType:    domain.ModePatient.ViewType(),
	})
	require.NoError(t, err)
	assert.Equal(t, "Your BP is 120/80.", resp.Response)
	assert.Equal(t, "2025-03-01T09:00:00.123456", resp.Timestamp)
}

func TestClientErrorResponses(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantRaw     string
	}{
		{"json error", http.StatusBadRequest, `{"error":"No term provided"}`, "No term provided", ""},
		{"raw response", http.StatusInternalServerError, `{"error":"Invalid JSON response from AI","raw_response":"oops"}`, "Invalid JSON response from AI", "oops"},
		{"plain text", http.StatusBadGateway, "upstream down", "upstream down", ""},
		{"empty body", http.StatusServiceUnavailable, "", "Service Unavailable", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Second, nil).ExplainTerm(context.Background(), "", "")
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrRemote)

			var remoteErr *domain.RemoteError
			require.True(t, errors.As(err, &remoteErr))
			assert.Equal(t, OpExplainTerm, remoteErr.Op)
			assert.Equal(t, tt.status, remoteErr.StatusCode)
			assert.Equal(t, tt.wantMessage, remoteErr.Message)
			assert.Equal(t, tt.wantRaw, remoteErr.RawResponse)
		})
	}
}

func TestClientTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewClient(srv.URL, 50*time.Millisecond, nil).Health(context.Background())
	require.Error(t, err)

	var remoteErr *domain.RemoteError
	require.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, 0, remoteErr.StatusCode)
	assert.Contains(t, remoteErr.Message, "timed out")
}

func TestClientInvalidBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>"))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second, nil).Summarize(context.Background(), "x", domain.ModePatient)
	assert.ErrorIs(t, err, domain.ErrRemote)
}
