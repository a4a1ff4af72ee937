package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/liliang-cn/medbrief/internal/domain"
	"go.uber.org/zap"
)

// Remote operations
const (
	OpSummarize   = "summarize"
	OpChat        = "chat"
	OpExplainTerm = "explain-term"
	OpHealth      = "health"
)

// DefaultTimeout bounds each call when no timeout is configured
const DefaultTimeout = 60 * time.Second

// SummarizeRequest is the body of POST /summarize
type SummarizeRequest struct {
	MedicalText string `json:"medical_text"`
	ViewType    string `json:"view_type"`
}

// SummarizeResponse carries the model's summary text, expected to be JSON
type SummarizeResponse struct {
	Summary   string `json:"summary"`
	ViewType  string `json:"view_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// ChatRequest is the body of POST /chat
type ChatRequest struct {
	MedicalText string                  `json:"medical_text"`
	Question    string                  `json:"question"`
	ChatHistory []domain.HistoryMessage `json:"chat_history"`
	ViewType    string                  `json:"view_type"`
}

// ChatResponse is the assistant's reply
type ChatResponse struct {
	Response  string `json:"response"`
	Timestamp string `json:"timestamp"`
}

// ExplainRequest is the body of POST /explain-term
type ExplainRequest struct {
	Term    string `json:"term"`
	Context string `json:"context"`
}

// ExplainResponse is a plain-language explanation
type ExplainResponse struct {
	Explanation string `json:"explanation"`
	Term        string `json:"term,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}

// HealthResponse is the liveness payload
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp,omitempty"`
}

// errorResponse is the failure body for every operation
type errorResponse struct {
	Error       string `json:"error"`
	RawResponse string `json:"raw_response,omitempty"`
}

// Client calls the summarization service. It holds no session state.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger
}

// NewClient creates a client for the service rooted at baseURL (e.g. http://localhost:5000/api)
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		timeout:    timeout,
		logger:     logger,
	}
}

// WithHTTPClient replaces the underlying HTTP client
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Summarize asks for the summary of text in the given mode
func (c *Client) Summarize(ctx context.Context, text string, mode domain.Mode) (*SummarizeResponse, error) {
	var resp SummarizeResponse
	req := SummarizeRequest{MedicalText: text, ViewType: mode.ViewType()}
	if err := c.do(ctx, OpSummarize, http.MethodPost, "/summarize", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Chat sends a question with the prior conversation
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.ChatHistory == nil {
		req.ChatHistory = []domain.HistoryMessage{}
	}
	var resp ChatResponse
	if err := c.do(ctx, OpChat, http.MethodPost, "/chat", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExplainTerm asks for a plain-language explanation of term
func (c *Client) ExplainTerm(ctx context.Context, term, context string) (*ExplainResponse, error) {
	var resp ExplainResponse
	req := ExplainRequest{Term: term, Context: context}
	if err := c.do(ctx, OpExplainTerm, http.MethodPost, "/explain-term", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health probes the service
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.do(ctx, OpHealth, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &domain.RemoteError{Op: op, Message: "failed to encode request", Err: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &domain.RemoteError{Op: op, Message: "failed to create request", Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		message := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			message = fmt.Sprintf("request timed out after %s", c.timeout)
		}
		c.logger.Warn("Remote call failed", zap.String("op", op), zap.Error(err))
		return &domain.RemoteError{Op: op, Message: message, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.RemoteError{Op: op, StatusCode: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	c.logger.Debug("Remote call completed",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(op, resp.StatusCode, data)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &domain.RemoteError{Op: op, StatusCode: resp.StatusCode, Message: "invalid response body", Err: err}
	}
	return nil
}

func decodeError(op string, status int, data []byte) error {
	var body errorResponse
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		return &domain.RemoteError{Op: op, StatusCode: status, Message: body.Error, RawResponse: body.RawResponse}
	}
	message := strings.TrimSpace(string(data))
	if message == "" {
		message = http.StatusText(status)
	}
	return &domain.RemoteError{Op: op, StatusCode: status, Message: message}
}
