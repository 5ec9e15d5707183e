package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/redline/internal/models"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.groq.com/openai/v1"
	defaultModel   = "llama-3.1-8b-instant"
	defaultTimeout = 60 * time.Second
	chatPath       = "/chat/completions"
)

// OpenAIOptions configures an OpenAIClient.
type OpenAIOptions struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float64
	JSONMode    bool
	Timeout     time.Duration
	HTTPClient  *http.Client
	Logger      *zap.Logger
}

// OpenAIClient requests proposals from an OpenAI-compatible chat-completions endpoint.
type OpenAIClient struct {
	url         string
	model       string
	apiKey      string
	temperature float64
	jsonMode    bool
	hc          *http.Client
	logger      *zap.Logger
}

// NewOpenAIClient returns a client for opts. An API key is required.
func NewOpenAIClient(opts OpenAIOptions) (*OpenAIClient, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("llm: missing api key")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIClient{
		url:         strings.TrimRight(opts.BaseURL, "/") + chatPath,
		model:       opts.Model,
		apiKey:      opts.APIKey,
		temperature: opts.Temperature,
		jsonMode:    opts.JSONMode,
		hc:          hc,
		logger:      logger,
	}, nil
}

// Model returns the model name sent with each request.
func (c *OpenAIClient) Model() string {
	return c.model
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Propose sends one chat-completions request and parses the reply with ParseProposals.
// The request is not retried.
func (c *OpenAIClient) Propose(ctx context.Context, clauses []models.Clause, instruction string) ([]models.ChangeProposal, error) {
	prompt, err := BuildPrompt(clauses, instruction)
	if err != nil {
		return nil, err
	}
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: c.temperature,
	}
	if c.jsonMode {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		// A client timeout also reports DeadlineExceeded while ctx is still live.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrServiceUnavailable, ctxErr)
		}
		return nil, fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("proposal service responded",
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("model", c.model),
	)

	if resp.StatusCode/100 != 2 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("%w: upstream %d: %s", ErrServiceUnavailable, resp.StatusCode, strings.TrimSpace(string(slurp)))
	}
	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("%w: decoding chat response: %w", ErrMalformedResponse, err)
	}
	if len(cr.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in chat response", ErrMalformedResponse)
	}
	return ParseProposals(cr.Choices[0].Message.Content)
}
