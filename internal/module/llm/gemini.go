package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	ProviderGemini = "gemini"
	ProviderMock   = "mock"

	DefaultGeminiModel  = "gemini-2.0-flash"
	DefaultGeminiAPIURL = "https://generativelanguage.googleapis.com/v1beta/models"

	geminiTopP = 0.8
	geminiTopK = 40
)

// GeminiConfig configures the Gemini client.
type GeminiConfig struct {
	APIKey         string
	Model          string
	APIURL         string
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// GeminiClient calls the Gemini generateContent endpoint.
type GeminiClient struct {
	config   GeminiConfig
	client   *http.Client
	logger   *zap.Logger
	recorder Recorder
}

var _ Provider = (*GeminiClient)(nil)

// NewGeminiClient creates a Gemini client. A nil http client uses http.DefaultClient.
func NewGeminiClient(cfg GeminiConfig, client *http.Client, logger *zap.Logger, recorder Recorder) *GeminiClient {
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultGeminiAPIURL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 120 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &GeminiClient{config: cfg, client: client, logger: logger, recorder: recorder}
}

// Name returns the provider name.
func (c *GeminiClient) Name() string {
	return ProviderGemini
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Complete sends the prompt to Gemini, retrying transient failures with exponential backoff.
// The whole call, retries included, is bounded by the configured request timeout.
func (c *GeminiClient) Complete(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: req.Prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     req.Temperature,
			TopP:            geminiTopP,
			TopK:            geminiTopK,
			MaxOutputTokens: req.MaxTokens,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal gemini request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	start := time.Now()
	resp, err := c.executeWithRetry(ctx, req.Task, body)
	elapsed := time.Since(start)
	if err != nil {
		c.recorder.RecordProviderRequest(ProviderGemini, c.config.Model, "error", "", elapsed)
		return nil, err
	}

	completion, err := c.toCompletion(resp)
	if err != nil {
		c.recorder.RecordProviderRequest(ProviderGemini, c.config.Model, "error", "", elapsed)
		return nil, err
	}
	completion.Duration = elapsed
	c.recorder.RecordProviderRequest(ProviderGemini, c.config.Model, "success", completion.FinishReason, elapsed)

	if completion.FinishReason == FinishLength {
		c.logger.Warn("gemini completion truncated at token limit",
			zap.String("task", string(req.Task)),
			zap.Int("max_tokens", req.MaxTokens),
		)
	}
	return completion, nil
}

func (c *GeminiClient) endpoint() string {
	return fmt.Sprintf("%s/%s:generateContent?key=%s",
		strings.TrimRight(c.config.APIURL, "/"), c.config.Model, url.QueryEscape(c.config.APIKey))
}

func (c *GeminiClient) executeWithRetry(ctx context.Context, task Task, body []byte) (*geminiResponse, error) {
	attempts := c.config.MaxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := c.execute(ctx, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt >= attempts {
			break
		}

		delay := c.config.RetryBaseDelay * time.Duration(1<<(attempt-1))
		c.logger.Info("retrying gemini request",
			zap.String("task", string(task)),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, contextError(ctx.Err())
		}
	}

	return nil, lastErr
}

func (c *GeminiClient) execute(ctx context.Context, body []byte) (*geminiResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, contextError(ctxErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, contextError(ctxErr)
		}
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, mapStatus(resp.StatusCode, respBody)
	}

	var out geminiResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return &out, nil
}

func (c *GeminiClient) toCompletion(resp *geminiResponse) (*Completion, error) {
	if len(resp.Candidates) == 0 {
		return nil, ErrEmptyCompletion
	}
	candidate := resp.Candidates[0]

	var sb strings.Builder
	for _, p := range candidate.Content.Parts {
		sb.WriteString(p.Text)
	}
	if sb.Len() == 0 {
		return nil, ErrEmptyCompletion
	}

	model := resp.ModelVersion
	if model == "" {
		model = c.config.Model
	}

	return &Completion{
		Text:         sb.String(),
		FinishReason: mapFinishReason(candidate.FinishReason),
		Model:        model,
		Usage: Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		},
	}, nil
}

func mapFinishReason(reason string) string {
	switch strings.ToUpper(reason) {
	case "STOP", "":
		return FinishStop
	case "MAX_TOKENS":
		return FinishLength
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT", "SPII":
		return FinishContentFilter
	default:
		return FinishOther
	}
}

func mapStatus(status int, body []byte) error {
	var errResp geminiErrorResponse
	_ = json.Unmarshal(body, &errResp)

	var sentinel error
	switch {
	case status == http.StatusTooManyRequests:
		sentinel = ErrRateLimited
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		sentinel = ErrUnauthorized
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		sentinel = ErrTimeout
	default:
		sentinel = ErrUnavailable
	}
	return &StatusError{StatusCode: status, Message: errResp.Error.Message, Err: sentinel}
}

func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
