// internal/llmclient/gemini_client.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/tanmaysk001/Browser-Agent/api/schemas"
	"github.com/tanmaysk001/Browser-Agent/internal/config"
	"github.com/tanmaysk001/Browser-Agent/internal/llmutil"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// generator is the part of the genai SDK the client calls.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClient implements schemas.CompletionClient on the Gemini API.
type GeminiClient struct {
	models  generator
	logger  *zap.Logger
	config  config.LLMModelConfig
	limiter *rate.Limiter

	// backoffFactory builds the retry policy for one call.
	backoffFactory func() backoff.BackOff
}

var _ schemas.CompletionClient = (*GeminiClient)(nil)

// NewGeminiClient initializes the client.
func NewGeminiClient(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API Key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("Gemini model name is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.APITimeout},
	}
	if cfg.Endpoint != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return newGeminiClient(client.Models, cfg, logger), nil
}

func newGeminiClient(models generator, cfg config.LLMModelConfig, logger *zap.Logger) *GeminiClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &GeminiClient{
		models: models,
		logger: logger.Named("llm_client.gemini"),
		config: cfg,
	}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	c.backoffFactory = func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = time.Second
		b.MaxInterval = 30 * time.Second
		b.MaxElapsedTime = 2 * time.Minute
		if cfg.MaxRetries > 0 {
			return backoff.WithMaxRetries(b, uint64(cfg.MaxRetries))
		}
		return b
	}
	return c
}

// Complete sends the conversation to the model, retrying transient failures.
// When the request carries an OutputShape the reply is decoded into Structured.
func (c *GeminiClient) Complete(ctx context.Context, req schemas.CompletionRequest) (*schemas.CompletionResponse, error) {
	contents, system := buildContents(req.Messages)
	if len(contents) == 0 {
		return nil, fmt.Errorf("completion request has no conversation turns")
	}
	genCfg, err := c.buildConfig(req, system)
	if err != nil {
		return nil, err
	}

	var resp *genai.GenerateContentResponse
	operation := func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		startTime := time.Now()
		r, err := c.models.GenerateContent(ctx, c.config.Model, contents, genCfg)
		if err != nil {
			if isTransient(err) {
				c.logger.Warn("Transient error during LLM request, retrying...", zap.Error(err))
				return err
			}
			return backoff.Permanent(err)
		}
		if err := checkBlocked(r); err != nil {
			return backoff.Permanent(err)
		}
		c.logger.Debug("LLM generation complete (Gemini)",
			zap.Duration("duration", time.Since(startTime)),
			zap.Int("messages", len(req.Messages)))
		resp = r
		return nil
	}
	if err := backoff.Retry(operation, backoff.WithContext(c.backoffFactory(), ctx)); err != nil {
		return nil, fmt.Errorf("gemini completion failed: %w", err)
	}

	out := &schemas.CompletionResponse{Text: resp.Text(), Usage: usageOf(resp)}
	c.logger.Info("LLM usage",
		zap.Int("prompt_tokens", out.Usage.InputTokens),
		zap.Int("completion_tokens", out.Usage.OutputTokens),
		zap.Int("total_tokens", out.Usage.TotalTokens))

	if req.Shape != nil {
		structured, err := llmutil.ParseJSONResponse[map[string]any](out.Text)
		if err != nil {
			return nil, schemas.WrapError(schemas.CodeProtocolDecode, err, "decoding structured output %q", req.Shape.Name)
		}
		out.Structured = *structured
	}
	return out, nil
}

// Close is a no-op; the SDK holds no resources beyond its HTTP client.
func (c *GeminiClient) Close() error { return nil }

// buildContents converts the conversation. System messages become the
// system instruction; screenshots ride along as inline JPEG parts.
func buildContents(messages []schemas.Message) ([]*genai.Content, string) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case schemas.RoleSystem:
			system = append(system, m.Text)
		case schemas.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Text, genai.RoleModel))
		default:
			if !m.IsImage() {
				contents = append(contents, genai.NewContentFromText(m.Text, genai.RoleUser))
				continue
			}
			mime := m.ImageMIME
			if mime == "" {
				mime = "image/jpeg"
			}
			contents = append(contents, genai.NewContentFromParts([]*genai.Part{
				genai.NewPartFromText(m.Text),
				genai.NewPartFromBytes(m.Image, mime),
			}, genai.RoleUser))
		}
	}
	return contents, strings.Join(system, "\n\n")
}

func (c *GeminiClient) buildConfig(req schemas.CompletionRequest, system string) (*genai.GenerateContentConfig, error) {
	temperature := c.config.Temperature
	if req.Options.Temperature != nil {
		temperature = *req.Options.Temperature
	}
	maxTokens := c.config.MaxTokens
	if req.Options.MaxTokens > 0 {
		maxTokens = req.Options.MaxTokens
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(temperature),
		MaxOutputTokens: int32(maxTokens),
		SafetySettings:  c.safetySettings(),
	}
	if c.config.TopP > 0 {
		cfg.TopP = genai.Ptr(c.config.TopP)
	}
	if c.config.TopK > 0 {
		cfg.TopK = genai.Ptr(float32(c.config.TopK))
	}

	if req.Shape != nil {
		schemaJSON, err := json.MarshalIndent(req.Shape.Schema, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding output schema: %w", err)
		}
		cfg.ResponseMIMEType = "application/json"
		system = strings.TrimSpace(system + "\n\n" + fmt.Sprintf(
			"Reply with a single JSON object named %q that satisfies this JSON schema:\n%s", req.Shape.Name, schemaJSON))
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	return cfg, nil
}

func (c *GeminiClient) safetySettings() []*genai.SafetySetting {
	settings := make([]*genai.SafetySetting, 0, len(c.config.SafetyFilters))
	for category, threshold := range c.config.SafetyFilters {
		settings = append(settings, &genai.SafetySetting{
			Category:  genai.HarmCategory(category),
			Threshold: genai.HarmBlockThreshold(threshold),
		})
	}
	return settings
}

// isTransient reports whether err is worth retrying: rate limiting, server
// errors and network failures.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return transientStatus(apiErr.Code)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return transientStatus(apiErrPtr.Code)
	}
	return true
}

func transientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// checkBlocked turns a reply that carries no text because of a safety block
// into an error.
func checkBlocked(resp *genai.GenerateContentResponse) error {
	if resp == nil {
		return fmt.Errorf("gemini API returned no response")
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return fmt.Errorf("gemini API blocked the request (Reason: %s)", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return fmt.Errorf("gemini API returned no candidates")
	}
	switch reason := resp.Candidates[0].FinishReason; reason {
	case genai.FinishReasonSafety, genai.FinishReasonBlocklist, genai.FinishReasonProhibitedContent:
		return fmt.Errorf("gemini API blocked the response (Reason: %s)", reason)
	}
	return nil
}

func usageOf(resp *genai.GenerateContentResponse) schemas.TokenUsage {
	if resp == nil || resp.UsageMetadata == nil {
		return schemas.TokenUsage{}
	}
	u := resp.UsageMetadata
	return schemas.TokenUsage{
		InputTokens:  int(u.PromptTokenCount),
		OutputTokens: int(u.CandidatesTokenCount),
		TotalTokens:  int(u.TotalTokenCount),
	}
}
