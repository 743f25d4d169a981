package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"google.golang.org/genai"

	"tailorcv/internal/config"
	"tailorcv/internal/errcode"
	"tailorcv/internal/metrics"
)

// Role constants mirror the provider's chat roles.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Message is a single chat turn passed to Chat.
type Message struct {
	Role string
	Text string
}

// Client wraps the generative-text API. All operations funnel through a
// shared retry loop; provider errors are mapped to the errcode taxonomy and
// never surfaced verbatim. Quota accounting happens at the endpoint layer,
// before any model call reaches this client.
type Client struct {
	genaiClient    *genai.Client
	model          string
	maxRetries     int
	baseDelay      time.Duration
	requestTimeout time.Duration
	logger         *slog.Logger
}

// NewClient builds the provider client. The API key is validated at config
// load, so a failure here means the provider endpoint itself is unreachable.
func NewClient(ctx context.Context, cfg config.GeminiConfig, logger *slog.Logger) (*Client, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("init genai client: %w", err)
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	return &Client{
		genaiClient:    genaiClient,
		model:          cfg.Model,
		maxRetries:     cfg.MaxRetries,
		baseDelay:      time.Second,
		requestTimeout: timeout,
		logger:         logger,
	}, nil
}

// Chat sends a generic multi-turn request. jsonMode constrains the response
// MIME type to application/json.
func (c *Client) Chat(ctx context.Context, userID uint, messages []Message, temperature float32, jsonMode bool) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("messages must not be empty")
	}

	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		var role genai.Role = genai.RoleUser
		if m.Role == RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Text, role))
	}

	genConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temperature),
	}
	if jsonMode {
		genConfig.ResponseMIMEType = "application/json"
	}

	return c.generate(ctx, userID, "chat", contents, genConfig)
}

// AnalyzeImage transcribes an image-based CV via the vision model. The
// instruction demands a literal transcription of everything on the page.
func (c *Client) AnalyzeImage(ctx context.Context, userID uint, imageData []byte, mimeType, jobDescription, additionalInfo string) (string, error) {
	if len(imageData) == 0 {
		return "", errcode.ErrEmptyExtraction
	}

	parts := []*genai.Part{
		genai.NewPartFromText(visionTranscribePrompt(jobDescription, additionalInfo)),
		genai.NewPartFromBytes(imageData, mimeType),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	genConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0.1)),
	}

	text, err := c.generate(ctx, userID, "analyze_image", contents, genConfig)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", errcode.ErrEmptyExtraction
	}
	return text, nil
}

// GenerateTailoredResume runs the tailoring call and returns the raw model
// text. The output must contain a recoverable JSON object; callers do the
// fenced-block recovery, this op only rejects output with no JSON at all.
func (c *Client) GenerateTailoredResume(ctx context.Context, userID uint, cvText, jobDescription, additionalInfo string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(tailorUserPrompt(cvText, jobDescription, additionalInfo), genai.RoleUser),
	}
	genConfig := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(float32(0.3)),
		ResponseMIMEType:  "application/json",
		SystemInstruction: genai.NewContentFromText(tailorSystemPrompt, genai.RoleUser),
	}

	text, err := c.generate(ctx, userID, "generate_resume", contents, genConfig)
	if err != nil {
		return "", err
	}
	if !gjson.Valid(text) && !strings.Contains(text, "{") {
		return "", errcode.ErrInvalidModelOutput
	}
	return text, nil
}

// GenerateCoverLetter produces a cover letter for the given resume data.
func (c *Client) GenerateCoverLetter(ctx context.Context, userID uint, resumeData, jobDescription, additionalInfo string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(coverLetterPrompt(resumeData, jobDescription, additionalInfo), genai.RoleUser),
	}
	genConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0.7)),
	}
	return c.generate(ctx, userID, "cover_letter", contents, genConfig)
}

// GenerateHRMessage produces a short outreach message to a recruiter.
func (c *Client) GenerateHRMessage(ctx context.Context, userID uint, resumeData, jobDescription, recruiterName, additionalInfo string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(hrMessagePrompt(resumeData, jobDescription, recruiterName, additionalInfo), genai.RoleUser),
	}
	genConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0.7)),
	}
	return c.generate(ctx, userID, "hr_message", contents, genConfig)
}

func (c *Client) generate(ctx context.Context, userID uint, operation string, contents []*genai.Content, genConfig *genai.GenerateContentConfig) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	start := time.Now()
	text, err := withRetry(timeoutCtx, c.maxRetries, c.baseDelay, c.logger, func(callCtx context.Context) (string, error) {
		result, callErr := c.genaiClient.Models.GenerateContent(callCtx, c.model, contents, genConfig)
		if callErr != nil {
			return "", callErr
		}
		if err := validateResponse(result); err != nil {
			return "", err
		}
		return result.Text(), nil
	})
	metrics.ObserveLLMCall(operation, err == nil, time.Since(start))
	if err != nil {
		c.logger.Error("model call failed",
			slog.String("operation", operation),
			slog.Uint64("user_id", uint64(userID)),
			slog.Any("error", err),
		)
		return "", mapProviderError(err)
	}

	return text, nil
}

func validateResponse(resp *genai.GenerateContentResponse) error {
	if resp == nil {
		return errors.New("response is nil")
	}
	if len(resp.Candidates) == 0 {
		return errors.New("no candidates in response")
	}
	if resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return errors.New("no parts in candidate content")
	}
	return nil
}
