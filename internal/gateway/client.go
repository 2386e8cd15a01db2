// Package gateway is the client for the Cloudflare Workers AI inference
// endpoints. Every call returns a models.InferenceResult, never an error:
// transport failures, non-2xx statuses and malformed envelopes all degrade
// to a text result carrying a diagnostic message, so callers always have
// something displayable.
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovolkov/sparkbot/internal/models"
)

const (
	defaultBaseURL = "https://api.cloudflare.com/client/v4"

	// Caps on the outgoing request size. The token estimate is chars/4, an
	// approximation; callers must not assume exact tokenization.
	maxResponseTokens = 1024
	tokenSafetyMargin = 100

	// Static image generation policy, not user-configurable.
	imageInferenceSteps = 20
	imageGuidanceScale  = 7.5
)

type Config struct {
	AccountID string
	APIToken  string
	BaseURL   string
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	accountID  string
	apiToken   string
	seed       func() int
	logger     *zap.Logger
}

func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		accountID:  cfg.AccountID,
		apiToken:   cfg.APIToken,
		seed:       func() int { return rand.Intn(1 << 30) },
		logger:     logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// envelope is the response shape shared by all Workers AI endpoints. Which
// result field is set depends on the model.
type envelope struct {
	Result struct {
		Response string `json:"response"`
		Text     string `json:"text"`
		Image    string `json:"image"`
		Summary  string `json:"summary"`
	} `json:"result"`
	Error string `json:"error"`
}

// Complete runs a chat-style completion against the profile selected for
// task. History, if any, is sent ahead of the new user turn. Tasks whose
// profile takes binary input cannot be served here and yield a text result
// explaining so.
func (c *Client) Complete(ctx context.Context, task models.TaskKind, prompt string, history []models.Turn) models.InferenceResult {
	profile := ProfileForTask(task)

	switch profile.Payload {
	case payloadInputText:
		return c.summarizeWith(ctx, profile, prompt)
	case payloadAudio:
		return models.TextResult("This model needs raw audio input; use voice messages instead.")
	case payloadImage:
		return models.TextResult("This model needs raw image input; send a photo instead.")
	}

	messages := make([]chatMessage, 0, len(history)+1)
	for _, turn := range history {
		messages = append(messages, chatMessage{Role: string(turn.Role), Content: turn.Content})
	}
	messages = append(messages, chatMessage{Role: string(models.RoleUser), Content: prompt})

	maxTokens := profile.ContextBudget - estimateTokens(messages) - tokenSafetyMargin
	if maxTokens > maxResponseTokens {
		maxTokens = maxResponseTokens
	}

	payload := map[string]any{
		"messages":   messages,
		"max_tokens": maxTokens,
	}

	env, err := c.post(ctx, profile, payload)
	if err != nil {
		return c.failure("completion", profile, err)
	}
	if env.Result.Response == "" {
		return models.TextResult("No response.")
	}
	return models.TextResult(env.Result.Response)
}

// Summarize runs the dedicated summarization model, which takes plain input
// text rather than a message list.
func (c *Client) Summarize(ctx context.Context, text string) models.InferenceResult {
	return c.summarizeWith(ctx, ProfileForTask(models.TaskSummary), text)
}

func (c *Client) summarizeWith(ctx context.Context, profile Profile, text string) models.InferenceResult {
	maxLength := profile.ContextBudget - len(text)/4 - tokenSafetyMargin
	if maxLength > maxResponseTokens {
		maxLength = maxResponseTokens
	}

	payload := map[string]any{
		"input_text": text,
		"parameters": map[string]any{"max_length": maxLength},
	}

	env, err := c.post(ctx, profile, payload)
	if err != nil {
		return c.failure("summarization", profile, err)
	}
	if env.Result.Summary != "" {
		return models.TextResult(env.Result.Summary)
	}
	if env.Result.Response == "" {
		return models.TextResult("No response.")
	}
	return models.TextResult(env.Result.Response)
}

// GenerateImage renders prompt with a randomized seed and fixed quality
// parameters. A response without an image field is a failure, not a crash.
func (c *Client) GenerateImage(ctx context.Context, prompt string) models.InferenceResult {
	profile := ProfileForTask(models.TaskImageGeneration)

	payload := map[string]any{
		"prompt":              prompt,
		"seed":                c.seed(),
		"num_inference_steps": imageInferenceSteps,
		"guidance_scale":      imageGuidanceScale,
	}

	env, err := c.post(ctx, profile, payload)
	if err != nil {
		return models.FailureResult(fmt.Sprintf("Image generation error: %v", err))
	}
	if env.Result.Image == "" {
		return models.FailureResult("No image returned from API.")
	}
	caption := fmt.Sprintf("Here's your image for: '%s'", prompt)
	return models.ImageResult(env.Result.Image, caption)
}

// Transcribe sends pre-converted audio to the speech-to-text model. The
// caller must supply mono 16kHz 16-bit PCM WAV; conversion is not this
// client's job.
func (c *Client) Transcribe(ctx context.Context, wav []byte) models.InferenceResult {
	profile := ProfileForTask(models.TaskSpeechToText)

	payload := map[string]any{
		"audio":    base64.StdEncoding.EncodeToString(wav),
		"encoding": "wav",
	}

	env, err := c.post(ctx, profile, payload)
	if err != nil {
		return models.FailureResult(fmt.Sprintf("Error processing audio: %v", err))
	}
	if env.Result.Text == "" {
		return models.FailureResult("Unable to transcribe audio.")
	}
	return models.TextResult(env.Result.Text)
}

// Caption describes an image with the captioning model.
func (c *Client) Caption(ctx context.Context, image []byte) models.InferenceResult {
	profile := ProfileForTask(models.TaskImageToText)

	payload := map[string]any{
		"image": base64.StdEncoding.EncodeToString(image),
	}

	env, err := c.post(ctx, profile, payload)
	if err != nil {
		return models.FailureResult(fmt.Sprintf("Error processing image: %v", err))
	}
	if env.Result.Response == "" {
		return models.FailureResult("Unable to caption image.")
	}
	return models.TextResult(env.Result.Response)
}

func (c *Client) post(ctx context.Context, profile Profile, payload any) (*envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/accounts/%s/ai/run/%s", c.baseURL, c.accountID, profile.ModelPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", profile.Name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", profile.Name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s returned status %d", profile.Name, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", profile.Name, err)
	}
	if env.Error != "" {
		return nil, fmt.Errorf("%s error: %s", profile.Name, env.Error)
	}
	return &env, nil
}

func (c *Client) failure(op string, profile Profile, err error) models.InferenceResult {
	c.logger.Error("inference call failed",
		zap.String("operation", op),
		zap.String("model", profile.Name),
		zap.Error(err))
	return models.FailureResult(fmt.Sprintf("Error: %v", err))
}

func estimateTokens(messages []chatMessage) int {
	chars := 0
	for _, m := range messages {
		chars += len(m.Role) + len(m.Content)
	}
	return chars / 4
}
