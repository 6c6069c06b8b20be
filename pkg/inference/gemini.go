package inference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"
)

type GeminiGenerator struct {
	client    *genai.Client
	apiKey    string
	model     string
	maxTokens int32
	timeout   time.Duration
}

// NewGeminiGenerator creates a generator backed by the Gemini API.
// An empty baseURL keeps the SDK default endpoint.
func NewGeminiGenerator(ctx context.Context, apiKey, model, baseURL string) (*GeminiGenerator, error) {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiGenerator{
		client:    client,
		apiKey:    apiKey,
		model:     model,
		maxTokens: 1024,
		timeout:   60 * time.Second,
	}, nil
}

func (g *GeminiGenerator) SetMaxTokens(n int32) {
	if n > 0 {
		g.maxTokens = n
	}
}

func (g *GeminiGenerator) SetTimeout(d time.Duration) {
	g.timeout = d
}

// Generate sends the prompt pair to Gemini's generate-content endpoint.
func (g *GeminiGenerator) Generate(ctx context.Context, system, user string, temperature float64) Outcome {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr(float32(ClampTemperature(temperature))),
		MaxOutputTokens:   g.maxTokens,
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(user), config)
	if err != nil {
		var apiErr genai.APIError
		upstream := errors.As(err, &apiErr)
		return Failure(Classify(err, upstream), fmt.Errorf("failed to generate content: %w", err))
	}
	if result.PromptFeedback != nil && result.PromptFeedback.BlockReason != "" {
		return Failure(ReasonBlocked, fmt.Errorf("%w: %s", ErrBlocked, result.PromptFeedback.BlockReason))
	}
	return Success(result.Text())
}
