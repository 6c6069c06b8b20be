package inference

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
)

// Preset describes an OpenAI-compatible provider.
type Preset struct {
	BaseURL string
	Model   string
}

// Presets lists the OpenAI-compatible endpoints the OpenAI client can talk to.
var Presets = map[string]Preset{
	"openai":   {Model: "gpt-4o-mini"},
	"grok":     {BaseURL: "https://api.x.ai/v1", Model: "grok-4-fast-reasoning"},
	"kimi":     {BaseURL: "https://api.kimi.com/coding/v1", Model: "kimi-for-coding"},
	"moonshot": {BaseURL: "https://api.moonshot.ai/v1", Model: "kimi-k2-5"},
	"local":    {BaseURL: "http://localhost:1234/v1"},
}

// OpenAIGenerator implements Generator using OpenAI's official Go SDK.
type OpenAIGenerator struct {
	client    *openai.Client
	apiKey    string
	model     string
	maxTokens int64
	timeout   time.Duration
}

// NewOpenAIGenerator creates a generator against the OpenAI API or, when baseURL is set,
// any OpenAI-compatible endpoint.
func NewOpenAIGenerator(apiKey, model, baseURL string) *OpenAIGenerator {
	o := &OpenAIGenerator{
		apiKey:    apiKey,
		model:     model,
		maxTokens: 1024,
		timeout:   60 * time.Second,
	}
	o.ChangeBaseURL(baseURL)
	return o
}

// NewPresetGenerator creates a generator for a named entry of Presets. An empty model keeps the preset's.
func NewPresetGenerator(name, apiKey, model string) (*OpenAIGenerator, error) {
	p, ok := Presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", name)
	}
	return NewOpenAIGenerator(apiKey, cmp.Or(model, p.Model), p.BaseURL), nil
}

// ChangeBaseURL rebuilds the client against baseURL; an empty baseURL uses the SDK default.
func (o *OpenAIGenerator) ChangeBaseURL(baseURL string) {
	opts := []option.RequestOption{
		option.WithAPIKey(o.apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	o.client = &client
}

func (o *OpenAIGenerator) SetModel(model string) {
	o.model = model
}

func (o *OpenAIGenerator) SetMaxTokens(n int64) {
	if n > 0 {
		o.maxTokens = n
	}
}

// SetTimeout bounds every call; d <= 0 leaves only the caller's context as a bound.
func (o *OpenAIGenerator) SetTimeout(d time.Duration) {
	o.timeout = d
}

// Generate sends the prompt pair to the chat completion endpoint.
func (o *OpenAIGenerator) Generate(ctx context.Context, system, user string, temperature float64) Outcome {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	params := openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Role: "system",
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: param.Opt[string]{Value: system},
					},
				}},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Role: "user",
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: param.Opt[string]{Value: user},
					},
				},
			},
		},
		MaxCompletionTokens: openai.Int(o.maxTokens),
		Temperature:         openai.Float(ClampTemperature(temperature)),
		TopP:                openai.Float(1.0),
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		upstream := errors.As(err, &apiErr)
		return Failure(Classify(err, upstream), fmt.Errorf("openai inference error: %w", err))
	}
	if len(resp.Choices) == 0 {
		return Failure(ReasonEmpty, errors.New("no choices returned"))
	}
	choice := resp.Choices[0]
	if choice.FinishReason == "content_filter" {
		return Failure(ReasonBlocked, ErrBlocked)
	}
	return Success(choice.Message.Content)
}
