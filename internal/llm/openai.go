package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	defaultChatTimeout     = 90 * time.Second
	defaultChatTemperature = 0.6
	defaultTopP            = 0.95
	defaultMaxTokens       = 8192
	DefaultImagePrompt     = "ছবিতে দেওয়া প্রশ্নটির উত্তর দিন।"
)

// OpenAIConfig configures the chat completions client.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string // optional, for compatible gateways
	Model       openai.ChatModel
	Temperature float64
	MaxTokens   int64
}

// OpenAIClient calls the OpenAI Chat Completions API.
type OpenAIClient struct {
	model       openai.ChatModel
	temperature float64
	maxTokens   int64
	client      *openai.Client
}

// NewOpenAIClient builds a client. Retries are left to the caller.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key required")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultChatTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	cli := openai.NewClient(opts...)
	return &OpenAIClient{
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      &cli,
	}, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, history []Message, prompt Prompt) (Completion, error) {
	if c == nil || c.client == nil {
		return Completion{}, fmt.Errorf("nil openai client")
	}
	reqCtx, cancel := context.WithTimeout(ctx, defaultChatTimeout)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(reqCtx, openai.ChatCompletionNewParams{
		Model:               c.model,
		Messages:            buildMessages(SystemPrompt, history, prompt),
		Temperature:         openai.Float(c.temperature),
		TopP:                openai.Float(defaultTopP),
		MaxCompletionTokens: openai.Int(c.maxTokens),
	})
	if err != nil {
		return Completion{}, err
	}
	if len(resp.Choices) == 0 {
		return Completion{}, fmt.Errorf("openai: no choices returned")
	}
	choice := resp.Choices[0]
	return Completion{
		Text:         choice.Message.Content,
		FinishReason: string(choice.FinishReason),
	}, nil
}

func buildMessages(system string, history []Message, prompt Prompt) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	msgs = append(msgs, openai.SystemMessage(system))
	for _, m := range history {
		if m.Role == RoleAssistant {
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		} else {
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	if prompt.Image == nil {
		return append(msgs, openai.UserMessage(prompt.Text))
	}
	text := prompt.Text
	if text == "" {
		text = DefaultImagePrompt
	}
	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(text),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: dataURL(prompt.Image),
		}),
	}
	return append(msgs, openai.UserMessage(parts))
}

func dataURL(img *Image) string {
	mime := img.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
