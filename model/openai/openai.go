// Package openai provides an implementation of model.Provider using the OpenAI
// Chat Completions streaming API. It adapts ArchMesh's normalized Request
// into the SDK's message format and forwards content deltas.
package openai

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/archmesh/core"
	"github.com/hupe1980/archmesh/model"
)

// Name is the routing name of this provider.
const Name = "openai"

// Options configure the OpenAI provider.
// Fields mirror a subset of Chat Completion parameters and act as defaults
// for requests that leave them unset.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string
}

// Provider wraps the OpenAI Chat Completions API behind model.Provider.
type Provider struct {
	client *openai.Client
	opts   Options
}

// NewProvider creates a new OpenAI provider using the official client.
func NewProvider(optFns ...func(o *Options)) *Provider {
	var probe Options
	for _, fn := range optFns {
		fn(&probe)
	}
	var clientOpts []option.RequestOption
	if probe.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(probe.APIKey))
	}
	client := openai.NewClient(clientOpts...)
	return NewProviderFromClient(&client, optFns...)
}

// NewProviderFromClient creates a new OpenAI provider from an existing client.
func NewProviderFromClient(client *openai.Client, optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{client: client, opts: opts}
}

// Name implements model.Provider.
func (p *Provider) Name() string { return Name }

// Generate streams content deltas and a final chunk carrying the finish reason.
func (p *Provider) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)
		p.handleStreaming(ctx, p.buildParams(req), out, errCh)
	}()

	return out, errCh
}

func buildMessages(system string, msgs []model.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs)+1)
	if system != "" {
		out = append(out, openai.SystemMessage(system))
	}
	for _, m := range msgs {
		if m.Content == "" {
			continue
		}
		switch m.Role {
		case core.MessageRoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		case core.MessageRoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func (p *Provider) buildParams(req model.Request) openai.ChatCompletionNewParams {
	modelID := p.opts.Model
	if req.Model != "" {
		modelID = req.Model
	}
	maxTokens := p.opts.MaxCompletionTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	temperature := p.opts.Temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}
	return openai.ChatCompletionNewParams{
		Messages:            buildMessages(req.System, req.Messages),
		Model:               modelID,
		Temperature:         openai.Float(temperature),
		MaxCompletionTokens: openai.Int(maxTokens),
	}
}

// handleStreaming processes streaming responses and forwards partial / final events.
func (p *Provider) handleStreaming(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	finish := ""
	var usage *model.TokenUsage
	for stream.Next() {
		ck := stream.Current()
		if ck.Usage.TotalTokens > 0 {
			usage = &model.TokenUsage{
				PromptTokens:     int(ck.Usage.PromptTokens),
				CompletionTokens: int(ck.Usage.CompletionTokens),
				TotalTokens:      int(ck.Usage.TotalTokens),
			}
		}
		for _, ch := range ck.Choices {
			if ch.Delta.Content != "" {
				select {
				case out <- model.Response{Delta: ch.Delta.Content, Partial: true}:
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				}
			}
			if ch.FinishReason != "" {
				finish = ch.FinishReason
			}
		}
	}
	if err := stream.Err(); err != nil {
		errCh <- classify(err)
		return
	}
	if finish == "" {
		errCh <- model.NewError(model.KindMalformedResponse, Name, errors.New("stream ended without finish reason"))
		return
	}
	out <- model.Response{FinishReason: finish, Usage: usage}
}

func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return model.NewError(model.KindFromStatus(apiErr.StatusCode), Name, err)
	}
	return model.Wrap(Name, err)
}
