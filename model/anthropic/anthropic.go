// Package anthropic provides a streaming provider for the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hupe1980/archmesh/core"
	"github.com/hupe1980/archmesh/model"
)

// Name is the routing name of this provider.
const Name = "anthropic"

// Options configures the Anthropic provider. Model, MaxTokens and Temperature
// are defaults used when a request leaves them unset.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Provider wraps the Anthropic Messages API behind model.Provider.
type Provider struct {
	client *anthropic.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// NewProvider creates a new Anthropic provider using the official client.
func NewProvider(optFns ...func(o *Options)) *Provider {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Provider{client: &client, opts: opts}
}

// NewProviderFromClient creates a new Anthropic provider from an existing client.
func NewProviderFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Provider {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{client: client, opts: opts}
}

// Name implements model.Provider.
func (p *Provider) Name() string { return Name }

// Generate streams text deltas from the Messages API.
func (p *Provider) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		stream := p.client.Messages.NewStreaming(ctx, p.buildParams(req))
		defer stream.Close()

		var usage model.TokenUsage
		finish := ""
		for stream.Next() {
			event := stream.Current()
			switch ev := event.AsAny().(type) {
			case anthropic.MessageStartEvent:
				usage.PromptTokens = int(ev.Message.Usage.InputTokens)
			case anthropic.ContentBlockDeltaEvent:
				if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
					select {
					case out <- model.Response{Delta: delta.Text, Partial: true}:
					case <-ctx.Done():
						errCh <- ctx.Err()
						return
					}
				}
			case anthropic.MessageDeltaEvent:
				usage.CompletionTokens = int(ev.Usage.OutputTokens)
				finish = string(ev.Delta.StopReason)
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- classify(err)
			return
		}
		if finish == "" {
			finish = "stop"
		}
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
		out <- model.Response{FinishReason: finish, Usage: &usage}
	}()

	return out, errCh
}

func (p *Provider) buildParams(req model.Request) anthropic.MessageNewParams {
	modelID := p.opts.Model
	if req.Model != "" {
		modelID = anthropic.Model(req.Model)
	}
	maxTokens := p.opts.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	temperature := p.opts.Temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}

	params := anthropic.MessageNewParams{
		Model:       modelID,
		Messages:    buildMessages(req.Messages),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	return params
}

// buildMessages converts chat turns to the Anthropic message format.
func buildMessages(msgs []model.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		if m.Content == "" {
			continue
		}
		switch m.Role {
		case core.MessageRoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return out
}

func classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return model.NewError(model.KindFromStatus(apiErr.StatusCode), Name, err)
	}
	return model.Wrap(Name, err)
}
