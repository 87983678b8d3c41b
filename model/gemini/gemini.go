// Package gemini provides a streaming provider backed by the Google GenAI SDK.
package gemini

import (
	"context"
	"errors"

	"google.golang.org/genai"

	"github.com/hupe1980/archmesh/core"
	"github.com/hupe1980/archmesh/model"
)

// Name is the routing name of this provider.
const Name = "gemini"

// Options configure the Gemini provider.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Provider wraps genai.Client.Models.GenerateContentStream.
type Provider struct {
	client *genai.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{Model: "gemini-2.0-flash", Temperature: 0.7, MaxTokens: 4096}
}

// NewProvider creates a client for the Gemini API backend.
func NewProvider(ctx context.Context, optFns ...func(o *Options)) (*Provider, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, model.NewError(model.KindAuthFailure, Name, err)
	}
	return &Provider{client: client, opts: opts}, nil
}

// NewProviderFromClient wraps an existing client.
func NewProviderFromClient(client *genai.Client, optFns ...func(o *Options)) *Provider {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{client: client, opts: opts}
}

// Name implements model.Provider.
func (p *Provider) Name() string { return Name }

// Generate streams candidate text from GenerateContentStream.
func (p *Provider) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		modelID, contents, cfg := p.buildRequest(req)
		var usage *model.TokenUsage
		for resp, err := range p.client.Models.GenerateContentStream(ctx, modelID, contents, cfg) {
			if err != nil {
				errCh <- classify(err)
				return
			}
			if resp == nil {
				continue
			}
			if u := resp.UsageMetadata; u != nil {
				usage = &model.TokenUsage{
					PromptTokens:     int(u.PromptTokenCount),
					CompletionTokens: int(u.CandidatesTokenCount),
					TotalTokens:      int(u.TotalTokenCount),
				}
			}
			if text := resp.Text(); text != "" {
				select {
				case out <- model.Response{Delta: text, Partial: true}:
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				}
			}
		}
		out <- model.Response{FinishReason: "stop", Usage: usage}
	}()

	return out, errCh
}

func (p *Provider) buildRequest(req model.Request) (string, []*genai.Content, *genai.GenerateContentConfig) {
	modelID := p.opts.Model
	if req.Model != "" {
		modelID = req.Model
	}
	maxTokens := p.opts.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	temperature := p.opts.Temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Content == "" {
			continue
		}
		role := genai.Role(genai.RoleUser)
		if m.Role == core.MessageRoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(temperature)),
		MaxOutputTokens: int32(maxTokens),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	return modelID, contents, cfg
}

func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return model.NewError(model.KindFromStatus(apiErr.Code), Name, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return model.NewError(model.KindFromStatus(apiErrPtr.Code), Name, err)
	}
	return model.Wrap(Name, err)
}
