package testutil

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/hupe1980/archmesh/model"
)

// Step scripts one Generate call of a ScriptedProvider.
type Step struct {
	// Text is streamed word by word before Err (if any) is reported.
	Text string
	// Err fails the call after Text was streamed.
	Err error
	// Hang blocks after Text until the context is cancelled.
	Hang bool
	// NoFinal closes the stream without a final chunk.
	NoFinal bool
}

// ScriptedProvider replays Steps, one per call. Once the script is exhausted
// the tail step (see Then) is used.
type ScriptedProvider struct {
	name string

	mu       sync.Mutex
	steps    []Step
	tail     Step
	respond  Responder
	requests []model.Request
}

// Responder picks the Step for a request.
type Responder func(req model.Request) Step

// NewScriptedProvider returns a provider that answers "ok" after the script ends.
func NewScriptedProvider(name string, steps ...Step) *ScriptedProvider {
	return &ScriptedProvider{name: name, steps: steps, tail: Step{Text: "ok"}}
}

// NewResponderProvider answers every call with respond(req). It suits
// concurrent callers whose call order is not deterministic.
func NewResponderProvider(name string, respond Responder) *ScriptedProvider {
	return &ScriptedProvider{name: name, respond: respond}
}

// Then sets the step used once the script is exhausted.
func (p *ScriptedProvider) Then(s Step) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tail = s
	return p
}

// Name implements model.Provider.
func (p *ScriptedProvider) Name() string { return p.name }

// CallCount returns the number of Generate calls.
func (p *ScriptedProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// Requests returns a copy of every request received.
func (p *ScriptedProvider) Requests() []model.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.Request(nil), p.requests...)
}

// Generate implements model.Provider.
func (p *ScriptedProvider) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	step := p.tail
	switch {
	case p.respond != nil:
		step = p.respond(req)
	case len(p.steps) > 0:
		step, p.steps = p.steps[0], p.steps[1:]
	}
	p.mu.Unlock()

	out := make(chan model.Response)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		for _, w := range strings.SplitAfter(step.Text, " ") {
			if w == "" {
				continue
			}
			select {
			case out <- model.Response{Delta: w, Partial: true}:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
		if step.Hang {
			<-ctx.Done()
			errCh <- ctx.Err()
			return
		}
		if step.Err != nil {
			errCh <- step.Err
			return
		}
		if step.NoFinal {
			return
		}
		select {
		case out <- model.Response{FinishReason: "stop"}:
		case <-ctx.Done():
			errCh <- ctx.Err()
		}
	}()
	return out, errCh
}

// Failure builds a classified provider error.
func Failure(kind model.Kind, provider string) error {
	return model.NewError(kind, provider, errors.New(string(kind)))
}
