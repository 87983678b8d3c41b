package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/archmesh/core"
	"github.com/hupe1980/archmesh/logging"
	"github.com/hupe1980/archmesh/memory"
	"github.com/hupe1980/archmesh/model"
)

// maxAttemptsPerRoute is one call plus one retry.
const maxAttemptsPerRoute = 2

// Observer receives call outcomes, typically a metrics recorder.
type Observer interface {
	ObserveAttempt(role core.AgentRole, provider string, kind model.Kind, d time.Duration)
	ObserveInvoke(role core.AgentRole, degraded bool, wait time.Duration)
}

type noopObserver struct{}

func (noopObserver) ObserveAttempt(core.AgentRole, string, model.Kind, time.Duration) {}
func (noopObserver) ObserveInvoke(core.AgentRole, bool, time.Duration)                {}

// Options configures a Gateway.
type Options struct {
	Routes      *RoutingTable
	MinInterval time.Duration
	Clock       core.Clock
	Logger      logging.Logger
	Observer    Observer
}

// Gateway routes role turns to providers.
type Gateway struct {
	providers map[string]model.Provider
	routes    *RoutingTable
	gate      *RateGate
	clock     core.Clock
	logger    *logging.StructuredLogger
	observer  Observer
}

// New creates a gateway over the given providers, keyed by Provider.Name().
func New(providers []model.Provider, optFns ...func(o *Options)) *Gateway {
	opts := Options{MinInterval: DefaultMinInterval}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Routes == nil {
		opts.Routes = NewRoutingTable(nil)
	}
	if opts.Clock == nil {
		opts.Clock = core.SystemClock{}
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}

	byName := make(map[string]model.Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Gateway{
		providers: byName,
		routes:    opts.Routes,
		gate:      NewRateGate(opts.MinInterval, opts.Clock),
		clock:     opts.Clock,
		logger:    logging.NewStructuredLogger(logging.OrNoOp(opts.Logger)).WithComponent("gateway"),
		observer:  opts.Observer,
	}
}

// Providers lists the registered provider names.
func (g *Gateway) Providers() []string {
	out := make([]string, 0, len(g.providers))
	for name := range g.providers {
		out = append(out, name)
	}
	return out
}

// Invoke sends content as the next user turn of role, using mem as the
// role's conversation history. Tokens stream through the returned Stream.
// Provider failures never surface as errors: the reply degrades to a canned
// message instead.
func (g *Gateway) Invoke(ctx context.Context, mem *memory.Store, role core.AgentRole, content string) *Stream {
	s := newStream()
	go g.run(ctx, s, mem, role, content)
	return s
}

func (g *Gateway) run(ctx context.Context, s *Stream, mem *memory.Store, role core.AgentRole, content string) {
	res := Result{Role: role}
	log := g.logger.WithRole(string(role))

	history, err := mem.History(role)
	if err != nil {
		s.finish(res, fmt.Errorf("gateway: %w", err))
		return
	}
	if err := ctx.Err(); err != nil {
		s.finish(res, err)
		return
	}

	wait, err := g.gate.Wait(ctx, role)
	if err != nil {
		log.Debug("gateway.invoke.cancelled", "stage", "rate_gate")
		s.finish(res, err)
		return
	}

	userMsg := core.NewMessage(core.MessageRoleUser, role, content, g.clock.Now())
	system, msgs := model.FromHistory(history)
	msgs = append(msgs, model.Message{Role: core.MessageRoleUser, Content: content})
	tokens := EstimateTokens(history, content)
	chain := g.routes.Select(role, tokens)
	log.Debug("gateway.invoke.start", "estimated_tokens", tokens, "bucket", Bucket(tokens), "chain", len(chain), "waited", wait)

	emit := func(c Chunk) error {
		c.Role = role
		select {
		case s.chunks <- c:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	var reply string
	degraded := true
chain:
	for _, route := range chain {
		provider, ok := g.providers[route.Provider]
		if !ok {
			log.Debug("gateway.route.skipped", "provider", route.Provider, "reason", "not registered")
			continue
		}
		req := model.Request{
			Model:       route.ModelID,
			System:      system,
			Messages:    msgs,
			MaxTokens:   route.MaxTokens,
			Temperature: route.Temperature,
		}
		for attempt := 1; attempt <= maxAttemptsPerRoute; attempt++ {
			res.Attempts++
			start := g.clock.Now()
			text, usage, emitted, err := g.attempt(ctx, provider, req, emit)
			dur := g.clock.Now().Sub(start)
			if ctxErr := ctx.Err(); ctxErr != nil {
				log.Debug("gateway.invoke.cancelled", "stage", "stream", "provider", route.Provider)
				s.finish(res, ctxErr)
				return
			}
			if err == nil {
				g.observer.ObserveAttempt(role, route.Provider, "", dur)
				log.LogModelCall(string(role), route.Provider, route.ModelID, tokenCount(usage), dur, true, nil)
				reply, degraded = text, false
				res.Route, res.Usage = route, usage
				break chain
			}

			kind := model.Classify(err)
			g.observer.ObserveAttempt(role, route.Provider, kind, dur)
			log.LogModelCall(string(role), route.Provider, route.ModelID, 0, dur, false, err)
			if emitted {
				if err := emit(Chunk{Reset: true}); err != nil {
					s.finish(res, err)
					return
				}
			}
			if !kind.Retryable() {
				break
			}
		}
	}

	if degraded {
		reply = FallbackMessage(role)
		log.Warn("gateway.invoke.degraded", "attempts", res.Attempts)
		if err := emit(Chunk{Text: reply}); err != nil {
			s.finish(res, err)
			return
		}
	}

	assistant := core.NewMessage(core.MessageRoleAssistant, role, reply, g.clock.Now())
	assistant.Degraded = degraded
	if err := mem.AppendExchange(role, userMsg, assistant); err != nil {
		s.finish(res, fmt.Errorf("gateway: commit history: %w", err))
		return
	}
	g.observer.ObserveInvoke(role, degraded, wait)

	res.Message = assistant
	res.Degraded = degraded
	s.finish(res, nil)
}

var errMalformed = errors.New("stream ended without a final chunk or text")

// attempt runs one provider call, forwarding deltas through emit. emitted
// reports whether any text reached the consumer.
func (g *Gateway) attempt(
	ctx context.Context,
	p model.Provider,
	req model.Request,
	emit func(Chunk) error,
) (string, *model.TokenUsage, bool, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out, errCh := p.Generate(ctx, req)
	var (
		sb      strings.Builder
		usage   *model.TokenUsage
		final   bool
		emitted bool
	)
	for r := range out {
		if r.Delta != "" {
			sb.WriteString(r.Delta)
			if err := emit(Chunk{Text: r.Delta}); err != nil {
				return "", nil, emitted, err
			}
			emitted = true
		}
		if !r.Partial {
			final = true
			usage = r.Usage
		}
	}
	if err := <-errCh; err != nil {
		return "", nil, emitted, model.Wrap(p.Name(), err)
	}
	if !final || strings.TrimSpace(sb.String()) == "" {
		return "", nil, emitted, model.NewError(model.KindMalformedResponse, p.Name(), errMalformed)
	}
	return sb.String(), usage, emitted, nil
}

func tokenCount(u *model.TokenUsage) int {
	if u == nil {
		return 0
	}
	return u.TotalTokens
}
