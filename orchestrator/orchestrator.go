package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/archmesh/core"
	"github.com/hupe1980/archmesh/gateway"
	"github.com/hupe1980/archmesh/logging"
	"github.com/hupe1980/archmesh/memory"
	"github.com/hupe1980/archmesh/router"
	"github.com/hupe1980/archmesh/vision"
)

// Request is one user turn.
type Request struct {
	Message string
	// Image, when set, is analyzed before any role runs and supersedes
	// Analysis.
	Image *vision.Image
	// Analysis is the conversation's latest RoomAnalysis, if any.
	Analysis *core.RoomAnalysis
	// OnComplete, if set, runs with the outcome of a completed turn before
	// the Collaboration is finished. It does not run on cancellation.
	OnComplete func(Outcome)
}

// EventType discriminates Events.
type EventType string

const (
	// EventAnalysis carries the RoomAnalysis of the request image.
	EventAnalysis EventType = "analysis"
	// EventRoute carries the routing decision.
	EventRoute EventType = "route"
	// EventChunk carries a token chunk of one role.
	EventChunk EventType = "chunk"
)

// Event is an incremental update of a running collaboration.
type Event struct {
	Type      EventType          `json:"type"`
	Role      core.AgentRole     `json:"role,omitempty"`
	Text      string             `json:"text,omitempty"`
	Reset     bool               `json:"reset,omitempty"`
	Analysis  *core.RoomAnalysis `json:"analysis,omitempty"`
	Selection *router.Selection  `json:"selection,omitempty"`
}

// Outcome is the merged result of a collaboration.
type Outcome struct {
	Selection router.Selection `json:"selection"`
	// Analysis is the analysis the roles saw, fresh or carried over.
	Analysis *core.RoomAnalysis `json:"analysis,omitempty"`
	// Replies holds the primary result first, then collaborators in
	// selection order.
	Replies  []gateway.Result `json:"replies"`
	Text     string           `json:"text"`
	Degraded bool             `json:"degraded"`
	Notices  []string         `json:"notices,omitempty"`
}

// Collaboration streams the Events of one turn and, once finished, its
// Outcome.
type Collaboration struct {
	events chan Event
	done   chan struct{}
	out    Outcome
	err    error
}

// Events returns the event stream. It is closed when the turn finishes.
func (c *Collaboration) Events() <-chan Event { return c.events }

// Done is closed once the outcome is available.
func (c *Collaboration) Done() <-chan struct{} { return c.done }

// Result drains unread events and waits for the outcome. The error is
// non-nil only on cancellation or when a role history is unavailable.
func (c *Collaboration) Result() (Outcome, error) {
	for range c.events {
	}
	<-c.done
	return c.out, c.err
}

func (c *Collaboration) finish(out Outcome, err error) {
	c.out, c.err = out, err
	close(c.events)
	close(c.done)
}

// Options configures an Orchestrator.
type Options struct {
	Router *router.Router
	Clock  core.Clock
	Logger logging.Logger
}

// Orchestrator coordinates the gateway, the router and the vision analyzer.
type Orchestrator struct {
	gw       *gateway.Gateway
	analyzer *vision.Analyzer
	router   *router.Router
	clock    core.Clock
	logger   *logging.StructuredLogger
}

// New creates an orchestrator. analyzer may be nil when images are not
// accepted.
func New(gw *gateway.Gateway, analyzer *vision.Analyzer, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Router == nil {
		opts.Router = router.New()
	}
	if opts.Clock == nil {
		opts.Clock = core.SystemClock{}
	}
	return &Orchestrator{
		gw:       gw,
		analyzer: analyzer,
		router:   opts.Router,
		clock:    opts.Clock,
		logger:   logging.NewStructuredLogger(logging.OrNoOp(opts.Logger)).WithComponent("orchestrator"),
	}
}

// Route exposes the routing decision for req without running any role.
func (o *Orchestrator) Route(req Request) router.Selection {
	return o.router.Route(router.Input{Message: req.Message, HasImage: req.Image != nil, Analysis: req.Analysis})
}

// Collaborate runs one user turn against mem, the conversation's history.
func (o *Orchestrator) Collaborate(ctx context.Context, mem *memory.Store, req Request) *Collaboration {
	c := &Collaboration{events: make(chan Event, 64), done: make(chan struct{})}
	go o.run(ctx, c, mem, req)
	return c
}

func (o *Orchestrator) run(ctx context.Context, c *Collaboration, mem *memory.Store, req Request) {
	start := o.clock.Now()
	var out Outcome

	emit := func(e Event) error {
		select {
		case c.events <- e:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	analysis := req.Analysis
	if req.Image != nil {
		if o.analyzer == nil {
			c.finish(out, fmt.Errorf("orchestrator: image given but no analyzer configured"))
			return
		}
		a, err := o.analyzer.Analyze(ctx, *req.Image)
		if err != nil {
			c.finish(out, err)
			return
		}
		analysis = &a
		if err := emit(Event{Type: EventAnalysis, Analysis: &a}); err != nil {
			c.finish(out, err)
			return
		}
	}
	out.Analysis = analysis

	sel := o.router.Route(router.Input{Message: req.Message, HasImage: req.Image != nil, Analysis: analysis})
	out.Selection = sel
	if err := emit(Event{Type: EventRoute, Selection: &sel}); err != nil {
		c.finish(out, err)
		return
	}
	log := o.logger.WithContext("primary_role", string(sel.Primary))
	log.Debug("orchestrator.collaborate.start", "collaborators", len(sel.Collaborators))

	ctxText := analysisContext(analysis)
	prompt, err := primaryPrompt.Render(turnData{Analysis: ctxText, Message: req.Message})
	if err != nil {
		c.finish(out, err)
		return
	}
	primary, err := o.invoke(ctx, mem, sel.Primary, prompt, emit)
	if err != nil {
		c.finish(out, err)
		return
	}

	results := make([]gateway.Result, len(sel.Collaborators))
	g, gctx := errgroup.WithContext(ctx)
	for i, role := range sel.Collaborators {
		g.Go(func() error {
			p, err := collaboratorPrompt.Render(collaboratorData{
				Analysis: ctxText,
				Message:  req.Message,
				Primary:  sel.Primary.DisplayName(),
				Reply:    primary.Message.Content,
				Role:     role.DisplayName(),
			})
			if err != nil {
				return err
			}
			res, err := o.invoke(gctx, mem, role, p, emit)
			if err != nil {
				return fmt.Errorf("%s: %w", role, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Debug("orchestrator.collaborate.cancelled", "error", err.Error())
		c.finish(out, err)
		return
	}

	out.Replies = append([]gateway.Result{primary}, results...)
	out.Text, out.Notices, out.Degraded = merge(out.Replies)

	collaborators := make([]string, len(sel.Collaborators))
	for i, r := range sel.Collaborators {
		collaborators[i] = string(r)
	}
	log.LogCollaboration(string(sel.Primary), collaborators, o.clock.Now().Sub(start), out.Degraded)
	if req.OnComplete != nil {
		req.OnComplete(out)
	}
	c.finish(out, nil)
}

// invoke runs one role and forwards its chunks.
func (o *Orchestrator) invoke(ctx context.Context, mem *memory.Store, role core.AgentRole, prompt string, emit func(Event) error) (gateway.Result, error) {
	s := o.gw.Invoke(ctx, mem, role, prompt)
	for ch := range s.Chunks() {
		if err := emit(Event{Type: EventChunk, Role: ch.Role, Text: ch.Text, Reset: ch.Reset}); err != nil {
			break
		}
	}
	return s.Result()
}

// merge renders the replies into one response. A single reply is returned
// as is; several replies get a heading per role.
func merge(replies []gateway.Result) (string, []string, bool) {
	var (
		notices  []string
		degraded bool
	)
	for _, r := range replies {
		if r.Degraded {
			degraded = true
			notices = append(notices, fmt.Sprintf("The %s is temporarily unavailable; a fallback answer is shown.", r.Role.DisplayName()))
		}
	}

	var b strings.Builder
	if len(replies) == 1 {
		b.WriteString(replies[0].Message.Content)
	} else {
		for i, r := range replies {
			if i > 0 {
				b.WriteString("\n\n")
			}
			fmt.Fprintf(&b, "**%s:** %s", r.Role.DisplayName(), r.Message.Content)
		}
	}
	for _, n := range notices {
		b.WriteString("\n\n_")
		b.WriteString(n)
		b.WriteString("_")
	}
	return b.String(), notices, degraded
}
