// Package archmesh provides a high-level façade that wires the renovation
// assistant together: provider gateway, conversation sessions, the vision
// pipeline, the intent parser and the collaboration orchestrator. Most
// applications interact with this package by:
//  1. Creating an ArchMesh via New() with one or more model providers, or via
//     NewFromConfig() which builds providers from API keys
//  2. Calling Ask (streaming) or AskSync for a user turn, optionally with an
//     encoded room photo
//  3. Using Analyze, ParseIntent and Decide for the non-conversational
//     operations
//
// Every component is an explicit instance owned by the ArchMesh; there is no
// package-level state.
package archmesh

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/archmesh/config"
	"github.com/hupe1980/archmesh/core"
	"github.com/hupe1980/archmesh/gateway"
	"github.com/hupe1980/archmesh/intent"
	"github.com/hupe1980/archmesh/logging"
	"github.com/hupe1980/archmesh/memory"
	"github.com/hupe1980/archmesh/metrics"
	"github.com/hupe1980/archmesh/model"
	"github.com/hupe1980/archmesh/model/anthropic"
	"github.com/hupe1980/archmesh/model/gemini"
	"github.com/hupe1980/archmesh/model/openai"
	"github.com/hupe1980/archmesh/orchestrator"
	"github.com/hupe1980/archmesh/session"
	"github.com/hupe1980/archmesh/store/redis"
	"github.com/hupe1980/archmesh/vision"
)

// ErrNoProviders is returned when no model provider is configured.
var ErrNoProviders = errors.New("no model providers configured")

// Options configures the ArchMesh instance.
type Options struct {
	// Providers back the gateway; at least one is required.
	Providers []model.Provider

	// Config supplies tunables; defaults to config.Default().
	Config *config.Config

	// Mirror persists conversation snapshots (optional).
	Mirror session.Mirror

	// Metrics records gateway, vision and HTTP metrics (optional).
	Metrics *metrics.Recorder

	// Clock defaults to the system clock.
	Clock core.Clock

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// ArchMesh is the high-level façade aggregating all components.
type ArchMesh struct {
	cfg          *config.Config
	gateway      *gateway.Gateway
	analyzer     *vision.Analyzer
	parser       *intent.Parser
	orchestrator *orchestrator.Orchestrator
	sessions     *session.InMemoryStore
	metrics      *metrics.Recorder
	logger       *logging.StructuredLogger
	closers      []func() error
}

// New creates an ArchMesh from explicit providers.
func New(optFns ...func(o *Options)) (*ArchMesh, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if len(opts.Providers) == 0 {
		return nil, ErrNoProviders
	}
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Clock == nil {
		opts.Clock = core.SystemClock{}
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	cfg := opts.Config

	var (
		gwObserver     gateway.Observer
		visionObserver vision.Observer
	)
	if opts.Metrics != nil {
		gwObserver, visionObserver = opts.Metrics, opts.Metrics
	}

	gw := gateway.New(opts.Providers, func(o *gateway.Options) {
		o.Routes = gateway.NewRoutingTable(cfg.Chains())
		o.MinInterval = cfg.MinInterval
		o.Clock = opts.Clock
		o.Logger = opts.Logger
		o.Observer = gwObserver
	})

	analyzer, err := vision.NewAnalyzer(func(o *vision.AnalyzerOptions) {
		o.Params.MaxDimension = cfg.MaxImageDimension
		o.CacheSize = cfg.AnalysisCacheSize
		o.Clock = opts.Clock
		o.Logger = opts.Logger
		o.Observer = visionObserver
	})
	if err != nil {
		return nil, err
	}

	sessions := session.NewInMemoryStore(func(o *session.Options) {
		o.Clock = opts.Clock
		o.Mirror = opts.Mirror
		o.MaxConversations = cfg.MaxConversations
		o.Memory = []func(*memory.Options){func(m *memory.Options) {
			m.MaxTurns = cfg.HistoryTurns
			m.SystemPrompts = cfg.SystemPrompts()
		}}
	})

	return &ArchMesh{
		cfg:      cfg,
		gateway:  gw,
		analyzer: analyzer,
		parser:   intent.NewParser(),
		orchestrator: orchestrator.New(gw, analyzer, func(o *orchestrator.Options) {
			o.Clock = opts.Clock
			o.Logger = opts.Logger
		}),
		sessions: sessions,
		metrics:  opts.Metrics,
		logger:   logging.NewStructuredLogger(opts.Logger).WithComponent("archmesh"),
	}, nil
}

// NewFromConfig builds providers from the API keys in cfg and, when a Redis
// address is configured, mirrors conversations into Redis.
func NewFromConfig(ctx context.Context, cfg *config.Config, optFns ...func(o *Options)) (*ArchMesh, error) {
	var providers []model.Provider
	if cfg.AnthropicAPIKey != "" {
		providers = append(providers, anthropic.NewProvider(func(o *anthropic.Options) { o.APIKey = cfg.AnthropicAPIKey }))
	}
	if cfg.OpenAIAPIKey != "" {
		providers = append(providers, openai.NewProvider(func(o *openai.Options) { o.APIKey = cfg.OpenAIAPIKey }))
	}
	if cfg.GeminiAPIKey != "" {
		p, err := gemini.NewProvider(ctx, func(o *gemini.Options) { o.APIKey = cfg.GeminiAPIKey })
		if err != nil {
			return nil, fmt.Errorf("gemini: %w", err)
		}
		providers = append(providers, p)
	}

	var closers []func() error
	var mirror session.Mirror
	if cfg.Redis.Addr != "" {
		rs, err := redis.New(redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			return nil, err
		}
		mirror = rs
		closers = append(closers, rs.Close)
	}

	m, err := New(append([]func(o *Options){func(o *Options) {
		o.Providers = providers
		o.Config = cfg
		o.Mirror = mirror
	}}, optFns...)...)
	if err != nil {
		for _, c := range closers {
			_ = c()
		}
		return nil, err
	}
	m.closers = closers
	return m, nil
}

// Config returns the active configuration.
func (m *ArchMesh) Config() *config.Config { return m.cfg }

// Sessions exposes the conversation store.
func (m *ArchMesh) Sessions() *session.InMemoryStore { return m.sessions }

// Metrics returns the recorder, or nil.
func (m *ArchMesh) Metrics() *metrics.Recorder { return m.metrics }

// Providers lists the registered provider names.
func (m *ArchMesh) Providers() []string { return m.gateway.Providers() }

// ParseIntent maps an utterance to a structured command.
func (m *ArchMesh) ParseIntent(utterance string) (core.Intent, bool) {
	return m.parser.Parse(utterance)
}

// Analyze runs the vision pipeline over an encoded image. When
// conversationID is not empty the analysis supersedes the conversation's
// stored one. Undecodable images yield the fallback analysis.
func (m *ArchMesh) Analyze(ctx context.Context, conversationID string, data []byte) (core.RoomAnalysis, error) {
	a, err := m.analyzer.AnalyzeBytes(ctx, data)
	if err != nil {
		return core.RoomAnalysis{}, err
	}
	if conversationID == "" {
		return a, nil
	}
	conv, err := m.sessions.GetOrCreate(ctx, conversationID)
	if err != nil {
		return core.RoomAnalysis{}, err
	}
	conv.SetAnalysis(a)
	m.sync(ctx, conv)
	return a, nil
}

// AskRequest is one user turn.
type AskRequest struct {
	// ConversationID selects the conversation; empty starts a new one.
	ConversationID string
	Message        string
	// Image is an optional encoded photo (PNG, JPEG, GIF, BMP or WebP).
	Image []byte
}

// Turn is a running user turn.
type Turn struct {
	ConversationID string
	*orchestrator.Collaboration
}

// Ask starts a user turn. Events stream through the returned Turn; the
// conversation's analysis and history are updated when the turn completes.
func (m *ArchMesh) Ask(ctx context.Context, req AskRequest) (*Turn, error) {
	conv, err := m.sessions.GetOrCreate(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}

	oreq := orchestrator.Request{Message: req.Message}
	if a, ok := conv.Analysis(); ok {
		oreq.Analysis = a
	}
	if len(req.Image) > 0 {
		img, _, err := vision.Decode(req.Image)
		if err != nil {
			// An invalid image still takes the vision path and yields the
			// fallback analysis.
			m.logger.Warn("archmesh.image.undecodable", "conversation_id", conv.ID, "error", err.Error())
			img = vision.Image{}
		}
		oreq.Image = &img
	}
	oreq.OnComplete = func(out orchestrator.Outcome) {
		if oreq.Image != nil && out.Analysis != nil {
			conv.SetAnalysis(*out.Analysis)
		}
		conv.Touch()
		m.sync(ctx, conv)
	}

	return &Turn{
		ConversationID: conv.ID,
		Collaboration:  m.orchestrator.Collaborate(ctx, conv.Memory(), oreq),
	}, nil
}

// AskSync runs a user turn to completion.
func (m *ArchMesh) AskSync(ctx context.Context, req AskRequest) (string, orchestrator.Outcome, error) {
	turn, err := m.Ask(ctx, req)
	if err != nil {
		return "", orchestrator.Outcome{}, err
	}
	out, err := turn.Result()
	return turn.ConversationID, out, err
}

// Decide asks roles of a conversation to vote between options.
func (m *ArchMesh) Decide(ctx context.Context, conversationID string, req orchestrator.DecideRequest) (*core.CollaborativeDecision, error) {
	conv, err := m.sessions.GetOrCreate(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if req.Analysis == nil {
		req.Analysis, _ = conv.Analysis()
	}
	d, err := m.orchestrator.Decide(ctx, conv.Memory(), req)
	if err != nil {
		return nil, err
	}
	conv.Touch()
	m.sync(ctx, conv)
	return d, nil
}

// Reset clears the history of the given roles, or of every role when none
// is given, keeping the system prompts.
func (m *ArchMesh) Reset(ctx context.Context, conversationID string, roles ...core.AgentRole) error {
	conv, err := m.sessions.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	if len(roles) == 0 {
		roles = conv.Memory().Roles()
	}
	for _, r := range roles {
		if err := conv.Memory().Clear(r); err != nil {
			return err
		}
	}
	conv.Touch()
	m.sync(ctx, conv)
	return nil
}

// Close releases external resources.
func (m *ArchMesh) Close() error {
	var errs []error
	for _, c := range m.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// sync mirrors the conversation and logs failures.
func (m *ArchMesh) sync(ctx context.Context, conv *session.Conversation) {
	defer m.logger.StartTimer("archmesh.mirror.sync")()
	if err := m.sessions.Sync(context.WithoutCancel(ctx), conv); err != nil {
		m.logger.Warn("archmesh.mirror.failed", "conversation_id", conv.ID, "error", err.Error())
	}
}
