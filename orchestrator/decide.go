package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/archmesh/core"
	"github.com/hupe1980/archmesh/gateway"
	"github.com/hupe1980/archmesh/memory"
)

// DecideRequest asks roles to choose between options.
type DecideRequest struct {
	Question string
	Options  []string
	Roles    []core.AgentRole
	Analysis *core.RoomAnalysis
}

// Decide asks every role in req.Roles to vote and returns the resolved
// decision. Votes are cast concurrently and applied in role order. A reply
// that is degraded or carries no valid JSON vote counts as a zero-confidence
// vote for the first option.
func (o *Orchestrator) Decide(ctx context.Context, mem *memory.Store, req DecideRequest) (*core.CollaborativeDecision, error) {
	d, err := core.NewDecision(req.Question, req.Options, req.Roles...)
	if err != nil {
		return nil, err
	}
	start := o.clock.Now()
	schema := voteSchema(d.Options)
	ctxText := analysisContext(req.Analysis)

	votes := make([]core.Vote, len(d.RequiredAgents))
	g, gctx := errgroup.WithContext(ctx)
	for i, role := range d.RequiredAgents {
		g.Go(func() error {
			prompt, err := votePrompt.Render(voteData{
				Analysis: ctxText,
				Question: d.Question,
				Quoted:   quoteAll(d.Options),
				Role:     role.DisplayName(),
				Schema:   schema,
			})
			if err != nil {
				return err
			}
			_, res, err := gateway.Collect(o.gw.Invoke(gctx, mem, role, prompt))
			if err != nil {
				return fmt.Errorf("%s: %w", role, err)
			}
			if res.Degraded {
				votes[i] = abstain(role, d.Options, "specialist unavailable")
				return nil
			}
			votes[i] = parseVote(role, res.Message.Content, d.Options)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, v := range votes {
		if _, err := d.AddVote(v); err != nil {
			return nil, fmt.Errorf("orchestrator: %w", err)
		}
	}
	choice, _ := d.Resolved()
	o.logger.Info("orchestrator.decide.resolved",
		"decision_id", d.ID,
		"choice", choice,
		"votes", len(votes),
		"duration", o.clock.Now().Sub(start),
	)
	return d, nil
}

// parseVote extracts the JSON vote from a free-form reply. Models tend to
// wrap JSON in prose or code fences, so the outermost object is used.
func parseVote(role core.AgentRole, reply string, options []string) core.Vote {
	first, last := strings.Index(reply, "{"), strings.LastIndex(reply, "}")
	if first < 0 || last < first {
		return abstain(role, options, "no JSON vote in reply")
	}
	raw := reply[first : last+1]
	if !gjson.Valid(raw) {
		return abstain(role, options, "malformed JSON vote")
	}

	fields := gjson.GetMany(raw, "choice", "confidence", "reasoning")
	choice, ok := matchOption(fields[0].String(), options)
	if !ok {
		return abstain(role, options, fmt.Sprintf("unknown choice %q", fields[0].String()))
	}
	confidence := 0.5
	if fields[1].Exists() {
		confidence = clamp01(fields[1].Float())
	}
	return core.Vote{Agent: role, Choice: choice, Confidence: confidence, Reasoning: fields[2].String()}
}

// abstain records a zero-confidence vote; it adds neither score nor tie-break
// rank to options[0].
func abstain(role core.AgentRole, options []string, why string) core.Vote {
	return core.Vote{Agent: role, Choice: options[0], Confidence: 0, Reasoning: "abstained: " + why}
}

func matchOption(s string, options []string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, o := range options {
		if strings.EqualFold(o, s) {
			return o, true
		}
	}
	return "", false
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
