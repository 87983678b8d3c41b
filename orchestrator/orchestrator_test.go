package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/archmesh/core"
	"github.com/hupe1980/archmesh/gateway"
	"github.com/hupe1980/archmesh/internal/testutil"
	"github.com/hupe1980/archmesh/memory"
	"github.com/hupe1980/archmesh/model"
	"github.com/hupe1980/archmesh/vision"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// roleOf identifies the calling role by its system prompt.
func roleOf(req model.Request) core.AgentRole {
	for _, r := range core.AllRoles() {
		if strings.HasPrefix(req.System, "You are the "+r.DisplayName()) {
			return r
		}
	}
	return ""
}

func lastUserMessage(req model.Request) string {
	return req.Messages[len(req.Messages)-1].Content
}

func byRole(replies map[core.AgentRole]testutil.Step) testutil.Responder {
	return func(req model.Request) testutil.Step {
		if s, ok := replies[roleOf(req)]; ok {
			return s
		}
		return testutil.Step{Text: "ok"}
	}
}

func newTestOrchestrator(t *testing.T, p model.Provider) *Orchestrator {
	t.Helper()
	clock := testutil.NewAutoClock(epoch)
	gw := gateway.New([]model.Provider{p}, func(o *gateway.Options) { o.Clock = clock })
	analyzer, err := vision.NewAnalyzer(func(o *vision.AnalyzerOptions) { o.Clock = clock })
	require.NoError(t, err)
	return New(gw, analyzer, func(o *Options) { o.Clock = clock })
}

func TestCollaborate_PrimaryThenCollaborators(t *testing.T) {
	p := testutil.NewResponderProvider(gateway.ProviderAnthropic, byRole(map[core.AgentRole]testutil.Step{
		core.RoleStructural:     {Text: "It is load-bearing."},
		core.RoleProjectManager: {Text: "About 5000 dollars."},
		core.RoleCoordinator:    {Text: "Plan: assess first."},
	}))
	orc := newTestOrchestrator(t, p)
	mem := memory.NewStore()

	c := orc.Collaborate(context.Background(), mem, Request{Message: "Can I remove this wall and what would it cost?"})

	streamed := map[core.AgentRole]string{}
	var types []EventType
	for e := range c.Events() {
		types = append(types, e.Type)
		if e.Type == EventChunk {
			streamed[e.Role] += e.Text
		}
	}
	out, err := c.Result()
	require.NoError(t, err)

	assert.Equal(t, EventRoute, types[0])
	assert.Equal(t, core.RoleStructural, out.Selection.Primary)
	require.Len(t, out.Replies, 3)
	assert.Equal(t, []core.AgentRole{core.RoleStructural, core.RoleProjectManager, core.RoleCoordinator},
		[]core.AgentRole{out.Replies[0].Role, out.Replies[1].Role, out.Replies[2].Role})
	assert.Equal(t, "It is load-bearing.", streamed[core.RoleStructural])
	assert.Equal(t, "About 5000 dollars.", streamed[core.RoleProjectManager])

	assert.Equal(t,
		"**Structural Engineer:** It is load-bearing.\n\n"+
			"**Project Manager:** About 5000 dollars.\n\n"+
			"**Coordinator:** Plan: assess first.",
		out.Text)
	assert.False(t, out.Degraded)
	assert.Empty(t, out.Notices)

	reqs := p.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, core.RoleStructural, roleOf(reqs[0]))
	assert.Equal(t, "Can I remove this wall and what would it cost?", lastUserMessage(reqs[0]))
	for _, r := range reqs[1:] {
		assert.Contains(t, lastUserMessage(r), "The Structural Engineer said:\n> It is load-bearing.")
	}

	for _, role := range out.Selection.Roles() {
		h, err := mem.History(role)
		require.NoError(t, err)
		assert.Len(t, h, 3, role)
	}
}

func TestCollaborate_DegradedCollaboratorKeepsTurn(t *testing.T) {
	p := testutil.NewResponderProvider(gateway.ProviderAnthropic, byRole(map[core.AgentRole]testutil.Step{
		core.RoleStructural:     {Text: "Get an engineer."},
		core.RoleProjectManager: {Err: testutil.Failure(model.KindUnavailable, gateway.ProviderAnthropic)},
	}))
	orc := newTestOrchestrator(t, p)

	out, err := orc.Collaborate(context.Background(), memory.NewStore(), Request{Message: "What does it cost to remove the wall?"}).Result()
	require.NoError(t, err)

	assert.True(t, out.Degraded)
	require.Len(t, out.Notices, 1)
	assert.Contains(t, out.Notices[0], "Project Manager")
	assert.Contains(t, out.Text, gateway.FallbackMessage(core.RoleProjectManager))
	assert.Contains(t, out.Text, "**Structural Engineer:** Get an engineer.")
	assert.True(t, out.Replies[1].Degraded)
}

func TestCollaborate_SingleRoleIsUnwrapped(t *testing.T) {
	p := testutil.NewScriptedProvider(gateway.ProviderAnthropic, testutil.Step{Text: "Hi! How can I help?"})
	orc := newTestOrchestrator(t, p)

	out, err := orc.Collaborate(context.Background(), memory.NewStore(), Request{Message: "hello"}).Result()
	require.NoError(t, err)
	assert.Equal(t, core.RoleCoordinator, out.Selection.Primary)
	assert.Equal(t, "Hi! How can I help?", out.Text)
}

func TestCollaborate_ImageIsAnalyzedFirst(t *testing.T) {
	p := testutil.NewResponderProvider(gateway.ProviderAnthropic, byRole(nil))
	orc := newTestOrchestrator(t, p)
	img := vision.FromImage(testutil.LivingRoom())

	c := orc.Collaborate(context.Background(), memory.NewStore(), Request{Message: "What style suits this room?", Image: &img})
	var first []Event
	for e := range c.Events() {
		if len(first) < 2 {
			first = append(first, e)
		}
	}
	out, err := c.Result()
	require.NoError(t, err)

	require.Len(t, first, 2)
	assert.Equal(t, EventAnalysis, first[0].Type)
	assert.Equal(t, EventRoute, first[1].Type)
	require.NotNil(t, out.Analysis)
	assert.Equal(t, core.RoomLivingRoom, out.Analysis.RoomType)
	assert.Equal(t, []core.AgentRole{core.RoleVision, core.RoleDesign, core.RoleCoordinator}, out.Selection.Roles())

	reqs := p.Requests()
	require.NotEmpty(t, reqs)
	assert.Equal(t, core.RoleVision, roleOf(reqs[0]))
	assert.True(t, strings.HasPrefix(lastUserMessage(reqs[0]), "Room analysis: type=living_room"))
	assert.True(t, strings.HasSuffix(lastUserMessage(reqs[0]), "What style suits this room?"))
}

func TestCollaborate_CarriedAnalysisIsContext(t *testing.T) {
	p := testutil.NewScriptedProvider(gateway.ProviderAnthropic)
	orc := newTestOrchestrator(t, p)
	prior := core.RoomAnalysis{RoomType: core.RoomBedroom, OverallConfidence: 0.9}

	out, err := orc.Collaborate(context.Background(), memory.NewStore(), Request{Message: "hello", Analysis: &prior}).Result()
	require.NoError(t, err)
	assert.Equal(t, &prior, out.Analysis)
	assert.Contains(t, lastUserMessage(p.Requests()[0]), "type=bedroom")
}

func TestCollaborate_ImageWithoutAnalyzer(t *testing.T) {
	gw := gateway.New(nil)
	orc := New(gw, nil)
	img := vision.FromImage(testutil.LivingRoom())

	_, err := orc.Collaborate(context.Background(), memory.NewStore(), Request{Message: "hi", Image: &img}).Result()
	assert.Error(t, err)
}

func TestCollaborate_CancelLeavesHistoryUntouched(t *testing.T) {
	p := testutil.NewScriptedProvider(gateway.ProviderAnthropic, testutil.Step{Text: "thinking about ", Hang: true})
	orc := newTestOrchestrator(t, p)
	mem := memory.NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := orc.Collaborate(ctx, mem, Request{Message: "Remove the wall"})
	for e := range c.Events() {
		if e.Type == EventChunk {
			cancel()
			break
		}
	}
	_, err := c.Result()
	require.ErrorIs(t, err, context.Canceled)

	for _, role := range core.AllRoles() {
		h, err := mem.History(role)
		require.NoError(t, err)
		assert.Len(t, h, 1, role)
	}
}

func TestRoute_DoesNotInvoke(t *testing.T) {
	p := testutil.NewScriptedProvider(gateway.ProviderAnthropic)
	orc := newTestOrchestrator(t, p)

	sel := orc.Route(Request{Message: "remove the wall"})
	assert.Equal(t, core.RoleStructural, sel.Primary)
	assert.Equal(t, []core.AgentRole{core.RoleCoordinator}, sel.Collaborators)
	assert.Zero(t, p.CallCount())
}

func TestCollaborate_OnCompleteRunsBeforeFinish(t *testing.T) {
	orc := newTestOrchestrator(t, testutil.NewScriptedProvider(gateway.ProviderAnthropic))
	var seen *Outcome
	c := orc.Collaborate(context.Background(), memory.NewStore(), Request{
		Message:    "hello",
		OnComplete: func(o Outcome) { seen = &o },
	})
	<-c.Done()
	require.NotNil(t, seen)
	out, err := c.Result()
	require.NoError(t, err)
	assert.Equal(t, out.Text, seen.Text)
}
