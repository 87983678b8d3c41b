// Package router selects which specialist roles handle a user message.
//
// Selection is rule based and deterministic: trigger terms in the message,
// the parsed intent, an attached image and the current RoomAnalysis each add
// roles. The first triggered role in priority order becomes primary and the
// coordinator joins unless it is primary. At most MaxRoles are selected.
package router

import (
	"regexp"
	"strings"

	"github.com/hupe1980/archmesh/core"
	"github.com/hupe1980/archmesh/intent"
)

// MaxRoles bounds the fan-out of one collaboration.
const MaxRoles = 3

// lowConfidence marks an analysis the vision specialist should review.
const lowConfidence = 0.5

// Input is everything the router inspects.
type Input struct {
	Message  string
	HasImage bool
	// Analysis is the latest RoomAnalysis of the conversation, if any.
	Analysis *core.RoomAnalysis
}

// Selection is the routing decision.
type Selection struct {
	Primary       core.AgentRole   `json:"primary"`
	Collaborators []core.AgentRole `json:"collaborators"`
	// Triggers records why each role was selected.
	Triggers map[core.AgentRole][]string `json:"triggers,omitempty"`
	Intent   *core.Intent                `json:"intent,omitempty"`
}

// Roles returns primary followed by collaborators.
func (s Selection) Roles() []core.AgentRole {
	return append([]core.AgentRole{s.Primary}, s.Collaborators...)
}

// Router is immutable and safe for concurrent use.
type Router struct {
	triggers map[core.AgentRole]*regexp.Regexp
	commands map[core.Command]core.AgentRole
	parser   *intent.Parser
}

var defaultTerms = map[core.AgentRole][]string{
	core.RoleStructural: {
		"wall", "walls", "remove", "removing", "load-bearing", "load bearing", "beam", "beams",
		"demolish", "knock down", "tear down", "structural", "support", "column", "joist",
		"foundation", "opening", "header",
	},
	core.RoleVision: {
		"photo", "photos", "picture", "image", "camera", "see", "scan", "analyze", "analyse",
		"detect", "detected",
	},
	core.RoleDesign: {
		"style", "color", "colour", "paint", "decor", "furniture", "layout", "aesthetic",
		"palette", "material", "materials", "flooring", "lighting", "cozy", "look",
	},
	core.RoleProjectManager: {
		"budget", "cost", "costs", "price", "how much", "expensive", "cheap", "time", "timeline",
		"how long", "schedule", "permit", "permits", "contractor", "estimate", "weeks", "months",
	},
}

var commandRoles = map[core.Command]core.AgentRole{
	core.CommandCapturePhoto:     core.RoleVision,
	core.CommandAnalyzeRoom:      core.RoleVision,
	core.CommandRemoveWall:       core.RoleStructural,
	core.CommandAddWindow:        core.RoleStructural,
	core.CommandAddDoor:          core.RoleStructural,
	core.CommandChangeStyle:      core.RoleDesign,
	core.CommandChangeColor:      core.RoleDesign,
	core.CommandCalculateCost:    core.RoleProjectManager,
	core.CommandEstimateTimeline: core.RoleProjectManager,
}

// New creates a router with the built-in trigger vocabulary.
func New() *Router {
	r := &Router{
		triggers: make(map[core.AgentRole]*regexp.Regexp, len(defaultTerms)),
		commands: commandRoles,
		parser:   intent.NewParser(),
	}
	for role, terms := range defaultTerms {
		quoted := make([]string, len(terms))
		for i, t := range terms {
			quoted[i] = regexp.QuoteMeta(t)
		}
		r.triggers[role] = regexp.MustCompile(`\b(` + strings.Join(quoted, "|") + `)\b`)
	}
	return r
}

// Route selects the primary and collaborating roles for in.
func (r *Router) Route(in Input) Selection {
	text := strings.ToLower(in.Message)
	reasons := make(map[core.AgentRole][]string)
	add := func(role core.AgentRole, why string) { reasons[role] = append(reasons[role], why) }

	for _, role := range core.AllRoles() {
		re, ok := r.triggers[role]
		if !ok {
			continue
		}
		for _, m := range uniq(re.FindAllString(text, -1)) {
			add(role, "term:"+m)
		}
	}

	var parsed *core.Intent
	if it, ok := r.parser.Parse(in.Message); ok {
		parsed = &it
		if role, ok := r.commands[it.Command]; ok {
			add(role, "intent:"+string(it.Command))
		}
	}
	if in.HasImage {
		add(core.RoleVision, "image")
	}
	if in.Analysis != nil && (in.Analysis.Fallback || in.Analysis.OverallConfidence < lowConfidence) {
		add(core.RoleVision, "low_confidence_analysis")
	}

	var triggered []core.AgentRole
	for _, role := range core.AllRoles() {
		if role == core.RoleCoordinator {
			continue
		}
		if len(reasons[role]) > 0 {
			triggered = append(triggered, role)
		}
	}

	// The coordinator always trails the triggered roles so capping drops it
	// before any specialist.
	roles := append(triggered, core.RoleCoordinator)
	if len(roles) > MaxRoles {
		roles = roles[:MaxRoles]
	}
	if len(triggered) == 0 {
		add(core.RoleCoordinator, "default")
	} else if contains(roles, core.RoleCoordinator) {
		add(core.RoleCoordinator, "synthesis")
	}

	sel := Selection{
		Primary:       roles[0],
		Collaborators: append([]core.AgentRole{}, roles[1:]...),
		Triggers:      make(map[core.AgentRole][]string, len(roles)),
		Intent:        parsed,
	}
	for _, role := range roles {
		sel.Triggers[role] = reasons[role]
	}
	return sel
}

func uniq(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func contains(roles []core.AgentRole, r core.AgentRole) bool {
	for _, x := range roles {
		if x == r {
			return true
		}
	}
	return false
}
