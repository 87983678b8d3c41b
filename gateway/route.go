package gateway

import (
	"fmt"

	"github.com/hupe1980/archmesh/core"
)

// Provider routing names.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
)

// Route is one concrete model selection: {provider, modelId, maxTokens, temperature}.
type Route struct {
	Provider    string  `json:"provider"`
	ModelID     string  `json:"model_id"`
	MaxTokens   int64   `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

func (r Route) String() string { return fmt.Sprintf("%s/%s", r.Provider, r.ModelID) }

// catalog lists the model used by each provider for each size bucket.
var catalog = map[string]map[Size]string{
	ProviderAnthropic: {
		SizeSmall:  "claude-3-5-haiku-latest",
		SizeMedium: "claude-3-5-sonnet-latest",
		SizeLarge:  "claude-3-5-sonnet-latest",
	},
	ProviderOpenAI: {
		SizeSmall:  "gpt-4o-mini",
		SizeMedium: "gpt-4o",
		SizeLarge:  "gpt-4o",
	},
	ProviderGemini: {
		SizeSmall:  "gemini-2.0-flash",
		SizeMedium: "gemini-2.0-flash",
		SizeLarge:  "gemini-1.5-pro",
	},
}

var maxTokensBySize = map[Size]int64{
	SizeSmall:  1024,
	SizeMedium: 2048,
	SizeLarge:  4096,
}

// roleTemperature keeps safety-critical roles conservative.
var roleTemperature = map[core.AgentRole]float64{
	core.RoleStructural:     0.2,
	core.RoleVision:         0.3,
	core.RoleProjectManager: 0.4,
	core.RoleCoordinator:    0.6,
	core.RoleDesign:         0.8,
}

// DefaultChains is the ordered provider fallback list per role.
func DefaultChains() map[core.AgentRole][]string {
	return map[core.AgentRole][]string{
		core.RoleCoordinator:    {ProviderAnthropic, ProviderOpenAI, ProviderGemini},
		core.RoleStructural:     {ProviderAnthropic, ProviderOpenAI, ProviderGemini},
		core.RoleVision:         {ProviderOpenAI, ProviderGemini, ProviderAnthropic},
		core.RoleDesign:         {ProviderOpenAI, ProviderAnthropic, ProviderGemini},
		core.RoleProjectManager: {ProviderAnthropic, ProviderGemini, ProviderOpenAI},
	}
}

// RoutingTable maps (role, size) to an ordered chain of routes. It is built
// once and never mutated, so the same (role, size) always yields the same
// chain.
type RoutingTable struct {
	routes map[core.AgentRole]map[Size][]Route
}

// NewRoutingTable builds a table from per-role provider chains. Roles missing
// from chains use DefaultChains; providers without a catalog entry are kept
// with an empty model id and left to the provider's default model.
func NewRoutingTable(chains map[core.AgentRole][]string) *RoutingTable {
	defaults := DefaultChains()
	t := &RoutingTable{routes: make(map[core.AgentRole]map[Size][]Route)}
	for _, role := range core.AllRoles() {
		chain := chains[role]
		if len(chain) == 0 {
			chain = defaults[role]
		}
		bySize := make(map[Size][]Route, 3)
		for _, size := range []Size{SizeSmall, SizeMedium, SizeLarge} {
			routes := make([]Route, 0, len(chain))
			for _, provider := range chain {
				routes = append(routes, Route{
					Provider:    provider,
					ModelID:     catalog[provider][size],
					MaxTokens:   maxTokensBySize[size],
					Temperature: roleTemperature[role],
				})
			}
			bySize[size] = routes
		}
		t.routes[role] = bySize
	}
	return t
}

// Select returns a copy of the route chain for role and estimated tokens;
// the first entry is the primary route.
func (t *RoutingTable) Select(role core.AgentRole, tokens int) []Route {
	return append([]Route(nil), t.routes[role][Bucket(tokens)]...)
}
