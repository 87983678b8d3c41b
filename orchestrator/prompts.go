package orchestrator

import (
	"encoding/json"
	"strings"

	"github.com/hupe1980/archmesh/core"
	"github.com/hupe1980/archmesh/internal/util"
)

var (
	primaryPrompt = util.MustParse("primary", `
{{if .Analysis}}{{.Analysis}}

{{end}}{{.Message}}`)

	collaboratorPrompt = util.MustParse("collaborator", `
{{if .Analysis}}{{.Analysis}}

{{end}}The user asked: {{.Message}}

The {{.Primary}} said:
{{indent "> " .Reply}}

As the {{.Role}}, add only your specialized input. Do not repeat what was already said.`)

	votePrompt = util.MustParse("vote", `
{{if .Analysis}}{{.Analysis}}

{{end}}The team must decide: {{.Question}}
Options: {{join ", " .Quoted}}

Vote as the {{.Role}}. Reply with a single JSON object matching this schema and nothing else:
{{.Schema}}`)
)

type turnData struct {
	Analysis string
	Message  string
}

type collaboratorData struct {
	Analysis string
	Message  string
	Primary  string
	Reply    string
	Role     string
}

type voteData struct {
	Analysis string
	Question string
	Quoted   []string
	Role     string
	Schema   string
}

// voteReply is the JSON object a role answers a vote with.
type voteReply struct {
	Choice     string  `json:"choice" description:"exactly one of the offered options"`
	Confidence float64 `json:"confidence" description:"how sure you are, from 0 to 1"`
	Reasoning  string  `json:"reasoning,omitempty" description:"one or two sentences"`
}

func voteSchema(options []string) string {
	schema := util.JSONSchema(voteReply{})
	props := schema["properties"].(map[string]any)
	props["choice"].(map[string]any)["enum"] = options
	b, err := json.Marshal(schema)
	if err != nil {
		return util.SchemaString(voteReply{})
	}
	return string(b)
}

func analysisContext(a *core.RoomAnalysis) string {
	if a == nil {
		return ""
	}
	return a.Summary()
}

func quoteAll(options []string) []string {
	out := make([]string, len(options))
	for i, o := range options {
		out[i] = `"` + strings.ReplaceAll(o, `"`, `'`) + `"`
	}
	return out
}
