package anthropic

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/archmesh/core"
	"github.com/hupe1980/archmesh/model"
)

func TestBuildParams_RequestOverridesDefaults(t *testing.T) {
	p := NewProvider(func(o *Options) { o.APIKey = "test" })
	params := p.buildParams(model.Request{
		Model:     "claude-3-5-haiku-latest",
		System:    "be safe",
		MaxTokens: 512,
		Messages: []model.Message{
			{Role: core.MessageRoleUser, Content: "hi"},
			{Role: core.MessageRoleAssistant, Content: "hello"},
			{Role: core.MessageRoleUser, Content: ""},
		},
	})

	assert.Equal(t, anthropic.Model("claude-3-5-haiku-latest"), params.Model)
	assert.Equal(t, int64(512), params.MaxTokens)
	assert.Len(t, params.Messages, 2)
	assert.Equal(t, anthropic.MessageParamRoleUser, params.Messages[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, params.Messages[1].Role)
	if assert.Len(t, params.System, 1) {
		assert.Equal(t, "be safe", params.System[0].Text)
	}
}

func TestBuildParams_Defaults(t *testing.T) {
	p := NewProvider(func(o *Options) { o.APIKey = "test" })
	params := p.buildParams(model.Request{Messages: []model.Message{{Role: core.MessageRoleUser, Content: "x"}}})
	assert.Equal(t, anthropic.ModelClaude3_5Sonnet20241022, params.Model)
	assert.Equal(t, int64(4096), params.MaxTokens)
	assert.Empty(t, params.System)
	assert.Equal(t, Name, p.Name())
}
