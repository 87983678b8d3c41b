package gemini

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"

	"github.com/hupe1980/archmesh/core"
	"github.com/hupe1980/archmesh/model"
)

func TestBuildRequest(t *testing.T) {
	p := NewProviderFromClient(nil)
	id, contents, cfg := p.buildRequest(model.Request{
		System:    "sys",
		MaxTokens: 100,
		Messages: []model.Message{
			{Role: core.MessageRoleUser, Content: "hi"},
			{Role: core.MessageRoleAssistant, Content: "hello"},
		},
	})
	assert.Equal(t, "gemini-2.0-flash", id)
	if assert.Len(t, contents, 2) {
		assert.Equal(t, "user", contents[0].Role)
		assert.Equal(t, "model", contents[1].Role)
	}
	assert.Equal(t, int32(100), cfg.MaxOutputTokens)
	assert.NotNil(t, cfg.SystemInstruction)
}

func TestClassify(t *testing.T) {
	err := classify(fmt.Errorf("wrapped: %w", genai.APIError{Code: 429}))
	var me *model.Error
	if assert.True(t, errors.As(err, &me)) {
		assert.Equal(t, model.KindRateLimited, me.Kind)
		assert.Equal(t, Name, me.Provider)
	}
	assert.Equal(t, model.KindUnavailable, model.Classify(classify(errors.New("boom"))))
}
