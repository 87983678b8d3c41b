package gateway

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/archmesh/core"
)

func TestBucket(t *testing.T) {
	assert.Equal(t, SizeSmall, Bucket(0))
	assert.Equal(t, SizeSmall, Bucket(999))
	assert.Equal(t, SizeMedium, Bucket(1000))
	assert.Equal(t, SizeMedium, Bucket(3999))
	assert.Equal(t, SizeLarge, Bucket(4000))
}

func TestEstimateTokens(t *testing.T) {
	h := []core.AgentMessage{core.NewMessage(core.MessageRoleSystem, core.RoleDesign, "abcd", time.Time{})}
	assert.Equal(t, 3, EstimateTokens(h, "efghi"))
	assert.Equal(t, 0, EstimateTokens(nil, ""))
	assert.Equal(t, 1, EstimateTokens(nil, "äö"))
}

func TestRoutingTable_Deterministic(t *testing.T) {
	a := NewRoutingTable(nil)
	b := NewRoutingTable(nil)
	for _, role := range core.AllRoles() {
		for _, tokens := range []int{10, 1500, 9000} {
			assert.Equal(t, a.Select(role, tokens), b.Select(role, tokens))
			assert.Equal(t, a.Select(role, tokens), a.Select(role, tokens))
		}
	}
}

func TestRoutingTable_EscalatesWithSize(t *testing.T) {
	tbl := NewRoutingTable(nil)
	small := tbl.Select(core.RoleStructural, 100)[0]
	large := tbl.Select(core.RoleStructural, 5000)[0]
	assert.Equal(t, ProviderAnthropic, small.Provider)
	assert.True(t, strings.Contains(small.ModelID, "haiku"))
	assert.True(t, strings.Contains(large.ModelID, "sonnet"))
	assert.Greater(t, large.MaxTokens, small.MaxTokens)
}

func TestRoutingTable_CustomChain(t *testing.T) {
	tbl := NewRoutingTable(map[core.AgentRole][]string{core.RoleDesign: {ProviderGemini}})
	chain := tbl.Select(core.RoleDesign, 10)
	assert.Len(t, chain, 1)
	assert.Equal(t, "gemini/gemini-2.0-flash", chain[0].String())
	assert.Len(t, tbl.Select(core.RoleCoordinator, 10), 3)
}

func TestRoutingTable_SelectReturnsCopy(t *testing.T) {
	tbl := NewRoutingTable(nil)
	c := tbl.Select(core.RoleVision, 10)
	c[0].Provider = "mutated"
	assert.NotEqual(t, "mutated", tbl.Select(core.RoleVision, 10)[0].Provider)
}

func TestFallbackMessage_PerRole(t *testing.T) {
	seen := map[string]bool{}
	for _, r := range core.AllRoles() {
		msg := FallbackMessage(r)
		assert.NotEmpty(t, msg)
		assert.False(t, seen[msg], "fallbacks should be role specific")
		seen[msg] = true
	}
	assert.Equal(t, FallbackMessage(core.RoleCoordinator), FallbackMessage("unknown"))
}
