package gateway

import (
	"unicode/utf8"

	"github.com/hupe1980/archmesh/core"
)

// Size is a coarse bucket of estimated input tokens.
type Size string

const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
)

const (
	mediumThreshold = 1000
	largeThreshold  = 4000
)

// EstimateTokens approximates the token count of the outgoing context as
// ceil(chars/4) over the history plus the new message.
func EstimateTokens(history []core.AgentMessage, next string) int {
	chars := utf8.RuneCountInString(next)
	for _, m := range history {
		chars += utf8.RuneCountInString(m.Content)
	}
	return (chars + 3) / 4
}

// Bucket maps an estimated token count to a Size.
func Bucket(tokens int) Size {
	switch {
	case tokens >= largeThreshold:
		return SizeLarge
	case tokens >= mediumThreshold:
		return SizeMedium
	default:
		return SizeSmall
	}
}
