package intent

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/hupe1980/archmesh/core"
)

const (
	baseConfidence = 0.65
	termBonus      = 0.1
	shortPenalty   = 0.15
	longPenalty    = 0.1
	shortUtterance = 3
	longUtterance  = 25
	minConfidence  = 0.1
	maxConfidence  = 1.0
)

// Parameter keys attached to intents.
const (
	ParamStyle    = "style"
	ParamColor    = "color"
	ParamAmount   = "amount"
	ParamLocation = "location"
)

type extractor func(text string) map[string]string

// rule maps a set of patterns to one command.
type rule struct {
	command  core.Command
	patterns []*regexp.Regexp
	extract  extractor
}

// Parser is an ordered pattern table. It is immutable and safe for
// concurrent use.
type Parser struct {
	rules []rule
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// NewParser builds the parser with the built-in rule table.
func NewParser() *Parser {
	return &Parser{rules: []rule{
		{
			command: core.CommandCapturePhoto,
			patterns: compile(
				`\b(take|capture|snap|grab)\b.*\b(photo|picture|pic|image|shot|snapshot)s?\b`,
				`\bphotograph (this|the room|it)\b`,
			),
		},
		{
			command: core.CommandAnalyzeRoom,
			patterns: compile(
				`\b(analy[sz]e|scan|inspect|assess|evaluate)\b.*\b(room|space|this|it|photo|picture|image)\b`,
				`\bwhat do you see\b`,
			),
		},
		{
			command: core.CommandRemoveWall,
			patterns: compile(
				`\b(remove|knock down|knock out|tear down|take down|take out|demolish|open up)\b.*\bwalls?\b`,
			),
			extract: extractLocation,
		},
		{
			command: core.CommandAddWindow,
			patterns: compile(
				`\b(add|install|put|insert|create|cut)\b.*\bwindows?\b`,
			),
			extract: extractLocation,
		},
		{
			command: core.CommandAddDoor,
			patterns: compile(
				`\b(add|install|put|insert|create|cut)\b.*\bdoor(way)?s?\b`,
			),
			extract: extractLocation,
		},
		{
			command: core.CommandCalculateCost,
			patterns: compile(
				`\bhow much\b`,
				`\b(cost|costs|price|pricing|budget|quote|expensive)\b`,
			),
			extract: extractAmount,
		},
		{
			command: core.CommandEstimateTimeline,
			patterns: compile(
				`\bhow long\b`,
				`\b(timeline|schedule|duration|time frame|timeframe)\b`,
				`\bhow many (days|weeks|months)\b`,
			),
		},
		{
			command: core.CommandChangeStyle,
			patterns: compile(
				`\b(style|aesthetic|look and feel)\b`,
				`\bmake it (look )?(more )?(`+alternation(Styles)+`)\b`,
			),
			extract: vocabularyExtractor(ParamStyle, Styles),
		},
		{
			command: core.CommandChangeColor,
			patterns: compile(
				`\b(paint|repaint|colou?r|colou?rs)\b`,
			),
			extract: vocabularyExtractor(ParamColor, Colors),
		},
		{
			command: core.CommandSaveDesign,
			patterns: compile(
				`\b(save|store|keep|bookmark)\b.*\b(design|this|it|project|layout|version)\b`,
			),
		},
		{
			command: core.CommandUndo,
			patterns: compile(
				`\b(undo|revert|go back|roll back|cancel that|take that back)\b`,
			),
		},
		{
			command: core.CommandHelp,
			patterns: compile(
				`\b(help|what can you do|commands|how does this work)\b`,
			),
		},
	}}
}

var (
	nonWord    = regexp.MustCompile(`[^a-z0-9$.,'\- ]+`)
	whitespace = regexp.MustCompile(`\s+`)
	amountRe   = regexp.MustCompile(`\$\s?\d[\d,]*(\.\d+)?\s*(k|thousand)?\b|\b\d[\d,]*(\.\d+)?\s*(k|thousand|dollars|usd|bucks)\b`)
)

func normalize(utterance string) string {
	s := strings.ToLower(utterance)
	s = nonWord.ReplaceAllString(s, " ")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Parse returns the Intent of the first matching rule, or false when no
// rule matches.
func (p *Parser) Parse(utterance string) (core.Intent, bool) {
	text := normalize(utterance)
	if text == "" {
		return core.Intent{}, false
	}
	for _, r := range p.rules {
		if !matchesAny(r.patterns, text) {
			continue
		}
		params := map[string]string{}
		if r.extract != nil {
			params = r.extract(text)
		}
		return core.Intent{
			Command:    r.command,
			Parameters: params,
			Confidence: Confidence(text),
			Utterance:  utterance,
		}, true
	}
	return core.Intent{}, false
}

// Commands lists the commands in rule order.
func (p *Parser) Commands() []core.Command {
	out := make([]core.Command, len(p.rules))
	for i, r := range p.rules {
		out[i] = r.command
	}
	return out
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// Confidence scores an utterance: a base value, a bonus per distinct domain
// term, penalties for very short or very long input, clamped to [0.1, 1].
func Confidence(utterance string) float64 {
	text := normalize(utterance)
	words := strings.Fields(text)
	score := baseConfidence
	for _, term := range domainTerms {
		if containsWord(text, term) {
			score += termBonus
		}
	}
	switch {
	case len(words) < shortUtterance:
		score -= shortPenalty
	case len(words) > longUtterance:
		score -= longPenalty
	}
	score = math.Max(minConfidence, math.Min(maxConfidence, score))
	return math.Round(score*100) / 100
}

// containsWord matches term at word boundaries, allowing a plural "s".
func containsWord(text, term string) bool {
	for i := 0; ; {
		j := strings.Index(text[i:], term)
		if j < 0 {
			return false
		}
		start, end := i+j, i+j+len(term)
		if end < len(text) && text[end] == 's' {
			end++
		}
		if boundary(text, start-1) && boundary(text, end) {
			return true
		}
		i = start + 1
	}
}

func boundary(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return true
	}
	c := text[i]
	return !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-')
}

func alternation(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return strings.Join(quoted, "|")
}

// vocabularyExtractor attaches the first vocabulary entry found. Entries are
// matched longest first so "mid-century modern" wins over "modern".
func vocabularyExtractor(key string, vocab []string) extractor {
	return func(text string) map[string]string {
		params := map[string]string{}
		best, bestPos := "", -1
		for _, v := range vocab {
			pos := indexWord(text, v)
			if pos < 0 {
				continue
			}
			if bestPos < 0 || pos < bestPos || (pos == bestPos && len(v) > len(best)) {
				best, bestPos = v, pos
			}
		}
		if best != "" {
			if best == "grey" {
				best = "gray"
			}
			params[key] = best
		}
		return params
	}
}

func indexWord(text, word string) int {
	for i := 0; ; {
		j := strings.Index(text[i:], word)
		if j < 0 {
			return -1
		}
		start, end := i+j, i+j+len(word)
		if boundary(text, start-1) && boundary(text, end) {
			return start
		}
		i = start + 1
	}
}

func extractLocation(text string) map[string]string {
	return vocabularyExtractor(ParamLocation, Locations)(text)
}

// extractAmount attaches the first monetary-looking number, normalized to a
// plain decimal string ("$15k" becomes "15000").
func extractAmount(text string) map[string]string {
	params := map[string]string{}
	m := amountRe.FindStringSubmatch(text)
	if m == nil {
		return params
	}
	multiplier := 1.0
	if suffix := m[2] + m[4]; suffix == "k" || suffix == "thousand" {
		multiplier = 1000
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == '.' {
			return r
		}
		return -1
	}, m[0])
	v, err := strconv.ParseFloat(strings.TrimSuffix(digits, "."), 64)
	if err != nil {
		return params
	}
	params[ParamAmount] = strconv.FormatFloat(v*multiplier, 'f', -1, 64)
	return params
}
