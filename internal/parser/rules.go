package parser

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/xkilldash9x/deskpilot/api/schemas"
)

func intPtr(v int) *int { return &v }

// unquote strips one layer of matching quotes from a literal argument, so
// `type "hello world"` and `type hello world` produce the same step.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// keySplitPattern separates hotkey chords written as ctrl+c, ctrl c, or
// ctrl, c.
var keySplitPattern = regexp.MustCompile(`[+,\s]+`)

func splitKeys(s string) []string {
	parts := keySplitPattern.Split(strings.TrimSpace(s), -1)
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		keys = append(keys, strings.ToLower(p))
	}
	return keys
}

// parseDuration converts a wait amount to milliseconds. A bare number reads
// as seconds, matching how people phrase waits ("wait 2"); explicit units
// override.
func parseDuration(amount, unit string) (int, error) {
	n, err := strconv.Atoi(amount)
	if err != nil {
		return 0, fmt.Errorf("invalid wait amount %q", amount)
	}
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "ms", "msec", "msecs", "millisecond", "milliseconds":
		return n, nil
	case "", "s", "sec", "secs", "second", "seconds":
		return n * 1000, nil
	default:
		return 0, fmt.Errorf("unknown wait unit %q", unit)
	}
}

func single(step schemas.ActionStep) (schemas.ActionPlan, error) {
	return schemas.ActionPlan{step}, nil
}

// defaultRules is the built-in recognition table. Compound rules sit in a
// higher tier than the single-verb rules they overlap with, so "open X and
// type Y" is never mis-split. The returned slice is sorted by descending
// priority, which parseSegment relies on.
func defaultRules() []rule {
	rules := []rule{
		{
			// "open notepad and type hello world" keeps the bare "and"
			// joiner that segment splitting deliberately ignores.
			name:     "open-and-type",
			priority: 100,
			pattern:  regexp.MustCompile(`(?i)^open\s+(?:the\s+)?(?:app(?:lication)?\s+)?(.+?)\s+and\s+type\s+(.+)$`),
			build: func(m []string) (schemas.ActionPlan, error) {
				return schemas.ActionPlan{
					{Kind: schemas.StepOpenApp, App: unquote(m[1])},
					{Kind: schemas.StepTypeText, Text: unquote(m[2])},
				}, nil
			},
		},
		{
			name:     "open-app",
			priority: 50,
			pattern:  regexp.MustCompile(`(?i)^(?:open|launch|start)\s+(?:the\s+)?(?:app(?:lication)?\s+)?(.+)$`),
			build: func(m []string) (schemas.ActionPlan, error) {
				return single(schemas.ActionStep{Kind: schemas.StepOpenApp, App: unquote(m[1])})
			},
		},
		{
			name:     "type-text",
			priority: 50,
			pattern:  regexp.MustCompile(`(?i)^(?:type|write|enter)\s+(.+)$`),
			build: func(m []string) (schemas.ActionPlan, error) {
				return single(schemas.ActionStep{Kind: schemas.StepTypeText, Text: unquote(m[1])})
			},
		},
		{
			name:     "hotkey",
			priority: 50,
			pattern:  regexp.MustCompile(`(?i)^(?:press|hit|hotkey)\s+([a-z0-9+\-, ]+)$`),
			build: func(m []string) (schemas.ActionPlan, error) {
				keys := splitKeys(m[1])
				if len(keys) == 0 {
					return nil, fmt.Errorf("no keys in chord")
				}
				return single(schemas.ActionStep{Kind: schemas.StepHotkey, Keys: keys})
			},
		},
		{
			name:     "move-mouse",
			priority: 50,
			pattern:  regexp.MustCompile(`(?i)^move\s+(?:(?:the\s+)?(?:mouse|cursor|pointer)\s+)?to\s+\(?(\d+)\s*,\s*(\d+)\)?$`),
			build: func(m []string) (schemas.ActionPlan, error) {
				x, _ := strconv.Atoi(m[1])
				y, _ := strconv.Atoi(m[2])
				return single(schemas.ActionStep{Kind: schemas.StepMoveMouse, X: intPtr(x), Y: intPtr(y)})
			},
		},
		{
			name:     "click",
			priority: 50,
			pattern:  regexp.MustCompile(`(?i)^(?:(left|right|middle)[-\s])?click(?:\s+(?:at|on)\s+\(?(\d+)\s*,\s*(\d+)\)?)?(?:\s+with\s+(?:the\s+)?(left|right|middle)\s+(?:mouse\s+)?button)?$`),
			build: func(m []string) (schemas.ActionPlan, error) {
				step := schemas.ActionStep{Kind: schemas.StepClick, Button: schemas.ButtonLeft}
				if m[1] != "" {
					step.Button = schemas.MouseButton(strings.ToLower(m[1]))
				}
				if m[4] != "" {
					step.Button = schemas.MouseButton(strings.ToLower(m[4]))
				}
				if m[2] != "" {
					x, _ := strconv.Atoi(m[2])
					y, _ := strconv.Atoi(m[3])
					step.X, step.Y = intPtr(x), intPtr(y)
				}
				return single(step)
			},
		},
		{
			name:     "capture-screen",
			priority: 50,
			pattern:  regexp.MustCompile(`(?i)^(?:(?:capture|grab)\s+(?:the\s+)?screen(?:shot)?|take\s+(?:a\s+)?screenshot)$`),
			build: func(m []string) (schemas.ActionPlan, error) {
				return single(schemas.ActionStep{Kind: schemas.StepCaptureScreen})
			},
		},
		{
			name:     "read-screen-text",
			priority: 50,
			pattern:  regexp.MustCompile(`(?i)^(?:(?:read|extract)\s+(?:the\s+)?(?:screen\s+text|text\s+(?:on|from)\s+(?:the\s+)?screen|screen)|what(?:'s|\s+is)\s+on\s+(?:the\s+)?screen\??)$`),
			build: func(m []string) (schemas.ActionPlan, error) {
				return single(schemas.ActionStep{Kind: schemas.StepReadScreenText})
			},
		},
		{
			name:     "wait",
			priority: 50,
			pattern:  regexp.MustCompile(`(?i)^(?:wait|pause|sleep)(?:\s+for)?\s+(\d+)\s*(ms|msecs?|milliseconds?|s|secs?|seconds?)?$`),
			build: func(m []string) (schemas.ActionPlan, error) {
				ms, err := parseDuration(m[1], m[2])
				if err != nil {
					return nil, err
				}
				return single(schemas.ActionStep{Kind: schemas.StepWait, DurationMs: ms})
			},
		},
	}
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].priority > rules[j].priority })
	return rules
}
