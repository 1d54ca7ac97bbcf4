// Package parser turns free-form task descriptions into ordered action
// plans. Recognition is deliberately shallow: a prioritized table of
// keyword/phrase rules, evaluated deterministically, with no language
// understanding, no randomness, and no dependence on external state.
// Identical input always yields a structurally identical plan.
package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/xkilldash9x/deskpilot/api/schemas"
)

// Parse-time failures. Both are surfaced verbatim to the caller and never
// reach the device control surfaces.
var (
	// ErrUnrecognizedTask means no rule matched some portion of the input.
	// The wrapped message names the unrecognized segment.
	ErrUnrecognizedTask = errors.New("unrecognized task")
	// ErrAmbiguousTask means two or more rules of equal priority fully
	// covered the same segment.
	ErrAmbiguousTask = errors.New("ambiguous task")
)

// rule pairs a recognizer with a builder. Rules with a higher priority are
// considered first; within a tier, a segment that two distinct rules fully
// cover is ambiguous rather than first-wins, so broadening one rule can
// never silently shadow another.
type rule struct {
	name     string
	priority int
	pattern  *regexp.Regexp
	build    func(m []string) (schemas.ActionPlan, error)
}

// Parser evaluates the rule table. It is pure: safe for concurrent use.
type Parser struct {
	rules []rule
}

// New creates a parser with the default rule table.
func New() *Parser {
	return &Parser{rules: defaultRules()}
}

// connectorPattern splits a task description into sequential segments. A
// bare " and " is deliberately not a connector: it appears inside literal
// text ("type ham and eggs") far too often, so only the compound rules treat
// it as a joiner.
var connectorPattern = regexp.MustCompile(`(?i)\s*(?:;\s*|,\s*then\s+|\s+and\s+then\s+|\s+then\s+)`)

// whitespacePattern collapses runs of whitespace during normalization.
var whitespacePattern = regexp.MustCompile(`\s+`)

// Parse derives an ordered plan from the task text. Segments split on
// sequence connectors parse independently and concatenate in order; a plan
// is returned only when every segment is recognized.
func (p *Parser) Parse(text string) (schemas.ActionPlan, error) {
	normalized := whitespacePattern.ReplaceAllString(strings.TrimSpace(text), " ")
	if normalized == "" {
		return nil, fmt.Errorf("%w: empty task description", ErrUnrecognizedTask)
	}

	var plan schemas.ActionPlan
	for _, segment := range connectorPattern.Split(normalized, -1) {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		steps, err := p.parseSegment(segment)
		if err != nil {
			return nil, err
		}
		plan = append(plan, steps...)
	}
	if len(plan) == 0 {
		return nil, fmt.Errorf("%w: no actionable segment in %q", ErrUnrecognizedTask, text)
	}
	return plan, nil
}

// parseSegment matches one segment against the table. The first fully
// covering rule at the highest-priority tier wins; two winners in the same
// tier make the segment ambiguous.
func (p *Parser) parseSegment(segment string) (schemas.ActionPlan, error) {
	var (
		winner      *rule
		winnerMatch []string
		conflict    *rule
	)
	for i := range p.rules {
		r := &p.rules[i]
		if winner != nil && r.priority < winner.priority {
			// Rules are sorted by priority; nothing below the winning tier
			// can matter anymore.
			break
		}
		m := r.pattern.FindStringSubmatch(segment)
		if m == nil || m[0] != segment {
			continue
		}
		if winner == nil {
			winner, winnerMatch = r, m
			continue
		}
		if r.priority == winner.priority {
			conflict = r
			break
		}
	}

	if winner == nil {
		return nil, fmt.Errorf("%w: no rule matches segment %q", ErrUnrecognizedTask, segment)
	}
	if conflict != nil {
		return nil, fmt.Errorf("%w: segment %q matches both %q and %q", ErrAmbiguousTask, segment, winner.name, conflict.name)
	}

	steps, err := winner.build(winnerMatch)
	if err != nil {
		return nil, fmt.Errorf("%w: segment %q: %v", ErrUnrecognizedTask, segment, err)
	}
	return steps, nil
}
