package guardrails

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Result holds the outcome of a check on one query.
type Result struct {
	Allowed bool               `json:"allowed"`
	Flags   []string           `json:"flags,omitempty"`
	Scores  map[string]float64 `json:"scores,omitempty"`
	Reason  string             `json:"reason,omitempty"`
}

// Guardrail screens a question before it reaches retrieval and generation.
type Guardrail interface {
	Check(ctx context.Context, text string) (*Result, error)
	Name() string
}

// Chain runs guardrails in order and merges their results.
type Chain struct {
	guards []Guardrail
}

func NewChain(guards ...Guardrail) *Chain {
	return &Chain{guards: guards}
}

// Default screens query length and known injection phrasing.
func Default(maxLength int) *Chain {
	return NewChain(NewInputLengthGuard(maxLength), NewInjectionDetector(0.7))
}

func (c *Chain) Check(ctx context.Context, text string) (*Result, error) {
	combined := &Result{
		Allowed: true,
		Scores:  make(map[string]float64),
	}

	for _, g := range c.guards {
		result, err := g.Check(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("guardrail %s: %w", g.Name(), err)
		}
		if !result.Allowed && combined.Allowed {
			combined.Allowed = false
			combined.Reason = fmt.Sprintf("blocked by %s: %s", g.Name(), result.Reason)
		}
		combined.Flags = append(combined.Flags, result.Flags...)
		for k, v := range result.Scores {
			combined.Scores[k] = v
		}
	}

	return combined, nil
}

// InputLengthGuard rejects queries longer than maxLength runes.
type InputLengthGuard struct {
	maxLength int
}

func NewInputLengthGuard(maxLen int) *InputLengthGuard {
	return &InputLengthGuard{maxLength: maxLen}
}

func (g *InputLengthGuard) Name() string { return "input_length" }

func (g *InputLengthGuard) Check(_ context.Context, text string) (*Result, error) {
	if g.maxLength > 0 && utf8.RuneCountInString(text) > g.maxLength {
		return &Result{
			Allowed: false,
			Reason:  fmt.Sprintf("input exceeds %d characters", g.maxLength),
			Flags:   []string{"input_too_long"},
		}, nil
	}
	return &Result{Allowed: true}, nil
}

var injectionPatterns = []struct {
	pattern string
	weight  float64
	flag    string
}{
	{"ignore previous instructions", 0.9, "override_attempt"},
	{"ignore all previous", 0.9, "override_attempt"},
	{"disregard your instructions", 0.9, "override_attempt"},
	{"forget your instructions", 0.85, "override_attempt"},
	{"you are now", 0.7, "role_hijack"},
	{"pretend you are", 0.7, "role_hijack"},
	{"act as if you", 0.6, "role_hijack"},
	{"system prompt:", 0.8, "system_leak"},
	{"reveal your system", 0.8, "system_leak"},
	{"show me your prompt", 0.8, "system_leak"},
	{"what are your instructions", 0.7, "system_leak"},
	{"ignore safety", 0.9, "safety_bypass"},
	{"bypass your filters", 0.9, "safety_bypass"},
	{"jailbreak", 0.9, "jailbreak"},
	{"do anything now", 0.85, "jailbreak"},
	{"</system>", 0.8, "tag_injection"},
	{"<system>", 0.8, "tag_injection"},
	{"[system]", 0.7, "tag_injection"},
	{"```system", 0.7, "format_injection"},
}

// InjectionDetector flags phrasing that tries to override the answer prompt.
// A query is blocked when its highest pattern weight reaches threshold.
type InjectionDetector struct {
	threshold float64
}

func NewInjectionDetector(threshold float64) *InjectionDetector {
	return &InjectionDetector{threshold: threshold}
}

func (d *InjectionDetector) Name() string { return "prompt_injection" }

func (d *InjectionDetector) Check(_ context.Context, text string) (*Result, error) {
	lower := strings.ToLower(text)
	var flags []string
	score := 0.0

	for _, p := range injectionPatterns {
		if strings.Contains(lower, p.pattern) {
			score = max(score, p.weight)
			flags = append(flags, p.flag)
		}
	}

	result := &Result{
		Allowed: score < d.threshold,
		Flags:   flags,
		Scores:  map[string]float64{"injection_score": score},
	}
	if !result.Allowed {
		result.Reason = "potential prompt injection detected"
	}
	return result, nil
}
