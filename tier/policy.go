package tier

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Default gateway model identifiers.
// Free models carry the ":free" suffix and are aggressively rate limited
// upstream, which is why the free tier walks a chain of them.
const (
	ModelLlama33Free  = "meta-llama/llama-3.3-70b-instruct:free"
	ModelGemini2Free  = "google/gemini-2.0-flash-exp:free"
	ModelMistral7Free = "mistralai/mistral-7b-instruct:free"
	ModelQwen25Free   = "qwen/qwen-2.5-72b-instruct:free"

	ModelGPT4oMini    = "openai/gpt-4o-mini"
	ModelClaudeSonnet = "anthropic/claude-3.5-sonnet"
	ModelGPT4o        = "openai/gpt-4o"
)

// Entry is the policy for a single tier.
type Entry struct {
	// Model is the default model for the tier.
	Model string `yaml:"model"`
	// Fallback is the ordered list of models tried for the free tier.
	Fallback []string `yaml:"fallback,omitempty"`
	// Price is informational metadata consumed by the external payment gate.
	Price string `yaml:"price,omitempty"`
}

// Policy is an immutable tier table.
type Policy struct {
	entries map[Tier]Entry
}

// DefaultPolicy returns the built-in tier table.
func DefaultPolicy() *Policy {
	p, err := NewPolicy(map[Tier]Entry{
		Free: {
			Model: ModelLlama33Free,
			Fallback: []string{
				ModelLlama33Free,
				ModelGemini2Free,
				ModelMistral7Free,
				ModelQwen25Free,
			},
			Price: "0",
		},
		Premium:      {Model: ModelGPT4oMini, Price: "0.001"},
		UltraPremium: {Model: ModelClaudeSonnet, Price: "0.005"},
		Enterprise:   {Model: ModelGPT4o, Price: "0.01"},
	})
	if err != nil {
		panic(err)
	}
	return p
}

// NewPolicy validates entries and builds a Policy from a copy of them.
func NewPolicy(entries map[Tier]Entry) (*Policy, error) {
	p := &Policy{entries: make(map[Tier]Entry, len(All))}
	for _, t := range All {
		e, ok := entries[t]
		if !ok {
			return nil, fmt.Errorf("tier %q: missing entry", t)
		}
		if e.Model == "" {
			return nil, fmt.Errorf("tier %q: default model is required", t)
		}
		if t != Free && len(e.Fallback) > 0 {
			return nil, fmt.Errorf("tier %q: only the free tier may have a fallback chain", t)
		}
		if t == Free && len(e.Fallback) == 0 {
			return nil, fmt.Errorf("tier %q: fallback chain must not be empty", t)
		}
		e.Fallback = slices.Clone(e.Fallback)
		p.entries[t] = e
	}
	for t := range entries {
		if !t.Valid() {
			return nil, fmt.Errorf("unknown tier %q", t)
		}
	}
	return p, nil
}

// policyFile is the on-disk shape of a tier policy override.
type policyFile struct {
	Tiers map[Tier]Entry `yaml:"tiers"`
}

// LoadPolicy reads a YAML tier table:
//
//	tiers:
//	  free:
//	    model: meta-llama/llama-3.3-70b-instruct:free
//	    fallback: [meta-llama/llama-3.3-70b-instruct:free, google/gemini-2.0-flash-exp:free]
//	  premium:
//	    model: openai/gpt-4o-mini
//
// Tiers missing from the file keep their built-in entries.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tier policy: %w", err)
	}
	var f policyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse tier policy: %w", err)
	}

	merged := DefaultPolicy().Entries()
	for t, e := range f.Tiers {
		merged[t] = e
	}
	p, err := NewPolicy(merged)
	if err != nil {
		return nil, fmt.Errorf("tier policy %s: %w", path, err)
	}
	return p, nil
}

// resolve returns the entry for a raw tier identifier, falling back to the
// free tier for unknown values.
func (p *Policy) resolve(raw string) (Tier, Entry) {
	t, _ := Parse(raw)
	return t, p.entries[t]
}

// Resolve returns the normalized tier for a raw identifier.
// Unknown or empty values resolve to [Free].
func (p *Policy) Resolve(raw string) Tier {
	t, _ := p.resolve(raw)
	return t
}

// ModelFor returns the default model for a tier.
func (p *Policy) ModelFor(raw string) string {
	_, e := p.resolve(raw)
	return e.Model
}

// FallbackChain returns the ordered fallback models for a tier.
// It is empty for every tier except free.
func (p *Policy) FallbackChain(raw string) []string {
	_, e := p.resolve(raw)
	return slices.Clone(e.Fallback)
}

// Candidates returns the models a fallback-capable transport tries, in order:
// the fallback chain for free, the single default model otherwise.
func (p *Policy) Candidates(raw string) []string {
	if chain := p.FallbackChain(raw); len(chain) > 0 {
		return chain
	}
	return []string{p.ModelFor(raw)}
}

// Price returns the configured price metadata for a tier.
func (p *Policy) Price(raw string) string {
	_, e := p.resolve(raw)
	return e.Price
}

// Entries returns a copy of the full tier table.
func (p *Policy) Entries() map[Tier]Entry {
	out := make(map[Tier]Entry, len(p.entries))
	for t, e := range p.entries {
		e.Fallback = slices.Clone(e.Fallback)
		out[t] = e
	}
	return out
}
