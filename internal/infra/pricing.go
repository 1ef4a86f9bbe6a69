package infra

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed pricing.yaml
var defaultPricing []byte

// Pricing is the credit cost table for generation requests.
type Pricing struct {
	TextLetter int64                       `yaml:"text_letter"`
	Image      map[string]map[string]int64 `yaml:"image"`
}

// LoadPricing returns the embedded table, or the one at path when path is set.
func LoadPricing(path string) (*Pricing, error) {
	raw := defaultPricing
	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read pricing file: %w", err)
		}
		raw = data
	}
	return ParsePricing(raw)
}

// ParsePricing decodes and checks a YAML pricing table.
func ParsePricing(raw []byte) (*Pricing, error) {
	var p Pricing
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode pricing: %w", err)
	}
	if p.TextLetter <= 0 {
		return nil, fmt.Errorf("pricing: text_letter must be positive")
	}
	for mode, tiers := range p.Image {
		for tier, cost := range tiers {
			if cost <= 0 {
				return nil, fmt.Errorf("pricing: image.%s.%s must be positive", mode, tier)
			}
		}
	}
	return &p, nil
}

// ImageCost returns the credit cost for an image request.
func (p *Pricing) ImageCost(mode, tier string) (int64, error) {
	tiers, ok := p.Image[mode]
	if !ok {
		return 0, fmt.Errorf("pricing: no entry for mode %q", mode)
	}
	cost, ok := tiers[tier]
	if !ok {
		return 0, fmt.Errorf("pricing: no entry for mode %q tier %q", mode, tier)
	}
	return cost, nil
}
