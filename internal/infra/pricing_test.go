package infra

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPricingDefaults(t *testing.T) {
	p, err := LoadPricing("")
	if err != nil {
		t.Fatalf("LoadPricing error: %v", err)
	}
	if p.TextLetter != 1 {
		t.Fatalf("TextLetter = %d, want 1", p.TextLetter)
	}
	cost, err := p.ImageCost("multi-reference", "special")
	if err != nil {
		t.Fatalf("ImageCost error: %v", err)
	}
	if cost != 10 {
		t.Fatalf("multi-reference/special = %d, want 10", cost)
	}
	if _, err := p.ImageCost("image-to-image", "special"); err == nil {
		t.Fatalf("expected missing entry for image-to-image/special")
	}
}

func TestLoadPricingFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	body := "text_letter: 2\nimage:\n  text-to-image:\n    standard: 3\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	p, err := LoadPricing(path)
	if err != nil {
		t.Fatalf("LoadPricing error: %v", err)
	}
	if p.TextLetter != 2 {
		t.Fatalf("TextLetter = %d", p.TextLetter)
	}
	if cost, _ := p.ImageCost("text-to-image", "standard"); cost != 3 {
		t.Fatalf("text-to-image/standard = %d", cost)
	}
}

func TestParsePricingRejectsNonPositive(t *testing.T) {
	if _, err := ParsePricing([]byte("text_letter: 0\n")); err == nil {
		t.Fatalf("expected error for zero text_letter")
	}
	if _, err := ParsePricing([]byte("text_letter: 1\nimage:\n  text-to-image:\n    standard: -1\n")); err == nil {
		t.Fatalf("expected error for negative image cost")
	}
}
