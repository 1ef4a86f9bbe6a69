// Package generation turns an image request into a provider call and the
// provider's answer into an Artifact descriptor.
package generation

import (
	"strings"

	"genstudio/internal/domain"
)

// Mode selects what the provider is asked to do.
type Mode string

const (
	ModeTextToImage    Mode = "text-to-image"
	ModeImageToImage   Mode = "image-to-image"
	ModeMultiReference Mode = "multi-reference"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeTextToImage, ModeImageToImage, ModeMultiReference:
		return true
	}
	return false
}

// Tier selects the provider family and model.
type Tier string

const (
	TierStandard Tier = "standard"
	TierSpecial  Tier = "special"
)

func (t Tier) Valid() bool {
	return t == TierStandard || t == TierSpecial
}

// Family groups providers that share a request shape.
type Family string

const (
	// FamilyReplicate takes images in named input slots.
	FamilyReplicate Family = "replicate"
	// FamilyGenAI takes images as inline content parts.
	FamilyGenAI Family = "genai"
)

// Family maps a tier onto its provider family.
func (t Tier) Family() Family {
	if t == TierSpecial {
		return FamilyGenAI
	}
	return FamilyReplicate
}

const (
	DefaultAspectRatio  = "1:1"
	MatchInputAspect    = "match_input_image"
	maxGenAIReferences  = 3
	replicateReferences = 2
)

// Request is an image generation request after decoding.
type Request struct {
	Mode            Mode     `json:"mode"`
	Tier            Tier     `json:"tier"`
	Prompt          string   `json:"prompt"`
	InputImage      string   `json:"input_image,omitempty"`
	ReferenceImages []string `json:"reference_images,omitempty"`
	AspectRatio     string   `json:"aspect_ratio,omitempty"`
}

// Normalize trims fields, drops blank references and defaults the tier.
func (r Request) Normalize() Request {
	r.Mode = Mode(strings.ToLower(strings.TrimSpace(string(r.Mode))))
	r.Tier = Tier(strings.ToLower(strings.TrimSpace(string(r.Tier))))
	if r.Tier == "" {
		r.Tier = TierStandard
	}
	r.Prompt = strings.TrimSpace(r.Prompt)
	r.InputImage = strings.TrimSpace(r.InputImage)
	r.AspectRatio = strings.TrimSpace(r.AspectRatio)
	refs := make([]string, 0, len(r.ReferenceImages))
	for _, ref := range r.ReferenceImages {
		if ref = strings.TrimSpace(ref); ref != "" {
			refs = append(refs, ref)
		}
	}
	r.ReferenceImages = refs
	return r
}

// Validate enforces the mode table. It must pass before credits are reserved.
func (r Request) Validate() error {
	if !r.Mode.Valid() {
		return domain.Invalid("unsupported mode %q", r.Mode)
	}
	if !r.Tier.Valid() {
		return domain.Invalid("unsupported tier %q", r.Tier)
	}
	if r.Prompt == "" {
		return domain.Invalid("prompt is required")
	}
	family := r.Tier.Family()

	switch r.Mode {
	case ModeImageToImage:
		if family != FamilyReplicate {
			return domain.Invalid("image-to-image is not available on the %s tier", r.Tier)
		}
		if r.InputImage == "" {
			return domain.Invalid("input_image is required for image-to-image")
		}
	case ModeMultiReference:
		n := len(r.ReferenceImages)
		if n == 0 {
			return domain.Invalid("reference_images is required for multi-reference")
		}
		switch family {
		case FamilyReplicate:
			if n != replicateReferences {
				return domain.Invalid("multi-reference on the %s tier needs exactly %d images, got %d", r.Tier, replicateReferences, n)
			}
		case FamilyGenAI:
			if n > maxGenAIReferences {
				return domain.Invalid("multi-reference on the %s tier accepts at most %d images, got %d", r.Tier, maxGenAIReferences, n)
			}
		}
	}
	return nil
}

// Payload converts the request into the form stored on the job record.
func (r Request) Payload() domain.JobPayload {
	return domain.JobPayload{
		Prompt:          r.Prompt,
		Mode:            string(r.Mode),
		Tier:            string(r.Tier),
		AspectRatio:     r.AspectRatio,
		InputImage:      r.InputImage,
		ReferenceImages: r.ReferenceImages,
	}
}
