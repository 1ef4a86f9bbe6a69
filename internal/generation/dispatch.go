package generation

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"genstudio/internal/domain"
)

// Call is a provider-specific request. It is either a SlotCall or a PartsCall.
type Call interface {
	family() Family
}

// SlotCall addresses a model that takes images in named input fields.
type SlotCall struct {
	Model string
	Input map[string]any
}

func (SlotCall) family() Family { return FamilyReplicate }

// ImagePart is one image handed to a parts-based provider, either as a data URL
// (sent inline) or as a remote URL (sent by reference).
type ImagePart struct {
	URL string
}

// PartsCall addresses a model that takes a text part followed by image parts.
type PartsCall struct {
	Text   string
	Images []ImagePart
}

func (PartsCall) family() Family { return FamilyGenAI }

// Raw is a provider's unnormalized answer. It is either a SlotResult or a
// PartsResult.
type Raw interface {
	family() Family
}

// SlotResult is the raw answer of a slot-based provider. Exactly one of Output
// or Stream carries the result when Status is not failed.
type SlotResult struct {
	Status      string
	Output      json.RawMessage
	Error       string
	Stream      io.Reader
	ContentType string
}

func (SlotResult) family() Family { return FamilyReplicate }

// PartImage is an image part of a parts-based answer.
type PartImage struct {
	MimeType string
	Data     string // base64
	FileURI  string
}

// PartsResult is the raw answer of a parts-based provider.
type PartsResult struct {
	BlockReason   string
	FinishReasons []string
	Images        []PartImage
	Text          string
}

func (PartsResult) family() Family { return FamilyGenAI }

// ModelSet names the models each builder targets.
type ModelSet struct {
	Replicate      string
	ReplicateMulti string
}

type (
	builder    func(req Request, models ModelSet) Call
	normalizer func(provider string, raw Raw) (Artifact, error)
)

type route struct {
	build     builder
	normalize normalizer
}

type routeKey struct {
	mode   Mode
	family Family
}

// routes holds every supported (mode, family) pair. A missing pair is a
// validation error, never a fallback.
var routes = map[routeKey]route{
	{ModeTextToImage, FamilyReplicate}:    {build: buildReplicateText, normalize: normalizeSlotRaw},
	{ModeImageToImage, FamilyReplicate}:   {build: buildReplicateEdit, normalize: normalizeSlotRaw},
	{ModeMultiReference, FamilyReplicate}: {build: buildReplicateMulti, normalize: normalizeSlotRaw},
	{ModeTextToImage, FamilyGenAI}:        {build: buildGenAIText, normalize: normalizePartsRaw},
	{ModeMultiReference, FamilyGenAI}:     {build: buildGenAIMulti, normalize: normalizePartsRaw},
}

func lookup(req Request) (route, error) {
	r, ok := routes[routeKey{req.Mode, req.Tier.Family()}]
	if !ok {
		return route{}, domain.Invalid("mode %s is not available on the %s tier", req.Mode, req.Tier)
	}
	return r, nil
}

// Build shapes the provider call for a validated request.
func Build(req Request, models ModelSet) (Call, error) {
	r, err := lookup(req)
	if err != nil {
		return nil, err
	}
	return r.build(req, models), nil
}

func normalizeSlotRaw(provider string, raw Raw) (Artifact, error) {
	res, ok := raw.(SlotResult)
	if !ok {
		return Artifact{}, fmt.Errorf("%w: %s answered with %T", domain.ErrProviderFailure, provider, raw)
	}
	return NormalizeSlot(provider, res)
}

func normalizePartsRaw(provider string, raw Raw) (Artifact, error) {
	res, ok := raw.(PartsResult)
	if !ok {
		return Artifact{}, fmt.Errorf("%w: %s answered with %T", domain.ErrProviderFailure, provider, raw)
	}
	return NormalizeParts(provider, res)
}

func aspectOrDefault(aspect string) string {
	if aspect == "" {
		return DefaultAspectRatio
	}
	return aspect
}

func buildReplicateText(req Request, models ModelSet) Call {
	return SlotCall{
		Model: models.Replicate,
		Input: map[string]any{
			"prompt":        req.Prompt,
			"aspect_ratio":  aspectOrDefault(req.AspectRatio),
			"output_format": "png",
		},
	}
}

func buildReplicateEdit(req Request, models ModelSet) Call {
	return SlotCall{
		Model: models.Replicate,
		Input: map[string]any{
			"prompt":        req.Prompt,
			"input_image":   req.InputImage,
			"aspect_ratio":  MatchInputAspect,
			"output_format": "png",
		},
	}
}

func buildReplicateMulti(req Request, models ModelSet) Call {
	return SlotCall{
		Model: models.ReplicateMulti,
		Input: map[string]any{
			"prompt":        req.Prompt,
			"input_image_1": req.ReferenceImages[0],
			"input_image_2": req.ReferenceImages[1],
			"aspect_ratio":  aspectOrDefault(req.AspectRatio),
			"output_format": "png",
		},
	}
}

func buildGenAIText(req Request, _ ModelSet) Call {
	return PartsCall{Text: enhancePrompt(req.Prompt, req.AspectRatio)}
}

func buildGenAIMulti(req Request, _ ModelSet) Call {
	images := make([]ImagePart, 0, len(req.ReferenceImages))
	for _, ref := range req.ReferenceImages {
		images = append(images, ImagePart{URL: ref})
	}
	return PartsCall{Text: enhancePrompt(req.Prompt, req.AspectRatio), Images: images}
}

// enhancePrompt carries the aspect ratio in the prompt text for providers that
// have no aspect ratio parameter.
func enhancePrompt(prompt, aspect string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(prompt))
	b.WriteString("\n\nAspect ratio: ")
	b.WriteString(aspectOrDefault(aspect))
	b.WriteString(".")
	return b.String()
}

var moderationMarkers = []string{"e005", "flagged as sensitive", "nsfw"}

// NormalizeSlot maps a slot-based answer onto an Artifact.
func NormalizeSlot(provider string, res SlotResult) (Artifact, error) {
	switch strings.ToLower(res.Status) {
	case "failed", "canceled":
		lower := strings.ToLower(res.Error)
		for _, marker := range moderationMarkers {
			if strings.Contains(lower, marker) {
				return Artifact{}, &domain.ModerationError{Provider: provider, Reason: res.Error}
			}
		}
		return Artifact{}, fmt.Errorf("%w: %s prediction %s: %s", domain.ErrProviderFailure, provider, res.Status, res.Error)
	}
	if res.Stream != nil {
		return StreamArtifact(res.Stream, res.ContentType), nil
	}
	if len(res.Output) == 0 || string(res.Output) == "null" {
		return Artifact{}, fmt.Errorf("%w: %s returned no output", domain.ErrProviderFailure, provider)
	}

	var single string
	if err := json.Unmarshal(res.Output, &single); err == nil {
		return urlArtifact(provider, single)
	}
	var many []string
	if err := json.Unmarshal(res.Output, &many); err == nil {
		if len(many) == 0 {
			return Artifact{}, fmt.Errorf("%w: %s returned an empty output list", domain.ErrProviderFailure, provider)
		}
		return urlArtifact(provider, many[0])
	}
	return Artifact{}, fmt.Errorf("%w: %s returned an unusable output shape", domain.ErrProviderFailure, provider)
}

func urlArtifact(provider, s string) (Artifact, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return Artifact{}, fmt.Errorf("%w: %s returned an empty url", domain.ErrProviderFailure, provider)
	case IsDataURL(s):
		return InlineArtifact(s), nil
	default:
		return RemoteArtifact(s), nil
	}
}

var blockingFinishReasons = map[string]bool{
	"SAFETY":             true,
	"PROHIBITED_CONTENT": true,
	"IMAGE_SAFETY":       true,
	"BLOCKLIST":          true,
}

// NormalizeParts maps a parts-based answer onto an Artifact.
func NormalizeParts(provider string, res PartsResult) (Artifact, error) {
	if res.BlockReason != "" {
		return Artifact{}, &domain.ModerationError{Provider: provider, Reason: res.BlockReason}
	}
	for _, reason := range res.FinishReasons {
		if blockingFinishReasons[strings.ToUpper(reason)] {
			return Artifact{}, &domain.ModerationError{Provider: provider, Reason: reason}
		}
	}
	for _, img := range res.Images {
		if img.Data != "" {
			return InlineArtifact(DataURL(img.MimeType, img.Data)), nil
		}
		if uri := strings.TrimSpace(img.FileURI); uri != "" {
			return RemoteArtifact(uri), nil
		}
	}
	return Artifact{}, fmt.Errorf("%w: %s returned no image", domain.ErrProviderFailure, provider)
}
