package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"genstudio/internal/generation"
	"genstudio/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("genai: api key is required")

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client calls Gemini generateContent with a text part followed by image
// parts and reports image parts and block reasons back unchanged.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

var _ generation.PartsProvider = (*Client)(nil)

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
	FileData   *geminiFileData   `json:"fileData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiFileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates     []geminiCandidate `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// NewClient constructs a Gemini client. The default HTTP client has no
// timeout; cancellation comes from ctx only.
func NewClient(opts Options) (*Client, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash-image"
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
		logger:     infra.OrDiscard(opts.Logger),
	}, nil
}

// Model returns the configured Gemini model identifier.
func (c *Client) Model() string {
	return c.model
}

// GenerateContent sends one generateContent request for an image answer.
func (c *Client) GenerateContent(ctx context.Context, call generation.PartsCall) (generation.PartsResult, error) {
	if c.apiKey == "" {
		return generation.PartsResult{}, ErrMissingAPIKey
	}
	parts := []geminiPart{{Text: call.Text}}
	for _, img := range call.Images {
		part, err := imagePart(img.URL)
		if err != nil {
			return generation.PartsResult{}, err
		}
		parts = append(parts, part)
	}
	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: &geminiGenerationConfig{
			ResponseModalities: []string{"IMAGE", "TEXT"},
		},
	}

	var response geminiGenerateContentResponse
	if err := c.invokeGemini(ctx, fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.model)), payload, &response); err != nil {
		return generation.PartsResult{}, err
	}

	result := generation.PartsResult{BlockReason: response.PromptFeedback.BlockReason}
	var text []string
	for _, candidate := range response.Candidates {
		if candidate.FinishReason != "" {
			result.FinishReasons = append(result.FinishReasons, candidate.FinishReason)
		}
		for _, part := range candidate.Content.Parts {
			switch {
			case part.InlineData != nil && part.InlineData.Data != "":
				result.Images = append(result.Images, generation.PartImage{
					MimeType: part.InlineData.MimeType,
					Data:     part.InlineData.Data,
				})
			case part.FileData != nil && part.FileData.FileURI != "":
				result.Images = append(result.Images, generation.PartImage{
					MimeType: part.FileData.MimeType,
					FileURI:  part.FileData.FileURI,
				})
			case part.Text != "":
				text = append(text, part.Text)
			}
		}
	}
	result.Text = strings.Join(text, "\n")

	c.logger.Debug().
		Str("model", c.model).
		Int("images", len(result.Images)).
		Str("block_reason", result.BlockReason).
		Msg("genai: generateContent finished")
	return result, nil
}

// imagePart sends data URLs inline and anything else by reference.
func imagePart(ref string) (geminiPart, error) {
	ref = strings.TrimSpace(ref)
	if generation.IsDataURL(ref) {
		meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
		mime, enc, _ := strings.Cut(meta, ";")
		if !ok || enc != "base64" || payload == "" {
			return geminiPart{}, fmt.Errorf("genai: reference image is not a base64 data url")
		}
		return geminiPart{InlineData: &geminiInlineData{MimeType: mime, Data: payload}}, nil
	}
	return geminiPart{FileData: &geminiFileData{MimeType: mimeFromPath(ref), FileURI: ref}}, nil
}

func mimeFromPath(ref string) string {
	if u, err := url.Parse(ref); err == nil {
		ref = u.Path
	}
	switch strings.ToLower(path.Ext(ref)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}

func (c *Client) invokeGemini(ctx context.Context, apiPath string, payload any, out any) error {
	endpoint := strings.TrimRight(c.baseURL, "/") + apiPath
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	q := req.URL.Query()
	q.Set("key", c.apiKey)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		var apiErr geminiErrorResponse
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("gemini status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		if len(data) > 0 {
			return fmt.Errorf("gemini status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}
		return fmt.Errorf("gemini status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}
	return nil
}
