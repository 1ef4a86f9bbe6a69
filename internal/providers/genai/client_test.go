package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"genstudio/internal/domain"
	"genstudio/internal/generation"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func jsonResponse(status int, payload any) *http.Response {
	body, _ := json.Marshal(payload)
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(body)),
	}
}

func newTestClient(t *testing.T, fn roundTripFunc) *Client {
	t.Helper()
	client, err := NewClient(Options{
		APIKey:     "k",
		Model:      "gemini-2.5-flash-image",
		HTTPClient: &http.Client{Transport: fn},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestGenerateContentSendsInlineAndFileParts(t *testing.T) {
	var captured map[string]any
	var path, key string
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		path = req.URL.Path
		key = req.URL.Query().Get("key")
		body, _ := io.ReadAll(req.Body)
		_ = json.Unmarshal(body, &captured)
		return jsonResponse(http.StatusOK, map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{
					map[string]any{"text": "here you go"},
					map[string]any{"inlineData": map[string]any{"mimeType": "image/png", "data": "AAAA"}},
				}},
				"finishReason": "STOP",
			}},
		}), nil
	})

	res, err := client.GenerateContent(context.Background(), generation.PartsCall{
		Text: "merge these\n\nAspect ratio: 16:9.",
		Images: []generation.ImagePart{
			{URL: "data:image/jpeg;base64,/9j/AAA="},
			{URL: "https://cdn.example.com/b.webp?sig=1"},
		},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if path != "/v1beta/models/gemini-2.5-flash-image:generateContent" {
		t.Fatalf("path = %s", path)
	}
	if key != "k" {
		t.Fatalf("key = %q", key)
	}

	contents := captured["contents"].([]any)
	parts := contents[0].(map[string]any)["parts"].([]any)
	if len(parts) != 3 {
		t.Fatalf("parts len = %d, want 3", len(parts))
	}
	if text := parts[0].(map[string]any)["text"]; !strings.Contains(text.(string), "Aspect ratio: 16:9") {
		t.Fatalf("text part = %v", text)
	}
	inline := parts[1].(map[string]any)["inlineData"].(map[string]any)
	if inline["mimeType"] != "image/jpeg" || inline["data"] != "/9j/AAA=" {
		t.Fatalf("inline part = %v", inline)
	}
	file := parts[2].(map[string]any)["fileData"].(map[string]any)
	if file["fileUri"] != "https://cdn.example.com/b.webp?sig=1" || file["mimeType"] != "image/webp" {
		t.Fatalf("file part = %v", file)
	}
	cfg := captured["generationConfig"].(map[string]any)
	if mods := cfg["responseModalities"].([]any); len(mods) != 2 || mods[0] != "IMAGE" {
		t.Fatalf("responseModalities = %v", mods)
	}

	if len(res.Images) != 1 || res.Images[0].Data != "AAAA" {
		t.Fatalf("images = %+v", res.Images)
	}
	if res.Text != "here you go" {
		t.Fatalf("text = %q", res.Text)
	}
}

func TestGenerateContentBlockReasonIsModeration(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, map[string]any{
			"promptFeedback": map[string]any{"blockReason": "SAFETY"},
		}), nil
	})
	res, err := client.GenerateContent(context.Background(), generation.PartsCall{Text: "x"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	_, err = generation.NormalizeParts("genai", res)
	if !errors.Is(err, domain.ErrModerationBlocked) {
		t.Fatalf("expected moderation, got %v", err)
	}
}

func TestGenerateContentAPIError(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusTooManyRequests, map[string]any{
			"error": map[string]any{"code": 429, "message": "quota exceeded"},
		}), nil
	})
	_, err := client.GenerateContent(context.Background(), generation.PartsCall{Text: "x"})
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected quota error, got %v", err)
	}
}

func TestGenerateContentRequiresKey(t *testing.T) {
	client, _ := NewClient(Options{})
	if _, err := client.GenerateContent(context.Background(), generation.PartsCall{Text: "x"}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestImagePartRejectsNonBase64DataURL(t *testing.T) {
	if _, err := imagePart("data:image/png,raw"); err == nil {
		t.Fatal("expected error")
	}
}
