package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"genstudio/internal/domain"
	"genstudio/internal/generation"
)

func TestPredictSendsNamedSlots(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	client := newTestClient(t, transport)
	transport.setJSONResponse("/v1/models/black-forest-labs/flux-kontext-pro/predictions", map[string]any{
		"id":     "p1",
		"status": "succeeded",
		"output": "https://replicate.delivery/out.png",
	})

	res, err := client.Predict(context.Background(), generation.SlotCall{
		Model: "black-forest-labs/flux-kontext-pro",
		Input: map[string]any{
			"prompt":       "make it blue",
			"input_image":  "https://cdn.example.com/in.png",
			"aspect_ratio": "match_input_image",
		},
	})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if res.Status != "succeeded" {
		t.Fatalf("status = %q, want succeeded", res.Status)
	}

	if got := transport.lastHeader.Get("Prefer"); got != "wait" {
		t.Fatalf("Prefer header = %q, want wait", got)
	}
	if got := transport.lastHeader.Get("Authorization"); got != "Bearer test" {
		t.Fatalf("Authorization header = %q", got)
	}
	var payload map[string]any
	if err := json.Unmarshal(transport.lastBody, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	input := payload["input"].(map[string]any)
	if input["input_image"] != "https://cdn.example.com/in.png" {
		t.Fatalf("input_image = %v", input["input_image"])
	}
	if input["aspect_ratio"] != "match_input_image" {
		t.Fatalf("aspect_ratio = %v", input["aspect_ratio"])
	}

	art, err := generation.NormalizeSlot("replicate", res)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if art.Kind != generation.ArtifactRemote || art.URL != "https://replicate.delivery/out.png" {
		t.Fatalf("unexpected artifact %+v", art)
	}
}

func TestPredictPollsUntilTerminal(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	client := newTestClient(t, transport)
	transport.setJSONResponse("/v1/models/o/m/predictions", map[string]any{
		"id":     "p2",
		"status": "processing",
		"urls":   map[string]any{"get": "https://api.replicate.com/v1/predictions/p2"},
	})
	transport.setJSONResponse("https://api.replicate.com/v1/predictions/p2", map[string]any{
		"id":     "p2",
		"status": "failed",
		"error":  "E005: The output was flagged as sensitive",
	})

	res, err := client.Predict(context.Background(), generation.SlotCall{Model: "o/m", Input: map[string]any{"prompt": "x"}})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if res.Status != "failed" {
		t.Fatalf("status = %q, want failed", res.Status)
	}
	_, err = generation.NormalizeSlot("replicate", res)
	if !errors.Is(err, domain.ErrModerationBlocked) {
		t.Fatalf("expected moderation error, got %v", err)
	}
}

func TestPredictBinaryBodyIsStream(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	client := newTestClient(t, transport)
	transport.responses["/v1/models/o/m/predictions"] = responseStub{
		status: http.StatusOK,
		header: http.Header{"Content-Type": []string{"image/png"}},
		body:   []byte{0x89, 'P', 'N', 'G'},
	}

	res, err := client.Predict(context.Background(), generation.SlotCall{Model: "o/m", Input: map[string]any{"prompt": "x"}})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if res.Stream == nil {
		t.Fatalf("expected stream result")
	}
	data, _ := io.ReadAll(res.Stream)
	if len(data) != 4 {
		t.Fatalf("stream len = %d, want 4", len(data))
	}
}

func TestPredictErrors(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	client := newTestClient(t, transport)
	transport.responses["/v1/models/o/m/predictions"] = responseStub{
		status: http.StatusUnprocessableEntity,
		header: http.Header{"Content-Type": []string{"application/json"}},
		body:   []byte(`{"title":"Invalid input","detail":"input_image is required"}`),
	}
	_, err := client.Predict(context.Background(), generation.SlotCall{Model: "o/m"})
	if err == nil || !strings.Contains(err.Error(), "input_image is required") {
		t.Fatalf("expected detail in error, got %v", err)
	}

	if _, err := client.Predict(context.Background(), generation.SlotCall{Model: "no-slash"}); err == nil {
		t.Fatalf("expected error for malformed model")
	}

	bare, _ := NewClient(Options{})
	if _, err := bare.Predict(context.Background(), generation.SlotCall{Model: "o/m"}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func newTestClient(t *testing.T, transport http.RoundTripper) *Client {
	t.Helper()
	client, err := NewClient(Options{
		APIToken:   "test",
		HTTPClient: &http.Client{Transport: transport},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.sleep = func(context.Context, time.Duration) error { return nil }
	return client
}

type captureTransport struct {
	responses  map[string]responseStub
	lastBody   []byte
	lastHeader http.Header
}

type responseStub struct {
	status int
	header http.Header
	body   []byte
}

func (c *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.lastHeader = req.Header.Clone()
	if req.Method == http.MethodPost {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		c.lastBody = body
		if stub, ok := c.responses[req.URL.Path]; ok {
			return stub.toResponse(), nil
		}
	}
	if req.Method == http.MethodGet {
		if stub, ok := c.responses[req.URL.String()]; ok {
			return stub.toResponse(), nil
		}
	}
	return &http.Response{
		StatusCode: http.StatusNotFound,
		Body:       io.NopCloser(strings.NewReader("not found")),
	}, nil
}

func (c *captureTransport) setJSONResponse(key string, payload any) {
	body, _ := json.Marshal(payload)
	c.responses[key] = responseStub{
		status: http.StatusOK,
		header: http.Header{"Content-Type": []string{"application/json"}},
		body:   body,
	}
}

func (s responseStub) toResponse() *http.Response {
	header := http.Header{}
	for k, values := range s.header {
		cloned := make([]string, len(values))
		copy(cloned, values)
		header[k] = cloned
	}
	return &http.Response{
		StatusCode: s.status,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(s.body)),
	}
}
