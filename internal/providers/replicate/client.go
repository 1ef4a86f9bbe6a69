package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"genstudio/internal/generation"
	"genstudio/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("replicate: api token is required")

// Options configures the Replicate predictions client.
type Options struct {
	APIToken     string
	BaseURL      string
	HTTPClient   *http.Client
	Logger       *infra.Logger
	PollInterval time.Duration
}

// Client runs model predictions through the Replicate HTTP API. It asks the
// API to hold the connection until the prediction finishes and polls the
// prediction URL when the wait expires first.
type Client struct {
	apiToken     string
	baseURL      string
	httpClient   *http.Client
	logger       *infra.Logger
	pollInterval time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
}

var _ generation.SlotProvider = (*Client)(nil)

type predictionRequest struct {
	Input map[string]any `json:"input"`
}

type predictionResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  json.RawMessage `json:"error"`
	URLs   struct {
		Get string `json:"get"`
	} `json:"urls"`
}

type errorResponse struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// NewClient constructs a client with defaults for anything left unset. The
// default HTTP client has no timeout; cancellation comes from ctx only.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.replicate.com/v1"
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = time.Second
	}
	return &Client{
		apiToken:     strings.TrimSpace(opts.APIToken),
		baseURL:      baseURL,
		httpClient:   httpClient,
		logger:       infra.OrDiscard(opts.Logger),
		pollInterval: poll,
		sleep:        sleepCtx,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiToken != ""
}

// Predict creates a prediction for call.Model and returns its terminal state.
func (c *Client) Predict(ctx context.Context, call generation.SlotCall) (generation.SlotResult, error) {
	if !c.HasCredentials() {
		return generation.SlotResult{}, ErrMissingAPIKey
	}
	owner, name, ok := strings.Cut(strings.TrimSpace(call.Model), "/")
	if !ok || owner == "" || name == "" {
		return generation.SlotResult{}, fmt.Errorf("replicate: model %q must be owner/name", call.Model)
	}
	body, err := json.Marshal(predictionRequest{Input: call.Input})
	if err != nil {
		return generation.SlotResult{}, fmt.Errorf("replicate: encode request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/models/%s/%s/predictions", c.baseURL, owner, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return generation.SlotResult{}, fmt.Errorf("replicate: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "wait")

	res, pred, err := c.do(req)
	if err != nil || pred == nil {
		return res, err
	}
	for !terminal(pred.Status) {
		if pred.URLs.Get == "" {
			return generation.SlotResult{}, fmt.Errorf("replicate: prediction %s is %s with no poll url", pred.ID, pred.Status)
		}
		if err := c.sleep(ctx, c.pollInterval); err != nil {
			return generation.SlotResult{}, err
		}
		getReq, err := http.NewRequestWithContext(ctx, http.MethodGet, pred.URLs.Get, nil)
		if err != nil {
			return generation.SlotResult{}, fmt.Errorf("replicate: build poll request: %w", err)
		}
		res, pred, err = c.do(getReq)
		if err != nil || pred == nil {
			return res, err
		}
	}
	c.logger.Debug().
		Str("model", call.Model).
		Str("prediction_id", pred.ID).
		Str("status", pred.Status).
		Msg("replicate: prediction finished")
	return generation.SlotResult{
		Status: pred.Status,
		Output: pred.Output,
		Error:  errorText(pred.Error),
	}, nil
}

// do sends req and decodes a prediction. A binary body is handed back as a
// stream result with a nil prediction; the caller owns closing it.
func (c *Client) do(req *http.Request) (generation.SlotResult, *predictionResponse, error) {
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return generation.SlotResult{}, nil, fmt.Errorf("replicate: http request: %w", err)
	}

	if resp.StatusCode < 300 && isBinary(resp.Header.Get("Content-Type")) {
		return generation.SlotResult{
			Status:      "succeeded",
			Stream:      resp.Body,
			ContentType: resp.Header.Get("Content-Type"),
		}, nil, nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return generation.SlotResult{}, nil, fmt.Errorf("replicate: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Detail != "" {
			return generation.SlotResult{}, nil, fmt.Errorf("replicate: status %d: %s", resp.StatusCode, detail.Detail)
		}
		return generation.SlotResult{}, nil, fmt.Errorf("replicate: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var pred predictionResponse
	if err := json.Unmarshal(raw, &pred); err != nil {
		return generation.SlotResult{}, nil, fmt.Errorf("replicate: decode response: %w", err)
	}
	return generation.SlotResult{}, &pred, nil
}

func terminal(status string) bool {
	switch status {
	case "succeeded", "failed", "canceled":
		return true
	}
	return false
}

func isBinary(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mt, "image/") || mt == "application/octet-stream"
}

func errorText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
