package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	anthropicAPIURL     = "https://api.anthropic.com"
	anthropicAPIVersion = "2023-06-01"
)

// AnthropicClient implements Client for Anthropic's native messages API.
type AnthropicClient struct {
	HTTPClient *http.Client
	APIKey     string
	BaseURL    string
}

func NewAnthropicClient(apiKey, baseURL string) *AnthropicClient {
	return &AnthropicClient{HTTPClient: http.DefaultClient, APIKey: apiKey, BaseURL: baseURL}
}

func (c *AnthropicClient) endpoint() string {
	base := c.BaseURL
	if base == "" {
		base = anthropicAPIURL
	}
	return strings.TrimRight(base, "/") + "/v1/messages"
}

func (c *AnthropicClient) CreateStream(ctx context.Context, req Request) (<-chan Delta, error) {
	resp, err := c.post(ctx, req, true)
	if err != nil {
		return nil, err
	}
	ch := make(chan Delta, 32)
	go c.consumeSSE(resp.Body, ch)
	return ch, nil
}

func (c *AnthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := c.post(ctx, req, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out anthropicMessage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode message: %w", err)
	}
	var text strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("message contained no text blocks")
	}
	return text.String(), nil
}

func (c *AnthropicClient) post(ctx context.Context, req Request, stream bool) (*http.Response, error) {
	maxTokens := req.Config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096 // the messages API requires max_tokens
	}
	body := map[string]any{
		"model":      req.Config.Model,
		"max_tokens": maxTokens,
		"stream":     stream,
	}
	if req.Config.Temperature > 0 {
		body["temperature"] = req.Config.Temperature
	}
	if req.System != "" {
		body["system"] = req.System
	}

	wire := make([]map[string]any, 0, len(req.History)+1)
	for _, m := range req.History {
		if m.Role == RoleSystem {
			continue // system goes through the top-level param
		}
		wire = append(wire, map[string]any{"role": m.Role, "content": m.Content})
	}
	if req.UserMessage != "" {
		wire = append(wire, map[string]any{"role": "user", "content": req.UserMessage})
	}
	body["messages"] = wire

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.endpoint(), bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(errBody)}
	}
	return resp, nil
}

func (c *AnthropicClient) consumeSSE(body io.ReadCloser, out chan<- Delta) {
	defer close(out)
	defer body.Close()

	for event := range ParseSSE(body) {
		var chunk anthropicChunk
		if err := json.Unmarshal([]byte(event.Data), &chunk); err != nil {
			out <- Delta{Type: "error", Err: fmt.Errorf("parse chunk: %w", err)}
			return
		}
		switch chunk.Type {
		case "content_block_delta":
			if chunk.Delta.Type == "text_delta" && chunk.Delta.Text != "" {
				out <- Delta{Type: "text", Text: chunk.Delta.Text}
			}
		case "message_delta":
			if chunk.Delta.StopReason != "" {
				out <- Delta{Type: "done", Text: chunk.Delta.StopReason}
			}
		case "message_stop":
			return
		case "error":
			out <- Delta{Type: "error", Err: fmt.Errorf("stream error: %s", chunk.Error.Message)}
			return
		}
	}
}

// Anthropic wire types.

type anthropicChunk struct {
	Type  string `json:"type"`
	Delta struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type anthropicMessage struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}
