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

// OpenAIClient implements Client for OpenAI-compatible providers
// (OpenAI, DeepSeek, Groq, OpenRouter, local models, etc.)
type OpenAIClient struct {
	HTTPClient *http.Client
	APIKey     string
	BaseURL    string
}

func NewOpenAIClient(apiKey, baseURL string) *OpenAIClient {
	return &OpenAIClient{HTTPClient: http.DefaultClient, APIKey: apiKey, BaseURL: baseURL}
}

func (c *OpenAIClient) endpoint() string {
	base := c.BaseURL
	if base == "" {
		base = "https://api.openai.com"
	}
	return strings.TrimRight(base, "/") + "/v1/chat/completions"
}

func (c *OpenAIClient) CreateStream(ctx context.Context, req Request) (<-chan Delta, error) {
	resp, err := c.post(ctx, req, true)
	if err != nil {
		return nil, err
	}
	ch := make(chan Delta, 32)
	go c.consumeSSE(resp.Body, ch)
	return ch, nil
}

// Complete issues a single non-streaming call and returns the full text.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := c.post(ctx, req, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out openAICompletion
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) post(ctx context.Context, req Request, stream bool) (*http.Response, error) {
	body := map[string]any{
		"model":  req.Config.Model,
		"stream": stream,
		// The pipeline consumes a single JSON document; pin the format so
		// compatible providers never wrap it in prose.
		"response_format": map[string]any{"type": "json_object"},
	}
	if req.Config.Temperature > 0 {
		body["temperature"] = req.Config.Temperature
	}
	if req.Config.MaxTokens > 0 {
		body["max_tokens"] = req.Config.MaxTokens
	}

	msgs := messages(req)
	wire := make([]map[string]any, 0, len(msgs))
	for _, m := range msgs {
		wire = append(wire, map[string]any{"role": m.Role, "content": m.Content})
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
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

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

func (c *OpenAIClient) consumeSSE(body io.ReadCloser, out chan<- Delta) {
	defer close(out)
	defer body.Close()

	for event := range ParseSSE(body) {
		var chunk openAIChunk
		if err := json.Unmarshal([]byte(event.Data), &chunk); err != nil {
			out <- Delta{Type: "error", Err: fmt.Errorf("parse chunk: %w", err)}
			return
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.Delta.Content != "" {
			out <- Delta{Type: "text", Text: choice.Delta.Content}
		}
		if choice.FinishReason != "" {
			out <- Delta{Type: "done", Text: choice.FinishReason}
			return
		}
	}
}

// OpenAI wire types.

type openAIChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type openAICompletion struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
