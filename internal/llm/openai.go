package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewOpenAIClient creates a client for the given endpoint. The model is the
// default used when the request does not name one.
func NewOpenAIClient(baseURL, apiKey, model string) *OpenAIClient {
	return &OpenAIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string { return "openai" }

// wireTool wraps a ToolDefinition in the {"type":"function"} envelope the
// completions API expects.
type wireTool struct {
	Type     string         `json:"type"`
	Function ToolDefinition `json:"function"`
}

type wireRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Tools    []wireTool    `json:"tools,omitempty"`
	Stream   bool          `json:"stream,omitempty"`
}

type wireResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role      string            `json:"role"`
			Content   string            `json:"content"`
			ToolCalls []ToolCallPayload `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// streamFrame is one "data: {...}" frame of a streaming response.
type streamFrame struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (c *OpenAIClient) buildRequest(req CompletionRequest, stream bool) wireRequest {
	model := req.Model
	if model == "" {
		model = c.model
	}
	wr := wireRequest{Model: model, Messages: req.Messages, Stream: stream}
	for _, t := range req.Tools {
		wr.Tools = append(wr.Tools, wireTool{Type: "function", Function: t})
	}
	return wr
}

func (c *OpenAIClient) post(ctx context.Context, body wireRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("completion request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("completion API error (%d): %s", resp.StatusCode, string(b))
	}
	return resp, nil
}

// Complete sends a non-streaming completion request.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	resp, err := c.post(ctx, c.buildRequest(req, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var wr wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return nil, fmt.Errorf("parsing completion response: %w", err)
	}
	if len(wr.Choices) == 0 {
		return nil, fmt.Errorf("completion response has no choices")
	}

	msg := wr.Choices[0].Message
	return &CompletionResponse{
		Content:   msg.Content,
		ToolCalls: msg.ToolCalls,
		Model:     wr.Model,
	}, nil
}

// Stream sends a streaming completion request. Frames arrive as
// line-delimited "data: <json>" events terminated by "data: [DONE]".
func (c *OpenAIClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	resp, err := c.post(ctx, c.buildRequest(req, true))
	if err != nil {
		return nil, err
	}

	events := make(chan StreamEvent)
	go func() {
		defer close(events)
		defer resp.Body.Close()

		var full strings.Builder
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				break
			}

			var frame streamFrame
			if err := json.Unmarshal([]byte(data), &frame); err != nil {
				// Malformed frames are skipped, not fatal.
				continue
			}
			for _, choice := range frame.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				full.WriteString(choice.Delta.Content)
				select {
				case events <- StreamEvent{Type: "delta", Content: choice.Delta.Content}:
				case <-ctx.Done():
					events <- StreamEvent{Type: "error", Error: ctx.Err().Error()}
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			events <- StreamEvent{Type: "error", Error: err.Error()}
			return
		}

		events <- StreamEvent{
			Type:     "done",
			Response: &CompletionResponse{Content: full.String(), Model: req.Model},
		}
	}()
	return events, nil
}
