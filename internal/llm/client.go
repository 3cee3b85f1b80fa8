package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"tagrag/internal/logging"
)

// ChatClient genera el siguiente mensaje del asistente, opcionalmente con llamadas a herramientas.
type ChatClient interface {
	Complete(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (ChatMessage, error)
}

var ErrEmptyResponse = errors.New("llm empty response")

// HTTPClient implementa ChatClient contra una API de chat completions compatible con OpenAI.
type HTTPClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPClient construye un cliente HTTP apuntando a la API de chat completions.
func NewHTTPClient(baseURL, apiKey, model string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
		logger:  logging.OrNop(logger),
	}
}

func (c *HTTPClient) Complete(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (ChatMessage, error) {
	reqBody := chatRequest{
		Model:    c.model,
		Messages: messages,
		Tools:    tools,
	}
	if len(tools) > 0 {
		reqBody.ToolChoice = "auto"
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return ChatMessage{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return ChatMessage{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return ChatMessage{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return ChatMessage{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		c.logger.Warn("llm error status",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)),
		)
		return ChatMessage{}, fmt.Errorf("llm http error: status=%d", resp.StatusCode)
	}

	var cr chatResponse
	if err := json.Unmarshal(respBody, &cr); err != nil {
		return ChatMessage{}, fmt.Errorf("unmarshal response: %w", err)
	}

	if cr.Error != nil {
		return ChatMessage{}, fmt.Errorf("llm api error: %s", cr.Error.Message)
	}

	if len(cr.Choices) == 0 {
		return ChatMessage{}, ErrEmptyResponse
	}
	msg := cr.Choices[0].Message
	if msg.Content == "" && len(msg.ToolCalls) == 0 {
		return ChatMessage{}, ErrEmptyResponse
	}
	if msg.Role == "" {
		msg.Role = RoleAssistant
	}

	c.logger.Debug("llm completion",
		zap.String("model", c.model),
		zap.Int("tool_calls", len(msg.ToolCalls)),
		zap.String("finish_reason", cr.Choices[0].FinishReason),
		zap.Duration("latency", time.Since(start)),
	)
	return msg, nil
}

type chatRequest struct {
	Model      string           `json:"model"`
	Messages   []ChatMessage    `json:"messages"`
	Tools      []ToolDefinition `json:"tools,omitempty"`
	ToolChoice string           `json:"tool_choice,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}
