package llm

import (
	"context"
	"sync"
)

// MockClient permite tests sin llamar a un LLM real. Devuelve Responses en orden
// y registra cada request recibido.
type MockClient struct {
	mu        sync.Mutex
	Responses []ChatMessage
	Err       error
	Calls     [][]ChatMessage
	Tools     [][]ToolDefinition
}

func (m *MockClient) Complete(_ context.Context, messages []ChatMessage, tools []ToolDefinition) (ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make([]ChatMessage, len(messages))
	copy(snapshot, messages)
	m.Calls = append(m.Calls, snapshot)
	m.Tools = append(m.Tools, tools)

	if m.Err != nil {
		return ChatMessage{}, m.Err
	}
	if len(m.Responses) == 0 {
		return ChatMessage{}, ErrEmptyResponse
	}
	next := m.Responses[0]
	m.Responses = m.Responses[1:]
	return next, nil
}
