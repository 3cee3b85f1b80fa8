// Package pipeline resuelve un turno de conversacion: arma el request al modelo a partir
// de la historia, atiende las llamadas a herramientas y devuelve la respuesta final.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"tagrag/internal/domain"
	"tagrag/internal/llm"
	"tagrag/internal/logging"
)

// Runner es la unica operacion del pipeline que consume el loop de conversacion.
type Runner interface {
	Run(ctx context.Context, cc *domain.ConversationContext) (string, error)
}

var (
	ErrNilContext          = errors.New("nil conversation context")
	ErrEmptyReply          = errors.New("pipeline empty reply")
	ErrToolRoundsExceeded  = errors.New("tool rounds exceeded")
	ErrUnknownTool         = errors.New("unknown tool")
	ErrToolCallsNotEnabled = errors.New("tool calls not enabled")
)

const defaultMaxToolRounds = 5

// Options configura el pipeline.
type Options struct {
	MaxToolRounds int
	Reducer       HistoryReducer
}

// ChatPipeline implementa Runner sobre un llm.ChatClient con herramientas registradas.
type ChatPipeline struct {
	client        llm.ChatClient
	tools         *Registry
	reducer       HistoryReducer
	maxToolRounds int
	logger        *zap.Logger
}

func NewChatPipeline(client llm.ChatClient, tools *Registry, opts Options, logger *zap.Logger) *ChatPipeline {
	rounds := opts.MaxToolRounds
	if rounds <= 0 {
		rounds = defaultMaxToolRounds
	}
	if tools == nil {
		tools = NewRegistry()
	}
	return &ChatPipeline{
		client:        client,
		tools:         tools,
		reducer:       opts.Reducer,
		maxToolRounds: rounds,
		logger:        logging.OrNop(logger),
	}
}

// Run ejecuta un turno completo. Las llamadas a herramientas se resuelven en orden,
// una a la vez; el texto final queda tambien en cc.Response.
func (p *ChatPipeline) Run(ctx context.Context, cc *domain.ConversationContext) (string, error) {
	if cc == nil {
		return "", ErrNilContext
	}
	if cc.Response == nil {
		cc.Response = &domain.MessageResponse{}
	}

	history := cc.Request.History
	if p.reducer != nil {
		history = p.reducer.Reduce(history)
	}
	messages := toChatMessages(history)
	if strings.TrimSpace(cc.Request.Content) != "" {
		messages = append(messages, llm.ChatMessage{Role: llm.RoleUser, Content: cc.Request.Content})
	}

	var tools []llm.ToolDefinition
	if cc.Options.Enabled(domain.OptionEnableFunctions) {
		tools = p.tools.Definitions()
	}

	for round := 0; ; round++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		msg, err := p.client.Complete(ctx, messages, tools)
		if err != nil {
			return "", fmt.Errorf("llm complete: %w", err)
		}

		if len(msg.ToolCalls) == 0 {
			reply := cleanReply(msg.Content)
			if reply == "" {
				return "", ErrEmptyReply
			}
			cc.Response.Content = reply
			return reply, nil
		}

		if len(tools) == 0 {
			return "", ErrToolCallsNotEnabled
		}
		if round >= p.maxToolRounds {
			return "", fmt.Errorf("%w: limit %d", ErrToolRoundsExceeded, p.maxToolRounds)
		}

		messages = append(messages, msg)
		for _, call := range msg.ToolCalls {
			out, err := p.invoke(ctx, call)
			if err != nil {
				return "", err
			}
			messages = append(messages, llm.ChatMessage{
				Role:       llm.RoleTool,
				ToolCallID: call.ID,
				Name:       call.Function.Name,
				Content:    out,
			})
		}
	}
}

// invoke resuelve una llamada. Los errores de la herramienta vuelven al modelo como
// {"error": ...} para que pueda corregir la consulta; solo la cancelacion aborta el turno.
func (p *ChatPipeline) invoke(ctx context.Context, call llm.ToolCall) (string, error) {
	name := call.Function.Name
	tool, ok := p.tools.Lookup(name)
	if !ok {
		p.logger.Warn("model requested unknown tool", zap.String("tool", name))
		return toolError(fmt.Errorf("%w: %s", ErrUnknownTool, name)), nil
	}

	start := time.Now()
	out, err := tool.Invoke(ctx, call.Function.Arguments)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		p.logger.Warn("tool call failed",
			zap.String("tool", name),
			zap.String("call_id", call.ID),
			zap.Error(err),
		)
		return toolError(err), nil
	}
	p.logger.Debug("tool call finished",
		zap.String("tool", name),
		zap.String("call_id", call.ID),
		zap.Duration("latency", time.Since(start)),
	)
	return out, nil
}

func toolError(err error) string {
	out, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(out)
}

func toChatMessages(history []domain.RequestMessage) []llm.ChatMessage {
	out := make([]llm.ChatMessage, 0, len(history))
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		out = append(out, llm.ChatMessage{Role: chatRole(m.Role), Content: m.Content})
	}
	return out
}

func chatRole(r domain.Role) string {
	switch r {
	case domain.RoleSystem:
		return llm.RoleSystem
	case domain.RoleBot:
		return llm.RoleAssistant
	default:
		return llm.RoleUser
	}
}
