package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role indica quien emitio una entrada de la conversacion.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
	RoleBot    Role = "bot"
)

// RequestMessage es una entrada de la conversacion en curso.
// History solo se completa en el mensaje saliente hacia el pipeline.
type RequestMessage struct {
	ID        uuid.UUID        `json:"id"`
	Role      Role             `json:"role"`
	Content   string           `json:"content"`
	CreatedAt time.Time        `json:"created_at"`
	History   []RequestMessage `json:"history,omitempty"`
}

// NewRequestMessage crea una entrada con identificador nuevo.
func NewRequestMessage(content string, role Role) RequestMessage {
	return RequestMessage{
		ID:        uuid.New(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// MessageResponse es completado por el pipeline con el texto generado.
type MessageResponse struct {
	Content string `json:"content"`
}

// OptionEnableFunctions habilita las llamadas a herramientas durante el turno.
const OptionEnableFunctions = "enable_functions"

// ExecutionOptions son flags booleanos con nombre; una clave ausente vale false.
type ExecutionOptions map[string]bool

func (o ExecutionOptions) Enabled(name string) bool {
	return o[name]
}

// ConversationContext es la unidad de una invocacion del pipeline. Se crea por turno.
type ConversationContext struct {
	Request  RequestMessage
	Response *MessageResponse
	Options  ExecutionOptions
}

// NewConversationContext arma el contexto de un turno con una copia de la historia.
func NewConversationContext(history []RequestMessage, options ExecutionOptions) *ConversationContext {
	snapshot := make([]RequestMessage, len(history))
	copy(snapshot, history)

	request := NewRequestMessage("", RoleUser)
	request.History = snapshot

	opts := make(ExecutionOptions, len(options))
	for k, v := range options {
		opts[k] = v
	}

	return &ConversationContext{
		Request:  request,
		Response: &MessageResponse{},
		Options:  opts,
	}
}
