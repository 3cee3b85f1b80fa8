package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"tagrag/internal/domain"
	"tagrag/internal/logging"
	"tagrag/internal/pipeline"
)

// DefaultSystemPrompt es la instruccion con la que arranca toda conversacion.
const DefaultSystemPrompt = "Your task is to provide short answers about user conversations. " +
	"To get details of the stored conversations use the memory tool: it runs a SQL query against the " +
	"conversation database and returns the matching rows. Only query the tables described by the tool."

// maxInputLine acota una linea de entrada; las mas largas se descartan con ErrInputTooLong.
const maxInputLine = 1024 * 1024

var (
	ErrLoopNotConfigured = errors.New("conversation loop not configured")
	ErrEmptyInput        = errors.New("empty input")
	ErrInputTooLong      = errors.New("input line too long")
)

// TurnError indica que el pipeline fallo durante un turno. La entrada User del turno
// queda en la historia; no se registra respuesta Bot.
type TurnError struct {
	TurnID uuid.UUID
	Err    error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("turn %s failed: %v", e.TurnID, e.Err)
}

func (e *TurnError) Unwrap() error { return e.Err }

// ConversationLoop mantiene la historia y ejecuta un turno del pipeline por entrada.
// Los turnos son estrictamente secuenciales.
type ConversationLoop struct {
	runner   pipeline.Runner
	recorder TranscriptRecorder
	options  domain.ExecutionOptions
	logger   *zap.Logger

	conversationID uuid.UUID
	turn           *semaphore.Weighted

	mu       sync.RWMutex
	history  []domain.RequestMessage
	recorded int
}

func NewConversationLoop(runner pipeline.Runner, recorder TranscriptRecorder, systemPrompt string, options domain.ExecutionOptions, logger *zap.Logger) *ConversationLoop {
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultSystemPrompt
	}
	if recorder == nil {
		recorder = NewNopTranscriptRecorder()
	}
	if options == nil {
		options = domain.ExecutionOptions{domain.OptionEnableFunctions: true}
	}
	return &ConversationLoop{
		runner:         runner,
		recorder:       recorder,
		options:        options,
		logger:         logging.OrNop(logger),
		conversationID: uuid.New(),
		turn:           semaphore.NewWeighted(1),
		history:        []domain.RequestMessage{domain.NewRequestMessage(systemPrompt, domain.RoleSystem)},
	}
}

func (l *ConversationLoop) ConversationID() uuid.UUID { return l.conversationID }

// History devuelve una copia de la historia completa en orden de alta.
func (l *ConversationLoop) History() []domain.RequestMessage {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.RequestMessage, len(l.history))
	copy(out, l.history)
	return out
}

// Turn agrega la entrada del usuario, ejecuta el pipeline con la historia completa y,
// si tiene exito, agrega la respuesta. Un turno no empieza hasta que termina el anterior.
func (l *ConversationLoop) Turn(ctx context.Context, input string) (string, error) {
	if l == nil || l.runner == nil {
		return "", ErrLoopNotConfigured
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return "", ErrEmptyInput
	}

	if err := l.turn.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer l.turn.Release(1)

	userMsg := domain.NewRequestMessage(input, domain.RoleUser)
	history := l.append(userMsg)
	l.flushTranscript(ctx)

	cc := domain.NewConversationContext(history, l.options)
	reply, err := l.runner.Run(ctx, cc)
	if err != nil {
		l.logger.Warn("conversation turn failed",
			zap.String("conversation_id", l.conversationID.String()),
			zap.String("turn_id", userMsg.ID.String()),
			zap.Error(err),
		)
		return "", &TurnError{TurnID: userMsg.ID, Err: err}
	}
	if reply == "" && cc.Response != nil {
		reply = cc.Response.Content
	}

	l.append(domain.NewRequestMessage(reply, domain.RoleBot))
	l.flushTranscript(ctx)

	l.logger.Info("conversation turn finished",
		zap.String("conversation_id", l.conversationID.String()),
		zap.String("turn_id", userMsg.ID.String()),
		zap.Int("history_len", len(history)+1),
	)
	return reply, nil
}

// append agrega una entrada y devuelve la historia resultante como copia.
func (l *ConversationLoop) append(msg domain.RequestMessage) []domain.RequestMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.history = append(l.history, msg)
	out := make([]domain.RequestMessage, len(l.history))
	copy(out, l.history)
	return out
}

// flushTranscript replica al recorder las entradas aun no registradas, en orden.
func (l *ConversationLoop) flushTranscript(ctx context.Context) {
	l.mu.Lock()
	pending := make([]domain.RequestMessage, len(l.history)-l.recorded)
	copy(pending, l.history[l.recorded:])
	l.recorded = len(l.history)
	l.mu.Unlock()

	for _, m := range pending {
		if err := l.recorder.Record(ctx, l.conversationID.String(), m); err != nil {
			l.logger.Warn("transcript record failed",
				zap.String("conversation_id", l.conversationID.String()),
				zap.String("message_id", m.ID.String()),
				zap.Error(err),
			)
		}
	}
}

type inputLine struct {
	text string
	err  error
	eof  bool
}

// Run atiende una sesion interactiva linea por linea hasta fin de entrada o cancelacion.
// Solo se lee la siguiente linea despues de que termino el turno anterior.
func (l *ConversationLoop) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	if l == nil || l.runner == nil {
		return ErrLoopNotConfigured
	}

	requests := make(chan struct{})
	lines := make(chan inputLine, 1)
	defer close(requests)

	go func() {
		reader := bufio.NewReaderSize(in, 64*1024)
		for range requests {
			text, err := readLine(reader, maxInputLine)
			switch {
			case err == nil:
				lines <- inputLine{text: text}
			case errors.Is(err, ErrInputTooLong):
				lines <- inputLine{err: err}
			case errors.Is(err, io.EOF):
				lines <- inputLine{eof: true}
				return
			default:
				lines <- inputLine{err: err, eof: true}
				return
			}
		}
	}()

	fmt.Fprintln(out, "---- Conversation assistant (Ctrl+D to quit) ----")
	for {
		if ctx.Err() != nil {
			l.logger.Info("conversation loop stopped", zap.String("reason", "cancelled"))
			return nil
		}

		fmt.Fprint(out, "You > ")
		select {
		case requests <- struct{}{}:
		case <-ctx.Done():
			continue
		}

		var line inputLine
		select {
		case line = <-lines:
		case <-ctx.Done():
			continue
		}

		if line.eof {
			if line.err != nil {
				return fmt.Errorf("read input: %w", line.err)
			}
			fmt.Fprintln(out)
			l.logger.Info("conversation loop stopped", zap.String("reason", "end of input"))
			return nil
		}
		if line.err != nil {
			l.logger.Warn("input line discarded", zap.Error(line.err))
			fmt.Fprintf(out, "error: %v\n", line.err)
			continue
		}

		text := strings.TrimSpace(line.text)
		if text == "" {
			continue
		}

		reply, err := l.Turn(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "Bot: %s\n", reply)
	}
}

// readLine lee una linea sin el salto final. Una linea que supera limit se consume
// completa y se descarta, de modo que la lectura sigue en la linea siguiente.
func readLine(r *bufio.Reader, limit int) (string, error) {
	var (
		buf     []byte
		tooLong bool
	)
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			return "", err
		}
		if !tooLong {
			if len(buf)+len(chunk) > limit {
				tooLong = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if !isPrefix {
			break
		}
	}
	if tooLong {
		return "", fmt.Errorf("%w: limit %d bytes", ErrInputTooLong, limit)
	}
	return string(buf), nil
}
