package pipeline

import "tagrag/internal/domain"

// HistoryReducer recorta la historia que se envia al modelo. Nunca modifica la entrada.
type HistoryReducer interface {
	Reduce(history []domain.RequestMessage) []domain.RequestMessage
}

// PairedSlidingWindowReducer conserva todas las entradas System y las ultimas Window
// entradas restantes, sin empezar la ventana con una respuesta Bot huerfana.
type PairedSlidingWindowReducer struct {
	Window int
}

func (r PairedSlidingWindowReducer) Reduce(history []domain.RequestMessage) []domain.RequestMessage {
	var system, rest []domain.RequestMessage
	for _, m := range history {
		if m.Role == domain.RoleSystem {
			system = append(system, m)
			continue
		}
		rest = append(rest, m)
	}

	if r.Window > 0 && len(rest) > r.Window {
		rest = rest[len(rest)-r.Window:]
		for len(rest) > 0 && rest[0].Role == domain.RoleBot {
			rest = rest[1:]
		}
	}

	out := make([]domain.RequestMessage, 0, len(system)+len(rest))
	out = append(out, system...)
	return append(out, rest...)
}
