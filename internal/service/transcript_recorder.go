package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"tagrag/internal/domain"
)

// TranscriptRecorder replica cada entrada de la historia a un almacen de auditoria.
type TranscriptRecorder interface {
	Record(ctx context.Context, conversationID string, msg domain.RequestMessage) error
}

type nopTranscriptRecorder struct{}

func NewNopTranscriptRecorder() TranscriptRecorder {
	return nopTranscriptRecorder{}
}

func (nopTranscriptRecorder) Record(context.Context, string, domain.RequestMessage) error {
	return nil
}

type redisListClient interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

type redisTranscriptRecorder struct {
	client redisListClient
	ttl    time.Duration
	prefix string
}

// NewRedisTranscriptRecorder guarda la historia como lista append-only en transcript:<id>.
func NewRedisTranscriptRecorder(client *redis.Client, ttl time.Duration) TranscriptRecorder {
	if client == nil {
		return nil
	}
	return &redisTranscriptRecorder{
		client: client,
		ttl:    ttl,
		prefix: "transcript:",
	}
}

type transcriptEntry struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (r *redisTranscriptRecorder) Record(ctx context.Context, conversationID string, msg domain.RequestMessage) error {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil
	}
	payload, err := json.Marshal(transcriptEntry{
		ID:        msg.ID.String(),
		Role:      string(msg.Role),
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal transcript entry: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	key := r.prefix + conversationID
	if err := r.client.RPush(ctx, key, payload).Err(); err != nil {
		return fmt.Errorf("rpush transcript: %w", err)
	}
	if r.ttl > 0 {
		if err := r.client.Expire(ctx, key, r.ttl).Err(); err != nil {
			return fmt.Errorf("expire transcript: %w", err)
		}
	}
	return nil
}
