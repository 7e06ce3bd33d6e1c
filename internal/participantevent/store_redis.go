package participantevent

import (
	"context"
	"fmt"

	platformredis "kittrack/internal/platform/redis"
)

// RedisStore shares direct participant events across processes through a
// Redis set per participant.
type RedisStore struct {
	client *platformredis.Client
}

func NewRedis(client *platformredis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(participantID string) string {
	return "participant_events:" + participantID
}

func (s *RedisStore) Record(ctx context.Context, participantID, eventType string) error {
	if err := s.client.SAdd(ctx, redisKey(participantID), eventType).Err(); err != nil {
		return fmt.Errorf("record participant event: %w", err)
	}
	return nil
}

func (s *RedisStore) Seen(ctx context.Context, participantID, eventType string) (bool, error) {
	seen, err := s.client.SIsMember(ctx, redisKey(participantID), eventType).Result()
	if err != nil {
		return false, fmt.Errorf("check participant event: %w", err)
	}
	return seen, nil
}
