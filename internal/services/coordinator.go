package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"gapcards-backend/internal/models"
)

// Locker guards one generation per answer sheet across processes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// Publisher pushes events to a student's live connections.
type Publisher interface {
	PublishUpdate(ctx context.Context, studentID uuid.UUID, msg models.WSMessage)
}

// RedisCoordinator implements Locker and Publisher with SETNX locks and
// pub/sub on user_updates:<student>.
type RedisCoordinator struct {
	redis *redis.Client
}

func NewRedisCoordinator(redisClient *redis.Client) *RedisCoordinator {
	return &RedisCoordinator{redis: redisClient}
}

func (c *RedisCoordinator) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := c.redis.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return nil, ok, err
	}

	release := func() {
		// Only delete the key if it still holds our token.
		c.redis.Eval(context.Background(),
			`if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) end return 0`,
			[]string{key}, token)
	}
	return release, true, nil
}

// PublishUpdate sends a WebSocket update via Redis pub/sub
func (c *RedisCoordinator) PublishUpdate(ctx context.Context, studentID uuid.UUID, msg models.WSMessage) {
	data, _ := json.Marshal(msg)
	c.redis.Publish(ctx, UpdatesChannel(studentID), string(data))
}

func UpdatesChannel(studentID uuid.UUID) string {
	return fmt.Sprintf("user_updates:%s", studentID.String())
}
