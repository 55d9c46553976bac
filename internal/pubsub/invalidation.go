// Package pubsub рассылает между процессами сигналы об изменении конфигурации заведений через Redis.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ConfigChannel задаёт канал Redis для инвалидаций конфигурации.
const ConfigChannel = "stampcard:tenant-config"

type invalidation struct {
	Slug string `json:"slug"`
}

// EncodeInvalidation сериализует сообщение об изменении конфигурации заведения.
func EncodeInvalidation(slug string) ([]byte, error) {
	if slug == "" {
		return nil, errors.New("empty slug")
	}
	return json.Marshal(invalidation{Slug: slug})
}

// DecodeInvalidation извлекает slug заведения из сообщения.
func DecodeInvalidation(payload []byte) (string, error) {
	var msg invalidation
	if err := json.Unmarshal(payload, &msg); err != nil {
		return "", fmt.Errorf("decode invalidation: %w", err)
	}
	if msg.Slug == "" {
		return "", errors.New("decode invalidation: empty slug")
	}
	return msg.Slug, nil
}

// Invalidator публикует и принимает инвалидации конфигурации.
type Invalidator struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// New подключается к Redis и проверяет соединение.
func New(ctx context.Context, addr string, logger *zap.Logger) (*Invalidator, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pubsub.New: ping: %w", err)
	}

	return &Invalidator{client: client, channel: ConfigChannel, logger: logger}, nil
}

// Close закрывает соединение с Redis.
func (i *Invalidator) Close() error {
	if err := i.client.Close(); err != nil {
		return fmt.Errorf("pubsub.Close: %w", err)
	}
	return nil
}

// PublishInvalidation сообщает остальным процессам, что конфигурация заведения изменилась.
func (i *Invalidator) PublishInvalidation(ctx context.Context, slug string) error {
	payload, err := EncodeInvalidation(slug)
	if err != nil {
		return fmt.Errorf("pubsub.Publish: %w", err)
	}
	if err := i.client.Publish(ctx, i.channel, payload).Err(); err != nil {
		i.logger.Warn("publish config invalidation", zap.String("slug", slug), zap.Error(err))
		return fmt.Errorf("pubsub.Publish: %w", err)
	}
	return nil
}

// Listen подписывается на канал и вызывает invalidate для каждого сообщения,
// пока не отменён ctx.
func (i *Invalidator) Listen(ctx context.Context, invalidate func(slug string)) error {
	sub := i.client.Subscribe(ctx, i.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("pubsub.Listen: receive confirmation: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			i.handle([]byte(msg.Payload), invalidate)
		}
	}
}

func (i *Invalidator) handle(payload []byte, invalidate func(slug string)) {
	slug, err := DecodeInvalidation(payload)
	if err != nil {
		i.logger.Warn("skip malformed config invalidation", zap.ByteString("payload", payload), zap.Error(err))
		return
	}
	i.logger.Debug("config invalidated", zap.String("slug", slug))
	invalidate(slug)
}
