package chathub

import (
	"anonchat/backend/internal/config"
	"anonchat/backend/internal/models"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Publisher puts a notification on the bus. Any process may publish; the
// process holding the recipient's transport client delivers it.
type Publisher interface {
	Publish(ctx context.Context, n models.Notification) error
}

// Subscriber streams notifications until ctx is done, then closes the channel.
type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan models.Notification, error)
}

type Bus interface {
	Publisher
	Subscriber
}

// RedisBus fans notifications out over a Redis pub/sub channel, so the admin
// process can reach clients held by the bot process.
type RedisBus struct {
	Redis   *redis.Client
	Channel string
	Log     *zap.Logger
}

func NewRedisBus(rdb *redis.Client, log *zap.Logger) *RedisBus {
	return &RedisBus{Redis: rdb, Channel: config.NotificationChannel, Log: log}
}

func (b *RedisBus) Publish(ctx context.Context, n models.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := b.Redis.Publish(ctx, b.Channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Subscribe запускає Goroutine, яка слухає Redis Pub/Sub
func (b *RedisBus) Subscribe(ctx context.Context) (<-chan models.Notification, error) {
	pubsub := b.Redis.Subscribe(ctx, b.Channel)
	// Wait for the subscription confirmation so nothing published after
	// Subscribe returns is lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", b.Channel, err)
	}

	out := make(chan models.Notification)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var n models.Notification
				if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
					b.Log.Warn("dropping malformed notification", zap.Error(err))
					continue
				}
				select {
				case out <- n:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// LocalBus is an in-process Bus for single-process deployments and tests.
type LocalBus struct {
	mu   sync.Mutex
	subs []chan models.Notification
}

func NewLocalBus() *LocalBus {
	return &LocalBus{}
}

const localBusBuffer = 256

func (b *LocalBus) Publish(ctx context.Context, n models.Notification) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		select {
		case sub <- n:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *LocalBus) Subscribe(ctx context.Context) (<-chan models.Notification, error) {
	sub := make(chan models.Notification, localBusBuffer)
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s == sub {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				break
			}
		}
		close(sub)
	}()
	return sub, nil
}
