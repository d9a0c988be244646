// Package notify bridges queue updates onto Redis pub/sub. Each doctor
// gets their own channel, so clients only subscribe to the queue they
// are actually waiting in.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/clinicdesk/appointment-queue/internal/queue"
)

// Channel returns the pub/sub channel name for one doctor's queue.
func Channel(doctorID uuid.UUID) string {
	return fmt.Sprintf("queue:doctor:%s", doctorID.String())
}

type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (n *RedisNotifier) QueueChanged(ctx context.Context, update queue.QueueUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshal queue update: %w", err)
	}

	if err := n.client.Publish(ctx, Channel(update.DoctorID), payload).Err(); err != nil {
		return fmt.Errorf("publish queue update: %w", err)
	}

	return nil
}

// Subscribe returns a channel of decoded updates for one doctor's
// queue, plus a stop function. Updates published before the
// subscription exist only for clients that were already listening.
func Subscribe(ctx context.Context, client *redis.Client, doctorID uuid.UUID) (<-chan queue.QueueUpdate, func() error) {
	sub := client.Subscribe(ctx, Channel(doctorID))
	out := make(chan queue.QueueUpdate)

	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var update queue.QueueUpdate
			if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
				continue
			}
			select {
			case out <- update:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, sub.Close
}
