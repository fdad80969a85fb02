package memory

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// coldEventChannel is the pub/sub channel that PublishReady writes to and
// Subscribe listens on; MemoryJobs drains on each signal it receives.
// Nothing in this repository calls PublishReady, so the enqueue path sends
// no signal. Durability itself lives in cold_events (SQLite).
const coldEventChannel = "atlas:cold_events:ready"

// coldQueueLockKey is the Redis key TryLock sets. Nothing in this repository
// calls TryLock, so drains on separate instances are not serialised by it.
const coldQueueLockKey = "atlas:cold_events:lock"

// Notifier publishes COLD-event-ready signals and coordinates drain timing
// across multiple gateway instances sharing one memory store. A nil
// *Notifier is valid everywhere it's used; it just means every instance
// relies solely on its own local job interval.
type Notifier struct {
	client *redis.Client
}

// NewNotifier connects to addr (host:port). Returns an error if the initial
// ping fails so callers can decide whether to run without cross-instance
// coordination rather than silently degrading.
func NewNotifier(addr, password string, db int) (*Notifier, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Notifier{client: client}, nil
}

// PublishReady announces that a new COLD event was enqueued.
func (n *Notifier) PublishReady(ctx context.Context) error {
	if n == nil {
		return nil
	}
	return n.client.Publish(ctx, coldEventChannel, time.Now().UnixMilli()).Err()
}

// Subscribe returns a channel delivering a value each time another instance
// publishes a ready signal, letting the consumer drain promptly instead of
// polling blindly at the job interval.
func (n *Notifier) Subscribe(ctx context.Context) <-chan struct{} {
	out := make(chan struct{}, 1)
	if n == nil {
		return out
	}

	sub := n.client.Subscribe(ctx, coldEventChannel)
	ch := sub.Channel()
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out
}

// TryLock attempts to acquire the cooperative drain lock for ttl, returning
// true if acquired. It has no caller in this repository; the drain paths in
// MemoryJobs do not take the lock.
func (n *Notifier) TryLock(ctx context.Context, ttl time.Duration) bool {
	if n == nil {
		return true
	}
	ok, err := n.client.SetNX(ctx, coldQueueLockKey, "1", ttl).Result()
	return err == nil && ok
}

// Close releases the underlying Redis connection.
func (n *Notifier) Close() error {
	if n == nil {
		return nil
	}
	return n.client.Close()
}
