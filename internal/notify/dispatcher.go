package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventsChannel is the Redis pub/sub channel every server instance
// subscribes to; the websocket hub fans payloads out to connected clients.
const EventsChannel = "workhub-events"

// Dispatcher persists notifications and pushes them to the event bus.
// Dispatch is fire-and-forget: it detaches from the caller's request so a
// slow Redis or DB write never delays the primary mutation, and its
// failures are logged, never surfaced.
type Dispatcher struct {
	repo  *Repository
	redis *redis.Client
}

func NewDispatcher(repo *Repository, redisClient *redis.Client) *Dispatcher {
	return &Dispatcher{repo: repo, redis: redisClient}
}

func (d *Dispatcher) Dispatch(ev Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := d.repo.Insert(ctx, ev); err != nil {
			log.Printf("notify: insert failed for user %d: %v", ev.UserID, err)
		}

		payload, err := json.Marshal(ev)
		if err != nil {
			log.Printf("notify: marshal failed: %v", err)
			return
		}
		if err := d.redis.Publish(ctx, EventsChannel, payload).Err(); err != nil {
			log.Printf("notify: publish failed for user %d: %v", ev.UserID, err)
		}
	}()
}
