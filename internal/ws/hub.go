package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/workhub/workhub/internal/notify"
)

// event routes a payload from Redis to one user's open connections.
type event struct {
	userID  int
	payload []byte
}

// Hub owns the set of connected clients, keyed by user id. The clients
// map is touched only by Run's goroutine, so it needs no lock.
type Hub struct {
	clients    map[int]map[*Client]bool
	deliver    chan event
	Register   chan *Client
	Unregister chan *Client
	redis      *redis.Client
}

func NewHub(redisClient *redis.Client) *Hub {
	return &Hub{
		clients:    make(map[int]map[*Client]bool),
		deliver:    make(chan event),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		redis:      redisClient,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			conns := h.clients[client.UserID]
			if conns == nil {
				conns = make(map[*Client]bool)
				h.clients[client.UserID] = conns
			}
			conns[client] = true

		case client := <-h.Unregister:
			if conns, ok := h.clients[client.UserID]; ok {
				if _, ok := conns[client]; ok {
					delete(conns, client)
					close(client.Send)
					if len(conns) == 0 {
						delete(h.clients, client.UserID)
					}
				}
			}

		case ev := <-h.deliver:
			for client := range h.clients[ev.userID] {
				select {
				case client.Send <- ev.payload:
				default:
					close(client.Send)
					delete(h.clients[ev.userID], client)
				}
			}
		}
	}
}

// SubscribeToRedis bridges the event bus into this instance: events
// published by any server reach the users connected here.
func (h *Hub) SubscribeToRedis() {
	pubsub := h.redis.Subscribe(context.Background(), notify.EventsChannel)
	ch := pubsub.Channel()

	for msg := range ch {
		var ev notify.Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			log.Printf("ws: bad event payload: %v", err)
			continue
		}
		h.deliver <- event{userID: ev.UserID, payload: []byte(msg.Payload)}
	}
}
