package ws

import (
	"github.com/Acid-Arch/boutiqueclient-sub000/logger"
)

// Hub fans broadcast messages out to registered subscriber channels. All
// subscriber state is owned by the run loop's goroutine; Register, Unregister,
// Broadcast and Stop only exchange messages with it, so no locking is needed.
// The hub knows nothing about net/http or websockets; callers bring their own
// transport and hand the hub a channel.
type Hub struct {
	subscribe   chan subscriber
	unsubscribe chan string
	events      chan Message
	quit        chan struct{}
}

type subscriber struct {
	id string
	ch chan Message
}

var hubLog *logger.Logger

// SetLogger routes hub diagnostics through the application logger. Without it
// dropped messages go unreported.
func SetLogger(l *logger.Logger) {
	hubLog = l
}

// NewHub creates a hub and starts its run loop.
func NewHub() *Hub {
	h := &Hub{
		subscribe:   make(chan subscriber),
		unsubscribe: make(chan string),
		events:      make(chan Message, 100),
		quit:        make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	subscribers := make(map[string]chan Message)
	for {
		select {
		case sub := <-h.subscribe:
			subscribers[sub.id] = sub.ch
		case id := <-h.unsubscribe:
			if ch, ok := subscribers[id]; ok {
				close(ch)
				delete(subscribers, id)
			}
		case msg := <-h.events:
			for id, ch := range subscribers {
				select {
				case ch <- msg:
				default:
					// Slow consumer; losing an event beats stalling the hub.
					if hubLog != nil {
						hubLog.Warn("Event subscriber lagging, message dropped",
							"client_id", id, "type", msg.Type)
					}
				}
			}
		case <-h.quit:
			for _, ch := range subscribers {
				close(ch)
			}
			return
		}
	}
}

// Register adds a subscriber channel under id. The channel should be buffered;
// messages that do not fit are dropped rather than queued.
func (h *Hub) Register(id string, ch chan Message) {
	h.subscribe <- subscriber{id: id, ch: ch}
}

// Unregister removes the subscriber with the given id and closes its channel.
func (h *Hub) Unregister(id string) {
	h.unsubscribe <- id
}

// Broadcast queues a message for delivery to every subscriber. Never blocks;
// when the hub queue itself is full the message is dropped.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.events <- msg:
	default:
		if hubLog != nil {
			hubLog.Warn("Event queue full, message dropped", "type", msg.Type)
		}
	}
}

// Stop shuts the hub down and closes every subscriber channel.
func (h *Hub) Stop() {
	close(h.quit)
}
