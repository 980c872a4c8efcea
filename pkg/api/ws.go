package api

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/unifitools/wifistalker/pkg/models"
)

const (
	// subscriberBuffer bounds the per-connection event queue; a subscriber
	// that falls this far behind is dropped.
	subscriberBuffer = 16

	writeWait = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The rest of the API is open CORS; the feed follows suit.
	CheckOrigin: func(*http.Request) bool { return true },
}

// subscriber is one websocket connection with its own send queue. All
// socket writes happen on the subscriber's writer goroutine so a stalled
// peer can never block the broadcaster.
type subscriber struct {
	conn *websocket.Conn
	send chan *models.TransitionEvent
}

// eventHub broadcasts transition events to websocket subscribers.
// broadcast only does non-blocking channel sends; it is safe to call
// from the reconciler's poll cycle.
type eventHub struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

func newEventHub() *eventHub {
	return &eventHub{
		subs: make(map[*subscriber]struct{}),
	}
}

func (h *eventHub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Websocket upgrade failed: %v", err)
		return
	}

	sub := &subscriber{
		conn: conn,
		send: make(chan *models.TransitionEvent, subscriberBuffer),
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(sub)

	// The feed is write-only; the read loop just notices the close.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.remove(sub)
				return
			}
		}
	}()
}

// writeLoop drains the subscriber's queue onto the socket. It exits when
// the queue is closed by remove, or when a write fails or times out.
func (h *eventHub) writeLoop(sub *subscriber) {
	for event := range sub.send {
		if err := sub.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			h.remove(sub)
			return
		}

		if err := sub.conn.WriteJSON(event); err != nil {
			h.remove(sub)
			return
		}
	}
}

// remove drops a subscriber. Closing the send queue ends its writeLoop;
// the map check makes remove idempotent across the read loop, the write
// loop, and broadcast overflow all racing to drop the same connection.
func (h *eventHub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(sub)
}

func (h *eventHub) removeLocked(sub *subscriber) {
	if _, ok := h.subs[sub]; !ok {
		return
	}

	delete(h.subs, sub)
	close(sub.send)

	if err := sub.conn.Close(); err != nil {
		log.Printf("Error closing websocket: %v", err)
	}
}

func (h *eventHub) subscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subs)
}

func (h *eventHub) broadcast(event *models.TransitionEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		select {
		case sub.send <- event:
		default:
			// Queue full: the peer stopped reading. Drop it rather than
			// stall the caller.
			h.removeLocked(sub)
		}
	}
}
