package api

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/crossdev/syncmesh/internal/scheduler"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// EventServer fans the scheduler's sync outcome feed out to connected
// WebSocket clients so collaborators can observe transfers live
// instead of polling transfer history.
type EventServer struct {
	events <-chan scheduler.SyncEvent

	mu      sync.Mutex
	clients map[*websocket.Conn]chan scheduler.SyncEvent
}

// NewEventServer creates an event server over the given feed. Call Run
// to start fan-out.
func NewEventServer(events <-chan scheduler.SyncEvent) *EventServer {
	return &EventServer{
		events:  events,
		clients: make(map[*websocket.Conn]chan scheduler.SyncEvent),
	}
}

// Run consumes the feed until it closes, forwarding each event to all
// connected clients. Slow clients drop events rather than stall the
// feed.
func (s *EventServer) Run() {
	for event := range s.events {
		s.mu.Lock()
		for conn, ch := range s.clients {
			select {
			case ch <- event:
			default:
				log.Printf("Event buffer full for client %s", conn.RemoteAddr())
			}
		}
		s.mu.Unlock()
	}
}

// HandleEvents handles GET /v1/events by upgrading to a WebSocket and
// streaming sync outcomes until the client disconnects.
func (s *EventServer) HandleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}
	defer conn.Close()

	ch := make(chan scheduler.SyncEvent, 16)
	s.mu.Lock()
	s.clients[conn] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
	}()

	log.Printf("Event client connected from %s", conn.RemoteAddr())

	// Drain reads so close frames are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event := <-ch:
			if err := conn.WriteJSON(event); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("WebSocket error: %v", err)
				}
				return
			}
		case <-done:
			log.Printf("Event client disconnected from %s", conn.RemoteAddr())
			return
		}
	}
}
