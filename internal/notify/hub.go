// README: In-process fan-out of terminal job updates to live listeners.
// Delivery is best effort; polling remains the source of truth.
package notify

import (
	"encoding/json"
	"log"
	"sync"
)

// Message is the payload pushed to listeners when a job reaches a terminal
// state. Result is raw JSON so clients receive an object, not a quoted string.
type Message struct {
	RequestID string          `json:"requestId"`
	Status    string          `json:"status"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Listener receives messages for one subscription. Send must not block
// indefinitely; a failed send drops the listener.
type Listener interface {
	Send(msg Message) error
	Close() error
}

type Hub struct {
	mu   sync.Mutex
	subs map[string][]Listener
}

func NewHub() *Hub {
	return &Hub{subs: map[string][]Listener{}}
}

// Subscribe registers a listener for one request id. Multiple listeners per
// id are allowed; each receives every push.
func (h *Hub) Subscribe(requestID string, l Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[requestID] = append(h.subs[requestID], l)
}

func (h *Hub) Unsubscribe(requestID string, l Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	listeners := h.subs[requestID]
	for i, cur := range listeners {
		if cur == l {
			h.subs[requestID] = append(listeners[:i], listeners[i+1:]...)
			break
		}
	}
	if len(h.subs[requestID]) == 0 {
		delete(h.subs, requestID)
	}
}

// Push delivers a terminal update to every listener of the request id and
// drops the subscription afterwards. Listeners that fail to accept the
// message are closed. A push with no listeners is a no-op.
func (h *Hub) Push(requestID string, status string, result *string, errMsg *string) {
	msg := Message{RequestID: requestID, Status: status}
	if result != nil {
		msg.Result = json.RawMessage(*result)
	}
	if errMsg != nil {
		msg.Error = *errMsg
	}

	h.mu.Lock()
	listeners := h.subs[requestID]
	delete(h.subs, requestID)
	h.mu.Unlock()

	for _, l := range listeners {
		if err := l.Send(msg); err != nil {
			log.Printf("notify %s: dropping listener: %v", requestID, err)
		}
		if err := l.Close(); err != nil {
			log.Printf("notify %s: close listener: %v", requestID, err)
		}
	}
}

// Subscribers reports the current listener count for a request id.
func (h *Hub) Subscribers(requestID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[requestID])
}
