// README: Websocket listener binding for the hub.
package notify

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSListener adapts one websocket connection to the hub's Listener interface.
// Writes are serialized; gorilla connections do not allow concurrent writers.
type WSListener struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// ServeWS upgrades the request, subscribes the connection for the request id,
// and blocks in a read loop until the client disconnects. The read loop
// exists only to detect the close; clients never send payloads.
func ServeWS(hub *Hub, requestID string, w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	l := &WSListener{conn: conn}
	hub.Subscribe(requestID, l)

	go func() {
		defer hub.Unsubscribe(requestID, l)
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}

func (l *WSListener) Send(msg Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return l.conn.WriteJSON(msg)
}

func (l *WSListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	deadline := time.Now().Add(wsWriteTimeout)
	_ = l.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"), deadline)
	return l.conn.Close()
}
