package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/forgewell/agentrt/internal/eventbus"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 45 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsOutbox     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  8192,
	WriteBufferSize: 8192,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsClientMessage is the single inbound frame shape: subscribe to a
// session's event stream.
type wsClientMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

func (s *Server) newWSHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.serveWS(conn)
	})
}

// wsConn bridges one client connection to the event bus. All writes to
// the underlying gorilla connection happen on writeLoop, the only
// goroutine permitted to call conn.Write*; every other goroutine hands
// it a message via outbox instead.
type wsConn struct {
	conn   *websocket.Conn
	outbox chan eventbus.Event

	mu          sync.Mutex
	unsubscribe func()
}

// serveWS implements the join:session subscription model: the client
// sends a {"type":"join:session","session_id":...} frame, after which
// every event published for that session id is forwarded until the
// connection closes. A later join frame replaces the earlier subscription.
func (s *Server) serveWS(conn *websocket.Conn) {
	defer conn.Close()

	wc := &wsConn{conn: conn, outbox: make(chan eventbus.Event, wsOutbox)}
	defer wc.clearSubscription()

	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	done := make(chan struct{})
	go s.wsReadLoop(wc, done)

	wc.writeLoop(done)
}

func (wc *wsConn) setSubscription(cancel func()) {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	if wc.unsubscribe != nil {
		wc.unsubscribe()
	}
	wc.unsubscribe = cancel
}

func (wc *wsConn) clearSubscription() {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	if wc.unsubscribe != nil {
		wc.unsubscribe()
		wc.unsubscribe = nil
	}
}

// writeLoop owns the connection's write side: forwarded events, periodic
// pings, and shutdown on the read loop's done signal.
func (wc *wsConn) writeLoop(done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case event := <-wc.outbox:
			wc.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := wc.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			wc.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := wc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) wsReadLoop(wc *wsConn, done chan<- struct{}) {
	defer close(done)
	for {
		_, data, err := wc.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg wsClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type != "join:session" || msg.SessionID == "" {
			continue
		}

		events, cancel := s.Bus.Subscribe(msg.SessionID)
		wc.setSubscription(cancel)
		go forwardEvents(events, wc.outbox)
	}
}

// forwardEvents copies from the bus subscription into the connection's
// outbox, dropping events (rather than blocking the bus) if the outbox
// is full.
func forwardEvents(events <-chan eventbus.Event, outbox chan<- eventbus.Event) {
	for event := range events {
		select {
		case outbox <- event:
		default:
		}
	}
}
