package routes

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"pixbatch/config"
	"pixbatch/logger"
	"pixbatch/progress"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// checkOrigin admits non-browser clients and the configured browser origin.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	allowed := config.GetAllowedOrigin()
	return origin == "" || allowed == "*" || origin == allowed
}

// socketSink forwards progress events to one websocket connection.
type socketSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *socketSink) Send(ev progress.Event) error {
	return s.writeJSON(ev)
}

func (s *socketSink) writeJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}

// ProgressSocketHandler streams the progress of ?session_id= over a
// websocket. Without a session id one is generated and sent as the first
// message.
func (s *Server) ProgressSocketHandler(w http.ResponseWriter, r *http.Request) {
	session := r.URL.Query().Get("session_id")
	generated := session == ""
	if generated {
		session = uuid.NewString()
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("Websocket upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()

	sink := &socketSink{conn: conn}
	s.Progress.Register(session, sink)
	defer s.Progress.Unregister(session, sink)
	logger.Infof("Client connected: %s", session)

	if generated {
		if err := sink.writeJSON(map[string]string{"session_id": session}); err != nil {
			logger.Warnf("Failed to send session id to %s: %v", r.RemoteAddr, err)
			return
		}
	}

	done := make(chan struct{})
	defer close(done)
	go keepAlive(conn, done)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debugf("Websocket for session %s closed: %v", session, err)
			}
			break
		}
	}
	logger.Infof("Client disconnected: %s", session)
}

// keepAlive pings until done is closed or a ping fails.
func keepAlive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
