package alerts

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"emberlink/internal/core/domain"
	"emberlink/internal/infrastructure/monitoring"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// AlertMessage is what operator consoles receive on every liveness
// transition.
type AlertMessage struct {
	Type      string            `json:"type"`
	Endpoint  domain.EndpointID `json:"endpoint"`
	From      domain.Liveness   `json:"from"`
	To        domain.Liveness   `json:"to"`
	Missed    int               `json:"missed,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// AlertServer streams liveness transitions to connected operator consoles
// over WebSocket. It implements ports.AlertSink; a dead or slow console
// connection is dropped rather than allowed to back up the alert path.
type AlertServer struct {
	connections map[*websocket.Conn]struct{}
	mu          sync.RWMutex

	pingInterval time.Duration
	pongTimeout  time.Duration
	writeTimeout time.Duration

	metrics *monitoring.MetricsCollector
	logger  *zap.SugaredLogger
}

func NewAlertServer(metrics *monitoring.MetricsCollector, logger *zap.SugaredLogger) *AlertServer {
	return &AlertServer{
		connections:  make(map[*websocket.Conn]struct{}),
		pingInterval: 30 * time.Second,
		pongTimeout:  60 * time.Second,
		writeTimeout: 10 * time.Second,
		metrics:      metrics,
		logger:       logger,
	}
}

func (s *AlertServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	s.mu.Lock()
	s.connections[conn] = struct{}{}
	s.mu.Unlock()

	s.logger.Infow("alert subscriber connected", "remote", r.RemoteAddr)

	conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
		return nil
	})

	// Subscribers never send application data; the read loop exists only
	// to process pongs and detect disconnects.
	errorChan := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				errorChan <- err
				return
			}
		}
	}()

	pingTicker := time.NewTicker(s.pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.drop(conn)
				return
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Infow("alert subscriber read error", "remote", r.RemoteAddr, "error", err)
			}
			s.drop(conn)
			return
		}
	}
}

func (s *AlertServer) drop(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.connections, conn)
	s.mu.Unlock()
	conn.Close()
}

// Notify broadcasts one transition to every subscriber. Write failures
// disconnect the subscriber; the transition itself is never retried.
func (s *AlertServer) Notify(tr domain.LivenessTransition) {
	msg := AlertMessage{
		Type:      "liveness_transition",
		Endpoint:  tr.Endpoint,
		From:      tr.From,
		To:        tr.To,
		Missed:    tr.Missed,
		Timestamp: tr.Timestamp,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.Errorw("encode alert failed", "error", err)
		return
	}

	s.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(s.connections))
	for conn := range s.connections {
		conns = append(conns, conn)
	}
	s.mu.RUnlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			s.logger.Infow("dropping alert subscriber", "error", err)
			s.drop(conn)
		}
	}

	s.metrics.RecordAlert(tr.To)
}

func (s *AlertServer) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}
