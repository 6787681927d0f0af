package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/artemis/ai-modernizer/internal/jobs"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// wireMessage is the JSON envelope every WebSocket push carries, matching
// the catalogue's {type, agent?, status?, message?, timestamp, ...}
// shape.
type wireMessage struct {
	Type      string    `json:"type"`
	Agent     string    `json:"agent,omitempty"`
	Status    string    `json:"status,omitempty"`
	Message   string    `json:"message,omitempty"`
	JobID     string    `json:"job_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// wireType translates an internal jobs.Event (Type/Status pair set by the
// Workflow Engine's persistAndNotify) into one of the catalogue's message
// types, adapted from the teacher's BroadcastEvent which didn't need this
// translation because its event set and its wire vocabulary were the same
// thing.
func wireType(ev jobs.Event) string {
	switch ev.Type {
	case "agent_started":
		return "agent_thinking"
	case "agent_completed":
		if ev.Agent == "deployer" {
			return "workflow_complete"
		}
		return "agent_thinking_complete"
	case "error":
		return "workflow_error"
	case "status":
		if ev.Status == "initializing" {
			return "workflow_start"
		}
		return "workflow_status"
	default:
		return ev.Type
	}
}

// HandleWebSocket upgrades the connection and streams every subsequent
// Bus event for the job named by :id. Grounded on the teacher's
// HandleWebSocket/Client, narrowed from one hub shared by every client to
// one Bus subscription per connection — see DESIGN.md's per-job fan-out
// decision.
func (s *Server) HandleWebSocket(c *gin.Context) {
	jobID := c.Param("id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to upgrade websocket", zap.String("job_id", jobID), zap.Error(err))
		}
		return
	}

	events, cancel := s.bus.Subscribe(jobID)
	defer cancel()
	defer conn.Close()

	conn.SetReadLimit(8192)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	go drainReads(conn)

	if err := writeMessage(conn, wireMessage{Type: "connection", JobID: jobID, Timestamp: time.Now()}); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			msg := wireMessage{
				Type:      wireType(ev),
				Agent:     ev.Agent,
				Status:    ev.Status,
				Message:   ev.Message,
				JobID:     ev.JobID,
				Timestamp: ev.Timestamp,
			}
			if err := writeMessage(conn, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeMessage(conn *websocket.Conn, msg wireMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, body)
}

// drainReads discards client-sent frames (this channel is server-push
// only) but keeps reading so pong control frames reset the read deadline
// and a client-initiated close is noticed promptly.
func drainReads(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
