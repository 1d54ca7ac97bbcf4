package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/api/schemas"
)

// WebSocket timeouts and limits, per the gorilla examples.
const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	maxMessageSize  = 8192
	sendChannelSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The HTTP API already allows any origin; the handshake must match.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsRequest is one task submission from the client.
type wsRequest struct {
	Task string `json:"task"`
}

// wsEvent is one server-to-client message. Step events arrive while a task
// runs; the result event closes out each submission.
type wsEvent struct {
	Type      string               `json:"type"` // accepted | step | result | error
	TaskID    string               `json:"task_id,omitempty"`
	Outcome   *schemas.StepOutcome `json:"outcome,omitempty"`
	Result    *taskResponse        `json:"result,omitempty"`
	Error     string               `json:"error,omitempty"`
	Timestamp string               `json:"timestamp"`
}

// wsClient is one active connection. writePump is the sole writer on the
// conn; everything else goes through the send channel.
type wsClient struct {
	server *Server
	conn   *websocket.Conn
	send   chan wsEvent
	done   chan struct{}
	once   sync.Once
}

func (s *Server) handleTaskStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{
		server: s,
		conn:   conn,
		send:   make(chan wsEvent, sendChannelSize),
		done:   make(chan struct{}),
	}
	go client.writePump()
	client.readPump()
}

func (c *wsClient) close() {
	c.once.Do(func() { close(c.done) })
}

// trySend queues an event unless the connection is gone.
func (c *wsClient) trySend(ev wsEvent) {
	ev.Timestamp = time.Now().UTC().Format(time.RFC3339)
	select {
	case c.send <- ev:
	case <-c.done:
	}
}

// readPump consumes task submissions until the peer disconnects. Each task
// runs in its own goroutine so pong handling keeps the connection alive
// during long executions.
func (c *wsClient) readPump() {
	defer func() {
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.logger.Debug("websocket closed unexpectedly", zap.Error(err))
			}
			return
		}

		var req wsRequest
		if err := json.Unmarshal(payload, &req); err != nil || req.Task == "" {
			c.trySend(wsEvent{Type: "error", Error: "expected a JSON object with a non-empty \"task\" field"})
			continue
		}
		go c.runTask(req.Task)
	}
}

// runTask executes one submission, streaming step outcomes as they land.
func (c *wsClient) runTask(text string) {
	s := c.server
	taskID := uuid.NewString()
	started := time.Now()

	c.trySend(wsEvent{Type: "accepted", TaskID: taskID})

	ctx, cancel := context.WithTimeout(context.Background(), s.taskTimeout)
	defer cancel()

	result := s.interp.Execute(ctx, text, func(o schemas.StepOutcome) {
		outcome := o
		c.trySend(wsEvent{Type: "step", TaskID: taskID, Outcome: &outcome})
	})

	s.persistRecord(taskID, text, result, started, time.Now())

	c.trySend(wsEvent{Type: "result", TaskID: taskID, Result: &taskResponse{
		Success:  result.Success,
		TaskID:   taskID,
		Mode:     string(s.interp.Mode()),
		Summary:  result.Summary,
		Outcomes: result.Outcomes,
	}})
}

// writePump drains the send channel onto the connection and keeps the peer
// alive with periodic pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
		c.conn.Close()
	}()

	for {
		select {
		case ev := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
